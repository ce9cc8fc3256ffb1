// Package satrange implements the per-block sat-range tracker: it walks
// a block's transactions in order, draining each spent input's stored
// ranges into a FIFO pool and handing ranges back out to outputs in the
// order spec.md §4.2 describes, recording everything it touches onto an
// UndoRecord so a reorg can reverse it exactly.
package satrange

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/store"
)

// Result is the per-transaction range breakdown the inscription indexer
// consumes to locate the sat each input and output carries.
type Result struct {
	// InputRanges[i] is everything drained from the i'th input's stored
	// range list, in range order.
	InputRanges [][]ordinals.SatRange
	// OutputRanges[i] is the ranges assigned to the i'th output, in
	// order. An OP_RETURN output's ranges are redirected to
	// ordinals.NullOutPoint instead and OutputRanges[i] is left nil.
	OutputRanges [][]ordinals.SatRange
}

// IndexBlock runs the sat-range assignment algorithm across every
// transaction in a block. txs[0] must be the coinbase. Every store
// mutation it makes is also recorded onto u so a later rollback can
// reverse them.
func IndexBlock(tx *bolt.Tx, height ordinals.Height, txs []*wire.MsgTx, u *store.UndoRecord) ([]Result, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("satrange: block has no transactions")
	}

	subsidy := ordinals.SatRange{
		Start: height.StartingSat(),
		End:   height.StartingSat() + ordinals.Sat(height.Subsidy()),
	}
	pool := []ordinals.SatRange{subsidy}

	results := make([]Result, len(txs))
	var allNullRanges []ordinals.SatRange

	for i := 1; i < len(txs); i++ {
		inputRanges, err := drainInputs(tx, txs[i], u)
		if err != nil {
			return nil, fmt.Errorf("satrange: tx %d: %w", i, err)
		}

		gathered := flatten(inputRanges)

		outputRanges, nullRanges, fees, err := assignOutputs(tx, txs[i].TxHash(), txs[i].TxOut, gathered)
		if err != nil {
			return nil, fmt.Errorf("satrange: tx %d: %w", i, err)
		}
		allNullRanges = append(allNullRanges, nullRanges...)
		// Remainder after filling this transaction's own outputs is fee
		// income; it joins the coinbase's pool for later assignment, it
		// never funds this (or any other) non-coinbase transaction's
		// outputs.
		pool = append(pool, fees...)

		results[i] = Result{InputRanges: inputRanges, OutputRanges: outputRanges}

		for vout, ranges := range outputRanges {
			if len(ranges) == 0 {
				continue
			}
			op := ordinals.OutPoint{Txid: txs[i].TxHash(), Vout: uint32(vout)}
			if err := store.PutSatRanges(tx, op, ranges); err != nil {
				return nil, err
			}
			u.SatRangesCreated = append(u.SatRangesCreated, op)
		}
	}

	coinbaseRanges, coinbaseNullRanges, lost, err := assignOutputs(tx, txs[0].TxHash(), txs[0].TxOut, pool)
	if err != nil {
		return nil, fmt.Errorf("satrange: coinbase: %w", err)
	}
	allNullRanges = append(allNullRanges, coinbaseNullRanges...)
	results[0] = Result{OutputRanges: coinbaseRanges}
	for vout, ranges := range coinbaseRanges {
		if len(ranges) == 0 {
			continue
		}
		op := ordinals.OutPoint{Txid: txs[0].TxHash(), Vout: uint32(vout)}
		if err := store.PutSatRanges(tx, op, ranges); err != nil {
			return nil, err
		}
		u.SatRangesCreated = append(u.SatRangesCreated, op)
	}

	if len(allNullRanges) > 0 {
		existing, err := store.GetSatRanges(tx, ordinals.NullOutPoint)
		if err != nil {
			return nil, err
		}
		if err := store.PutSatRanges(tx, ordinals.NullOutPoint, append(existing, allNullRanges...)); err != nil {
			return nil, err
		}
		if existing == nil {
			u.SatRangesCreated = append(u.SatRangesCreated, ordinals.NullOutPoint)
		} else {
			u.SatRangesSpent = append(u.SatRangesSpent, store.SatRangeUndo{OutPoint: ordinals.NullOutPoint, Ranges: existing})
		}
	}

	if lostSats := sizeOf(lost); lostSats > 0 {
		if err := bumpStatistic(tx, store.StatLostSats, lostSats, u); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// drainInputs removes and returns the stored ranges for every input of
// tx, deleting the rows (an input whose previous output was never
// tracked, e.g. because sat indexing started after it was created,
// contributes nothing).
func drainInputs(tx *bolt.Tx, msgTx *wire.MsgTx, u *store.UndoRecord) ([][]ordinals.SatRange, error) {
	out := make([][]ordinals.SatRange, len(msgTx.TxIn))
	for i, in := range msgTx.TxIn {
		op := ordinals.OutPoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
		ranges, err := store.GetSatRanges(tx, op)
		if err != nil {
			return nil, err
		}
		if ranges == nil {
			continue
		}
		if err := store.DeleteSatRanges(tx, op); err != nil {
			return nil, err
		}
		u.SatRangesSpent = append(u.SatRangesSpent, store.SatRangeUndo{OutPoint: op, Ranges: ranges})
		out[i] = ranges
	}
	return out, nil
}

// assignOutputs hands ranges out of pool to each output in order,
// splitting the range that straddles a boundary and recording any rare
// sat that lands at the start of a newly assigned range. OP_RETURN
// outputs' ranges are returned separately rather than under their own
// vout, since they all collapse onto the shared null outpoint. It
// returns the per-real-output ranges, the OP_RETURN ranges, and
// whatever remains in pool once every output is filled.
func assignOutputs(tx *bolt.Tx, txid chainhash.Hash, outs []*wire.TxOut, pool []ordinals.SatRange) ([][]ordinals.SatRange, []ordinals.SatRange, []ordinals.SatRange, error) {
	assigned := make([][]ordinals.SatRange, len(outs))
	var nullRanges []ordinals.SatRange

	for vout, out := range outs {
		need := uint64(out.Value)
		var got []ordinals.SatRange
		offset := uint64(0)

		isNull := isOpReturn(out.PkScript)
		op := ordinals.OutPoint{Txid: txid, Vout: uint32(vout)}
		if isNull {
			op = ordinals.NullOutPoint
		}

		for need > 0 && len(pool) > 0 {
			r := pool[0]
			var piece ordinals.SatRange
			if r.Size() <= need {
				piece = r
				pool = pool[1:]
			} else {
				piece, pool[0] = r.Split(need)
			}
			need -= piece.Size()

			if isRareBoundary(piece.Start) {
				point := ordinals.SatPoint{OutPoint: op, Offset: offset}
				if err := store.PutRareSat(tx, piece.Start, point); err != nil {
					return nil, nil, nil, err
				}
			}

			got = append(got, piece)
			offset += piece.Size()
		}

		if isNull {
			nullRanges = append(nullRanges, got...)
			continue
		}
		assigned[vout] = got
	}

	return assigned, nullRanges, pool, nil
}

// isRareBoundary reports whether s is rare enough (any rarity above
// Common, i.e. a zero third degree coordinate) to warrant a rare-sat
// index entry.
func isRareBoundary(s ordinals.Sat) bool {
	return s.Rarity() != ordinals.Common
}

func isOpReturn(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}

func flatten(ranges [][]ordinals.SatRange) []ordinals.SatRange {
	var out []ordinals.SatRange
	for _, r := range ranges {
		out = append(out, r...)
	}
	return out
}

func sizeOf(ranges []ordinals.SatRange) uint64 {
	var n uint64
	for _, r := range ranges {
		n += r.Size()
	}
	return n
}

func bumpStatistic(tx *bolt.Tx, name store.Statistic, delta uint64, u *store.UndoRecord) error {
	if _, err := store.IncrementStatistic(tx, name, delta); err != nil {
		return err
	}
	u.StatDeltas = append(u.StatDeltas, store.StatDelta{Name: name, Delta: int64(delta)})
	return nil
}
