// Package inscription assigns sequence and inscription numbers to
// envelopes found in a block's transactions, resolves each one's
// location via the sat-range tracker's per-transaction breakdown, and
// persists the result through the store package.
package inscription

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/envelope"
	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/satrange"
	"github.com/ordsuite/ordinex/store"
)

// Cursors is the indexer's numbering state, carried from block to block.
// NextSequence is the dense sequence number the next inscription
// encountered, anywhere in the chain, will receive. NextBlessed and
// NextCursed are the next non-negative and next more-negative
// inscription numbers.
type Cursors struct {
	NextSequence uint32
	NextBlessed  int64
	NextCursed   int64
}

// LoadCursors reconstructs Cursors from already committed state: blessed
// numbers are handed out densely from 0 and cursed numbers densely from
// -1, so the blessed/cursed counts alone determine the next value of
// each, and the previous height's stored sequence cursor determines the
// next sequence number.
func LoadCursors(tx *bolt.Tx, height uint32) Cursors {
	var next uint32
	if height > 0 {
		if v, ok := store.GetHeightLastSequence(tx, height-1); ok {
			next = v
		}
	}
	return Cursors{
		NextSequence: next,
		NextBlessed:  int64(store.GetStatistic(tx, store.StatBlessedInscriptions)),
		NextCursed:   -1 - int64(store.GetStatistic(tx, store.StatCursedInscriptions)),
	}
}

// Transfer records an existing inscription's satpoint moving from
// OldLocation to NewLocation because a transaction spent the output it
// lived in. NewLocation is the null outpoint when the move sent the
// inscription's sat to the miner fee or an OP_RETURN output.
type Transfer struct {
	Sequence    uint32
	OldLocation ordinals.SatPoint
	NewLocation ordinals.SatPoint
}

// IndexBlock scans every transaction's envelopes, numbers and locates
// each one, and persists the resulting entries, satpoints, and indexes.
// It also carries forward the satpoint of every already-indexed
// inscription whose output gets spent in this block. results must be the
// satrange.Result slice IndexBlock (satrange package) produced for the
// same txs. Every mutation is also recorded onto u.
func IndexBlock(
	tx *bolt.Tx,
	chain chainparams.Chain,
	height ordinals.Height,
	timestamp int64,
	txs []*wire.MsgTx,
	results []satrange.Result,
	cur Cursors,
	u *store.UndoRecord,
) (Cursors, []Transfer, error) {
	postJubilee := uint32(height) >= chain.JubileeHeight()
	var transfers []Transfer

	for i, msgTx := range txs {
		res := results[i]
		inputOffsets := prefixOffsets(res.InputRanges)
		totalInput := inputOffsets[len(inputOffsets)-1]

		outputValues := make([]uint64, len(msgTx.TxOut))
		var totalOutput uint64
		for vi, o := range msgTx.TxOut {
			outputValues[vi] = uint64(o.Value)
			totalOutput += uint64(o.Value)
		}
		var fee uint64
		if i != 0 && totalInput > totalOutput {
			fee = totalInput - totalOutput
		}

		txid := msgTx.TxHash()

		txStart := len(transfers)
		if i != 0 {
			for j, in := range msgTx.TxIn {
				prevOP := ordinals.OutPoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
				existing, err := store.SequencesAtOutpoint(tx, prevOP)
				if err != nil {
					return cur, transfers, err
				}
				if len(existing) == 0 {
					continue
				}
				base := inputOffsets[j]
				for _, so := range existing {
					oldPoint := ordinals.SatPoint{OutPoint: prevOP, Offset: so.Offset}
					newPoint := transferredSatpoint(txid, outputValues, msgTx.TxOut, base+so.Offset)
					if err := store.PutSatpoint(tx, so.Sequence, newPoint); err != nil {
						return cur, transfers, err
					}
					u.SatpointChanges = append(u.SatpointChanges, store.SatpointUndo{
						Sequence: so.Sequence, HadPrev: true, PrevPoint: oldPoint,
					})
					transfers = append(transfers, Transfer{Sequence: so.Sequence, OldLocation: oldPoint, NewLocation: newPoint})
				}
			}
		}

		envs := envelope.FromTransaction(msgTx)
		if len(envs) == 0 {
			continue
		}

		prevInput := -1
		var prevEnv *envelope.IndexedEnvelope

		for k := range envs {
			env := envs[k]

			notInFirstInput := env.InputIndex != 0
			notAtOffsetZero := env.EnvelopeIndex != 0
			stutter := prevEnv != nil && env.InputIndex == prevInput &&
				bytes.Equal(prevEnv.Body, env.Body) && fieldsEqual(prevEnv.Fields, env.Fields)

			offset := inputOffsets[env.InputIndex]
			pointerOutOfRange := false
			if raw, ok := env.Fields[envelope.TagPointer]; ok {
				if v, valid := parsePointer(raw); valid && v < totalOutput {
					offset = v
				} else {
					pointerOutOfRange = true
				}
			}

			// The coinbase's "input" is the subsidy and fee pool, which
			// satrange never records as per-input ranges, so totalInput
			// is always 0 for it; that must not trigger Unbound the way
			// a genuinely valueless non-coinbase input would.
			unboundEligible := totalInput
			if i == 0 {
				unboundEligible = totalOutput
			}
			sat, satpoint, lost, unbound := locate(txid, msgTx.TxOut, outputValues, res.OutputRanges, unboundEligible, offset)

			reinscription := false
			if sat != nil {
				existing, err := store.SequencesAtSat(tx, *sat)
				if err != nil {
					return cur, transfers, err
				}
				reinscription = len(existing) > 0
			}

			curseCondition := env.DuplicateField || env.IncompleteField || env.UnrecognizedEvenField ||
				env.Pushnum || notInFirstInput || notAtOffsetZero || pointerOutOfRange || stutter || reinscription
			cursed := curseCondition && !postJubilee
			vindicated := curseCondition && postJubilee

			charms := charmsFor(sat, lost, unbound, cursed, vindicated, reinscription)

			var number int64
			if cursed {
				number = cur.NextCursed
				cur.NextCursed--
			} else {
				number = cur.NextBlessed
				cur.NextBlessed++
			}
			seq := cur.NextSequence
			cur.NextSequence++

			parent := resolveParent(tx, msgTx, env, transfers[txStart:])

			entryFee := uint64(0)
			if i != 0 {
				entryFee = fee
			}

			entry := store.InscriptionEntry{
				Id:                ordinals.InscriptionId{Txid: txid, Index: uint32(k)},
				SequenceNumber:    seq,
				InscriptionNumber: number,
				Sat:               sat,
				Height:            uint32(height),
				Fee:               entryFee,
				Timestamp:         timestamp,
				Charms:            charms,
				Parent:            parent,
			}

			if err := store.PutInscriptionEntry(tx, entry); err != nil {
				return cur, transfers, err
			}
			u.InscriptionsCreated = append(u.InscriptionsCreated, entry)

			if err := store.PutSatpoint(tx, seq, satpoint); err != nil {
				return cur, transfers, err
			}
			u.SatpointChanges = append(u.SatpointChanges, store.SatpointUndo{Sequence: seq, HadPrev: false})

			if sat != nil {
				if err := store.PutSatIndex(tx, *sat, seq); err != nil {
					return cur, transfers, err
				}
				u.SatIndexAdded = append(u.SatIndexAdded, store.SatIndexUndo{Sat: *sat, Sequence: seq})
			}

			contentType := string(env.Fields[envelope.TagContentType])
			if err := store.IncrementContentTypeCount(tx, contentType, 1); err != nil {
				return cur, transfers, err
			}
			u.ContentTypeDeltas = append(u.ContentTypeDeltas, store.ContentTypeDelta{ContentType: contentType, Delta: 1})

			if cursed {
				if err := bumpStat(tx, store.StatCursedInscriptions, 1, u); err != nil {
					return cur, transfers, err
				}
			} else {
				if err := bumpStat(tx, store.StatBlessedInscriptions, 1, u); err != nil {
					return cur, transfers, err
				}
				if err := store.PutHomeInscription(tx, seq); err != nil {
					return cur, transfers, err
				}
			}
			if unbound {
				if err := bumpStat(tx, store.StatUnboundInscriptions, 1, u); err != nil {
					return cur, transfers, err
				}
			}

			envCopy := env
			prevEnv = &envCopy
			prevInput = env.InputIndex
		}
	}

	if prev, ok := store.GetHeightLastSequence(tx, uint32(height)); ok {
		u.HadPrevHeightLastSequence = true
		u.PrevHeightLastSequence = prev
	}
	if err := store.SetHeightLastSequence(tx, uint32(height), cur.NextSequence); err != nil {
		return cur, transfers, err
	}

	return cur, transfers, nil
}

// transferredSatpoint maps the cumulative input offset of an
// already-inscribed sat onto its new output, or the null outpoint if the
// spend sent it to the miner fee or an OP_RETURN output.
func transferredSatpoint(txid chainhash.Hash, outputValues []uint64, outs []*wire.TxOut, offset uint64) ordinals.SatPoint {
	vout, within, ok := locateOutput(outputValues, offset)
	if !ok || isOpReturnScript(outs[vout].PkScript) {
		return ordinals.SatPoint{OutPoint: ordinals.NullOutPoint}
	}
	return ordinals.SatPoint{OutPoint: ordinals.OutPoint{Txid: txid, Vout: uint32(vout)}, Offset: within}
}

// locate resolves an envelope's default or pointer-overridden offset to
// a sat, satpoint, and Lost/Unbound status. A transaction with no input
// value at all (totalInput == 0) can give an inscription no sat, so it is
// Unbound. An offset that falls outside every output, or lands on an
// OP_RETURN output, has nowhere safe to live, so it is Lost.
func locate(
	txid chainhash.Hash,
	outs []*wire.TxOut,
	outputValues []uint64,
	outputRanges [][]ordinals.SatRange,
	totalInput uint64,
	offset uint64,
) (*ordinals.Sat, ordinals.SatPoint, bool, bool) {
	if totalInput == 0 {
		return nil, ordinals.SatPoint{OutPoint: ordinals.NullOutPoint}, false, true
	}

	vout, within, ok := locateOutput(outputValues, offset)
	if !ok {
		return nil, ordinals.SatPoint{OutPoint: ordinals.NullOutPoint}, true, false
	}
	if isOpReturnScript(outs[vout].PkScript) {
		return nil, ordinals.SatPoint{OutPoint: ordinals.NullOutPoint}, true, false
	}

	op := ordinals.OutPoint{Txid: txid, Vout: uint32(vout)}
	satpoint := ordinals.SatPoint{OutPoint: op, Offset: within}

	s, found := satAtOffset(outputRanges[vout], within)
	if !found {
		return nil, satpoint, false, true
	}
	return &s, satpoint, false, false
}

func charmsFor(sat *ordinals.Sat, lost, unbound, cursed, vindicated, reinscription bool) uint16 {
	var charms uint16
	if cursed {
		charms = CharmCursed.Set(charms)
	}
	if vindicated {
		charms = CharmVindicated.Set(charms)
	}
	if reinscription {
		charms = CharmReinscription.Set(charms)
	}
	if lost {
		charms = CharmLost.Set(charms)
	}
	if unbound {
		charms = CharmUnbound.Set(charms)
	}
	if sat != nil {
		switch sat.Rarity() {
		case ordinals.Rare:
			charms = CharmRare.Set(charms)
		case ordinals.Epic:
			charms = CharmEpic.Set(charms)
		case ordinals.Legendary:
			charms = CharmLegendary.Set(charms)
		case ordinals.Mythic:
			charms = CharmMythic.Set(charms)
		}
		if sat.Nineball() {
			charms = CharmNineball.Set(charms)
		}
		if sat.Coin() {
			charms = CharmCoin.Set(charms)
		}
	}
	return charms
}

// resolveParent honors a parent field only if one of the transaction's
// inputs spends the named inscription's satpoint as it stood before this
// transaction. moved holds the transfers this transaction's inputs have
// already applied, which carry the parent off that satpoint.
func resolveParent(tx *bolt.Tx, msgTx *wire.MsgTx, env envelope.IndexedEnvelope, moved []Transfer) *uint32 {
	raw, ok := env.Fields[envelope.TagParent]
	if !ok {
		return nil
	}
	pid, ok := parseInscriptionIdField(raw)
	if !ok {
		return nil
	}
	pseq, ok := store.SequenceByInscriptionId(tx, pid)
	if !ok {
		return nil
	}
	for _, t := range moved {
		if t.Sequence == pseq {
			p := pseq
			return &p
		}
	}
	ppoint, has, err := store.GetSatpoint(tx, pseq)
	if err != nil || !has {
		return nil
	}
	for _, in := range msgTx.TxIn {
		spent := ordinals.OutPoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
		if spent == ppoint.OutPoint {
			p := pseq
			return &p
		}
	}
	return nil
}

// parseInscriptionIdField decodes a parent/delegate byte field: 32 bytes
// of txid followed by an optional little-endian output index with no
// trailing zero byte.
func parseInscriptionIdField(data []byte) (ordinals.InscriptionId, bool) {
	if len(data) < 32 || len(data) > 36 {
		return ordinals.InscriptionId{}, false
	}
	var id ordinals.InscriptionId
	copy(id.Txid[:], data[:32])
	idx := data[32:]
	if len(idx) == 0 {
		return id, true
	}
	if idx[len(idx)-1] == 0 {
		return ordinals.InscriptionId{}, false
	}
	var buf [4]byte
	copy(buf[:], idx)
	id.Index = binary.LittleEndian.Uint32(buf[:])
	return id, true
}

// parsePointer decodes a pointer byte field as a little-endian u64; any
// byte beyond the 8th must be zero or the field is invalid.
func parsePointer(data []byte) (uint64, bool) {
	if len(data) > 8 {
		for _, b := range data[8:] {
			if b != 0 {
				return 0, false
			}
		}
	}
	var buf [8]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint64(buf[:]), true
}

func prefixOffsets(inputRanges [][]ordinals.SatRange) []uint64 {
	out := make([]uint64, len(inputRanges)+1)
	for i, r := range inputRanges {
		out[i+1] = out[i] + sizeOfRanges(r)
	}
	return out
}

func sizeOfRanges(ranges []ordinals.SatRange) uint64 {
	var n uint64
	for _, r := range ranges {
		n += r.Size()
	}
	return n
}

// locateOutput maps a cumulative sat offset onto the output whose value
// range contains it.
func locateOutput(outputValues []uint64, offset uint64) (vout int, within uint64, ok bool) {
	var cum uint64
	for vi, v := range outputValues {
		if offset < cum+v {
			return vi, offset - cum, true
		}
		cum += v
	}
	return 0, 0, false
}

func satAtOffset(ranges []ordinals.SatRange, offset uint64) (ordinals.Sat, bool) {
	var cum uint64
	for _, r := range ranges {
		sz := r.Size()
		if offset < cum+sz {
			return r.Start + ordinals.Sat(offset-cum), true
		}
		cum += sz
	}
	return 0, false
}

func isOpReturnScript(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}

func fieldsEqual(a, b map[envelope.Tag][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !bytes.Equal(v, bv) {
			return false
		}
	}
	return true
}

func bumpStat(tx *bolt.Tx, name store.Statistic, delta uint64, u *store.UndoRecord) error {
	if _, err := store.IncrementStatistic(tx, name, delta); err != nil {
		return err
	}
	u.StatDeltas = append(u.StatDeltas, store.StatDelta{Name: name, Delta: int64(delta)})
	return nil
}
