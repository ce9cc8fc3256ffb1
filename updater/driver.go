// Package updater drives the indexing pipeline: fetch a batch of
// blocks, run the sat/inscription/rune indexers over each one inside a
// single write transaction, and commit on a savepoint cadence. This
// mirrors the snapshot-before/rollback-on-error discipline the
// teacher's sync engine uses around ConnectBlock, generalized to a
// whole batch instead of one block at a time.
package updater

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/config"
	"github.com/ordsuite/ordinex/events"
	"github.com/ordsuite/ordinex/fetch"
	"github.com/ordsuite/ordinex/inscription"
	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/reorg"
	"github.com/ordsuite/ordinex/runeindex"
	"github.com/ordsuite/ordinex/satrange"
	"github.com/ordsuite/ordinex/store"
)

// batchSize is how many blocks Run asks the fetcher for per iteration.
const batchSize = 16

// Runtime holds the long-lived collaborators the driver threads through
// every batch: never a package-level global, always passed explicitly.
type Runtime struct {
	DB       *store.DB
	Fetcher  *fetch.Fetcher
	Chain    chainparams.Chain
	Config   config.Config
	Sink     events.Sink
	Detector *reorg.Detector
	Log      *zap.Logger
}

// TransactionInfo summarizes one committed batch for logging, matching
// spec.md §4.7's "log a TransactionInfo" step.
type TransactionInfo struct {
	FromHeight uint32
	ToHeight   uint32
	Blocks     int
}

// Run drives the pipeline until ctx is cancelled or a batch comes back
// empty (chain tip reached). ctx is checked before each batch is
// fetched: a batch already being connected is connected and committed
// in full before Run returns; it is not aborted mid-batch.
func Run(ctx context.Context, rt *Runtime, remoteHashAt func(height uint32) ([32]byte, bool)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		from := uint32(0)
		if m := rt.DB.Manifest(); m != nil && m.TipHash != "" {
			from = uint32(m.TipHeight) + 1
		}

		blocks, err := rt.Fetcher.Batch(ctx, from, batchSize)
		if err != nil {
			return fmt.Errorf("updater: fetch batch at height %d: %w", from, err)
		}
		if len(blocks) == 0 {
			return nil
		}

		if err := runBatch(rt, blocks, remoteHashAt); err != nil {
			return err
		}
	}
}

func runBatch(rt *Runtime, blocks []fetch.Block, remoteHashAt func(height uint32) ([32]byte, bool)) error {
	batch := events.NewBatch()

	err := rt.DB.Update(func(tx *bolt.Tx) error {
		for _, b := range blocks {
			if err := connectBlock(rt, tx, b, batch, remoteHashAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	last := blocks[len(blocks)-1]
	m := rt.DB.Manifest()
	if m == nil {
		m = &store.Manifest{}
	}
	m.TipHeight = uint64(last.Height)
	m.TipHash = last.Hash.String()
	if uint32(last.Height)%store.SavepointInterval == 0 {
		m.LastSavepointHeight = uint64(last.Height)
	}
	if err := rt.DB.SetManifest(m); err != nil {
		return fmt.Errorf("updater: commit manifest: %w", err)
	}

	batch.Flush(rt.Sink)

	info := TransactionInfo{FromHeight: blocks[0].Height, ToHeight: last.Height, Blocks: len(blocks)}
	if rt.Log != nil {
		rt.Log.Info("committed batch",
			zap.Uint32("from_height", info.FromHeight),
			zap.Uint32("to_height", info.ToHeight),
			zap.Int("blocks", info.Blocks),
		)
	}
	return nil
}

func connectBlock(rt *Runtime, tx *bolt.Tx, b fetch.Block, batch *events.Batch, remoteHashAt func(height uint32) ([32]byte, bool)) error {
	if b.Height > 0 {
		prevHash, ok := store.GetHeader(tx, b.Height-1)
		if ok && prevHash != b.Msg.Header.PrevBlock {
			outcome, err := rt.Detector.Detect(tx, b.Height-1, remoteHashAt)
			if err != nil {
				return fmt.Errorf("updater: reorg detection: %w", err)
			}
			if outcome.Unrecoverable {
				return fmt.Errorf("updater: unrecoverable reorg at height %d, indexer frozen", b.Height-1)
			}
			if outcome.Reorged {
				if err := store.RollbackToHeight(tx, b.Height-1, outcome.ForkHeight); err != nil {
					return fmt.Errorf("updater: rollback to height %d: %w", outcome.ForkHeight, err)
				}
				rt.Detector.Resume()
			}
		}
	}

	height := ordinals.Height(b.Height)
	txs := b.Msg.Transactions
	u := &store.UndoRecord{Height: b.Height}

	satResults, err := satrange.IndexBlock(tx, height, txs, u)
	if err != nil {
		return fmt.Errorf("updater: sat index at height %d: %w", b.Height, err)
	}

	if !rt.Config.NoIndexInscripts {
		cur := inscription.LoadCursors(tx, b.Height)
		newCur, transfers, err := inscription.IndexBlock(tx, rt.Chain, height, b.Msg.Header.Timestamp.Unix(), txs, satResults, cur, u)
		if err != nil {
			return fmt.Errorf("updater: inscription index at height %d: %w", b.Height, err)
		}
		if err := store.SetHeightLastSequence(tx, b.Height, newCur.NextSequence); err != nil {
			return fmt.Errorf("updater: set height cursor at %d: %w", b.Height, err)
		}
		for seq := cur.NextSequence; seq < newCur.NextSequence; seq++ {
			entry, ok, err := store.GetInscriptionEntryBySequence(tx, seq)
			if err != nil || !ok {
				continue
			}
			point, _, _ := store.GetSatpoint(tx, seq)
			batch.Add(events.InscriptionCreated{Id: entry.Id, Number: entry.InscriptionNumber, Location: point})
		}
		for _, t := range transfers {
			entry, ok, err := store.GetInscriptionEntryBySequence(tx, t.Sequence)
			if err != nil || !ok {
				continue
			}
			batch.Add(events.InscriptionTransferred{Id: entry.Id, OldLocation: t.OldLocation, NewLocation: t.NewLocation})
		}
	}

	if rt.Config.IndexRunes && b.Height >= rt.Config.FirstRuneHeight() {
		occ, err := runeindex.IndexBlock(tx, rt.Chain, height, b.Msg.Header.Timestamp.Unix(), txs, u)
		if err != nil {
			return fmt.Errorf("updater: rune index at height %d: %w", b.Height, err)
		}
		for _, msgTx := range txs {
			txid := msgTx.TxHash()
			rn, ok := store.RuneByTxid(tx, txid)
			if !ok {
				continue
			}
			id, ok, err := store.RuneIdByName(tx, rn)
			if err != nil || !ok {
				continue
			}
			batch.Add(events.RuneEtched{Id: id, Rune: rn})
		}
		for _, m := range occ.Mints {
			batch.Add(events.RuneMinted{Id: m.Id, Amount: m.Amount})
		}
		for _, t := range occ.Transfers {
			batch.Add(events.RuneTransferred{Id: t.Id, Amount: t.Amount, Outpoint: t.Outpoint})
		}
		for _, bn := range occ.Burns {
			batch.Add(events.RuneBurned{Id: bn.Id, Amount: bn.Amount})
		}
	}

	if err := store.PutHeader(tx, b.Height, b.Hash); err != nil {
		return fmt.Errorf("updater: put header at %d: %w", b.Height, err)
	}
	if err := store.PutUndoRecord(tx, *u); err != nil {
		return fmt.Errorf("updater: put undo record at %d: %w", b.Height, err)
	}
	return nil
}
