package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// MaxSavepoints, times SavepointInterval, bounds how far back
// FindForkHeight probes: a reorg deeper than
// MaxSavepoints*SavepointInterval blocks is reported as unrecoverable.
// Undo records are kept for every connected height; nothing trims old
// ones.
const MaxSavepoints = 2

// SavepointInterval is the block spacing at which the updater stamps
// Manifest.LastSavepointHeight, and the other factor of FindForkHeight's
// probe bound.
const SavepointInterval = 10

// FindForkHeight walks down from the store's current tip, asking
// remoteHashAt for the hash the upstream node has at each height, until
// it finds a height where the two chains agree. It returns that height
// and stops after probing MaxSavepoints*SavepointInterval blocks back
// from the tip, returning ok=false if no match was found within that
// window.
func FindForkHeight(tx *bolt.Tx, tip uint32, remoteHashAt func(height uint32) ([32]byte, bool)) (uint32, bool, error) {
	limit := uint32(MaxSavepoints * SavepointInterval)
	probed := uint32(0)
	for h := tip; ; h-- {
		local, ok := GetHeader(tx, h)
		if !ok {
			return 0, false, fmt.Errorf("store: reorg: no stored header at height %d", h)
		}
		remote, ok := remoteHashAt(h)
		if !ok {
			return 0, false, fmt.Errorf("store: reorg: no remote header at height %d", h)
		}
		if local == remote {
			return h, true, nil
		}
		if h == 0 {
			return 0, false, nil
		}
		probed++
		if probed > limit {
			return 0, false, nil
		}
	}
}

// RollbackToHeight disconnects every height from the store's current tip
// down to (but not including) target, replaying each height's undo
// record in reverse and deleting the height's header and undo rows. It
// leaves the manifest's tip height/hash untouched; the caller commits
// the new manifest once the disconnected heights have been reconnected
// with the correct chain.
func RollbackToHeight(tx *bolt.Tx, tip uint32, target uint32) error {
	if target > tip {
		return fmt.Errorf("store: reorg: target height %d above tip %d", target, tip)
	}
	for h := tip; h > target; h-- {
		undo, ok, err := GetUndoRecord(tx, h)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store: reorg: missing undo record for height %d", h)
		}
		if err := applyUndo(tx, undo); err != nil {
			return fmt.Errorf("store: reorg: apply undo at height %d: %w", h, err)
		}
		if err := DeleteUndoRecord(tx, h); err != nil {
			return err
		}
		if err := DeleteHeader(tx, h); err != nil {
			return err
		}
	}
	return nil
}

// applyUndo reverses every mutation an UndoRecord describes. Where one
// block touched the same row twice (an output created and then spent, an
// inscription created and then moved), the later mutation is undone
// first, so the row ends up as it was before the block.
func applyUndo(tx *bolt.Tx, u *UndoRecord) error {
	for _, s := range u.SatRangesSpent {
		if err := PutSatRanges(tx, s.OutPoint, s.Ranges); err != nil {
			return err
		}
	}
	for _, p := range u.SatRangesCreated {
		if err := DeleteSatRanges(tx, p); err != nil {
			return err
		}
	}

	for _, e := range u.InscriptionsCreated {
		if err := DeleteInscriptionEntry(tx, e); err != nil {
			return err
		}
	}

	for i := len(u.SatpointChanges) - 1; i >= 0; i-- {
		sc := u.SatpointChanges[i]
		if sc.HadPrev {
			if err := PutSatpoint(tx, sc.Sequence, sc.PrevPoint); err != nil {
				return err
			}
		} else {
			if old := tx.Bucket(bucketSeqToSatpoint).Get(beUint32(sc.Sequence)); old != nil {
				if err := tx.Bucket(bucketSatpointToSeq).Delete(compositeKey(old, beUint32(sc.Sequence))); err != nil {
					return err
				}
			}
			if err := tx.Bucket(bucketSeqToSatpoint).Delete(beUint32(sc.Sequence)); err != nil {
				return err
			}
		}
	}

	for _, d := range u.StatDeltas {
		if _, err := IncrementStatistic(tx, d.Name, uint64(-d.Delta)); err != nil {
			return err
		}
	}

	for _, c := range u.OutpointRuneBalanceChanges {
		if c.HadPrev {
			if err := PutOutpointRuneBalances(tx, c.OutPoint, c.PrevBalances); err != nil {
				return err
			}
		} else {
			if err := tx.Bucket(bucketOutpointRunes).Delete(c.OutPoint); err != nil {
				return err
			}
		}
	}

	// RuneEntrySnapshots holds pre-block state for runes that already
	// existed and were mutated (e.g. a mint raising supply); RunesCreated
	// holds ids etched fresh in this block. The two sets are disjoint.
	for _, e := range u.RuneEntrySnapshots {
		if err := PutRuneEntry(tx, e); err != nil {
			return err
		}
	}
	for _, id := range u.RunesCreated {
		e, ok, err := GetRuneEntry(tx, id)
		if err != nil {
			return err
		}
		if ok {
			if err := DeleteRuneEntry(tx, e); err != nil {
				return err
			}
		}
	}

	for _, s := range u.SatIndexAdded {
		if err := DeleteSatIndex(tx, s.Sat, s.Sequence); err != nil {
			return err
		}
	}

	for _, d := range u.ContentTypeDeltas {
		if err := IncrementContentTypeCount(tx, d.ContentType, -d.Delta); err != nil {
			return err
		}
	}

	if u.HadPrevHeightLastSequence {
		if err := SetHeightLastSequence(tx, u.Height, u.PrevHeightLastSequence); err != nil {
			return err
		}
	} else {
		if err := tx.Bucket(bucketHeightToLast).Delete(beUint32(u.Height)); err != nil {
			return err
		}
	}

	return nil
}
