// Package reorg detects chain reorganizations ahead of indexing a block
// and drives the small state machine the updater consults around each
// commit boundary. The mechanical rollback itself lives in
// store.RollbackToHeight/store.FindForkHeight; this package decides
// when to call them and what state the indexer is in while it does.
package reorg

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/store"
)

// State is the updater's small state machine, mirroring the teacher's
// typed BlockStatus enum idiom.
type State byte

const (
	Fresh State = iota
	Indexing
	Committing
	Rollback
	Frozen
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Indexing:
		return "indexing"
	case Committing:
		return "committing"
	case Rollback:
		return "rollback"
	case Frozen:
		return "frozen"
	default:
		return fmt.Sprintf("state(%d)", byte(s))
	}
}

// Outcome describes what Detect found.
type Outcome struct {
	Reorged      bool
	Depth        uint32
	ForkHeight   uint32
	Unrecoverable bool
}

// Detector tracks the updater's current state across Detect calls.
// A Detector that has transitioned to Frozen refuses to run Detect
// again; the caller must construct a new one after recovering.
type Detector struct {
	state State
}

// NewDetector starts a Detector in the Fresh state.
func NewDetector() *Detector {
	return &Detector{state: Fresh}
}

// State returns the detector's current state.
func (d *Detector) State() State {
	return d.state
}

// Detect probes the stored header chain against the upstream node's
// hashes, starting at tip and walking backward, via remoteHashAt. It
// transitions Indexing -> Rollback -> Indexing on a recoverable reorg,
// and to the terminal Frozen state if the fork is deeper than the store
// can roll back.
func (d *Detector) Detect(tx *bolt.Tx, tip uint32, remoteHashAt func(height uint32) ([32]byte, bool)) (Outcome, error) {
	if d.state == Frozen {
		return Outcome{}, fmt.Errorf("reorg: detector is frozen, refusing further checks")
	}
	d.state = Indexing

	remoteTip, ok := remoteHashAt(tip)
	if !ok {
		return Outcome{}, fmt.Errorf("reorg: no remote header at tip height %d", tip)
	}
	localTip, ok := store.GetHeader(tx, tip)
	if !ok {
		return Outcome{}, nil
	}
	if localTip == remoteTip {
		return Outcome{}, nil
	}

	forkHeight, found, err := store.FindForkHeight(tx, tip, remoteHashAt)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		d.state = Frozen
		return Outcome{Reorged: true, Unrecoverable: true}, nil
	}

	depth := tip - forkHeight
	d.state = Rollback
	return Outcome{Reorged: true, Depth: depth, ForkHeight: forkHeight}, nil
}

// Resume transitions Rollback back to Indexing once the caller has
// applied store.RollbackToHeight for the outcome Detect returned.
func (d *Detector) Resume() {
	if d.state == Rollback {
		d.state = Indexing
	}
}

// Commit transitions Indexing -> Committing. Call MarkCommitted once
// the write transaction is durably committed.
func (d *Detector) Commit() {
	if d.state == Indexing {
		d.state = Committing
	}
}

// MarkCommitted transitions Committing back to Indexing for the next
// batch.
func (d *Detector) MarkCommitted() {
	if d.state == Committing {
		d.state = Indexing
	}
}
