// Package query is the indexer's read-only lookup surface: inscription
// lookups by id/number/sequence, sat and satpoint resolution, rune
// balances, and the rare-sat listing. Every function opens (or is
// handed) a read-only store transaction and never mutates the store.
package query

import (
	"fmt"
	"math/big"

	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/store"
)

// Reader wraps a *store.DB to serve read-only lookups on read-only
// snapshots, matching the "readers share read-only snapshots" resource
// policy.
type Reader struct {
	db *store.DB
}

// NewReader wraps db for querying.
func NewReader(db *store.DB) *Reader {
	return &Reader{db: db}
}

// InscriptionById resolves an inscription id to its entry.
func (r *Reader) InscriptionById(id ordinals.InscriptionId) (store.InscriptionEntry, bool, error) {
	var entry store.InscriptionEntry
	var ok bool
	err := r.db.View(func(tx *bolt.Tx) error {
		seq, found := store.SequenceByInscriptionId(tx, id)
		if !found {
			return nil
		}
		e, found2, err := store.GetInscriptionEntryBySequence(tx, seq)
		if err != nil || !found2 {
			return err
		}
		entry, ok = e, true
		return nil
	})
	return entry, ok, err
}

// InscriptionByNumber resolves an inscription's blessed/cursed number
// to its entry.
func (r *Reader) InscriptionByNumber(number int64) (store.InscriptionEntry, bool, error) {
	var entry store.InscriptionEntry
	var ok bool
	err := r.db.View(func(tx *bolt.Tx) error {
		seq, found := store.SequenceByInscriptionNumber(tx, number)
		if !found {
			return nil
		}
		e, found2, err := store.GetInscriptionEntryBySequence(tx, seq)
		if err != nil || !found2 {
			return err
		}
		entry, ok = e, true
		return nil
	})
	return entry, ok, err
}

// InscriptionBySequence resolves a sequence number directly.
func (r *Reader) InscriptionBySequence(seq uint32) (store.InscriptionEntry, bool, error) {
	var entry store.InscriptionEntry
	var ok bool
	err := r.db.View(func(tx *bolt.Tx) error {
		e, found, err := store.GetInscriptionEntryBySequence(tx, seq)
		if err != nil || !found {
			return err
		}
		entry, ok = e, true
		return nil
	})
	return entry, ok, err
}

// Children returns the sequence numbers of an inscription's children,
// in the order they were inscribed.
func (r *Reader) Children(parentSeq uint32) ([]uint32, error) {
	var children []uint32
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		children, err = store.Children(tx, parentSeq)
		return err
	})
	return children, err
}

// SatpointOf resolves an inscription's current satpoint.
func (r *Reader) SatpointOf(seq uint32) (ordinals.SatPoint, bool, error) {
	var point ordinals.SatPoint
	var ok bool
	err := r.db.View(func(tx *bolt.Tx) error {
		p, found, err := store.GetSatpoint(tx, seq)
		if err != nil || !found {
			return err
		}
		point, ok = p, true
		return nil
	})
	return point, ok, err
}

// InscriptionsAtSatpoint lists every inscription sequence number
// currently located at point.
func (r *Reader) InscriptionsAtSatpoint(point ordinals.SatPoint) ([]uint32, error) {
	var seqs []uint32
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		seqs, err = store.SequencesAtSatpoint(tx, point)
		return err
	})
	return seqs, err
}

// InscriptionsOnSat lists every inscription sequence number carried by
// sat.
func (r *Reader) InscriptionsOnSat(sat ordinals.Sat) ([]uint32, error) {
	var seqs []uint32
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		seqs, err = store.SequencesAtSat(tx, sat)
		return err
	})
	return seqs, err
}

// SatRanges returns the sat ranges an outpoint's balance is made of.
func (r *Reader) SatRanges(outpoint ordinals.OutPoint) ([]ordinals.SatRange, error) {
	var ranges []ordinals.SatRange
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		ranges, err = store.GetSatRanges(tx, outpoint)
		return err
	})
	return ranges, err
}

// RareSats lists up to limit rare sats strictly after the given sat,
// for cursor-based pagination.
func (r *Reader) RareSats(after ordinals.Sat, limit int) ([]ordinals.Sat, []ordinals.SatPoint, error) {
	var sats []ordinals.Sat
	var points []ordinals.SatPoint
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		sats, points, err = store.ListRareSats(tx, after, limit)
		return err
	})
	return sats, points, err
}

// RuneBalances returns the rune balances an outpoint carries.
func (r *Reader) RuneBalances(outpoint ordinals.OutPoint) ([]store.RuneBalance, error) {
	var balances []store.RuneBalance
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		balances, err = store.GetOutpointRuneBalances(tx, ordinals.EncodeOutPoint(outpoint))
		return err
	})
	return balances, err
}

// RuneByName resolves a rune's base-26 name value to its ledger entry.
func (r *Reader) RuneByName(name *big.Int) (store.RuneEntry, bool, error) {
	var entry store.RuneEntry
	var ok bool
	err := r.db.View(func(tx *bolt.Tx) error {
		id, found, err := store.RuneIdByName(tx, name)
		if err != nil || !found {
			return err
		}
		e, found2, err := store.GetRuneEntry(tx, id)
		if err != nil || !found2 {
			return err
		}
		entry, ok = e, true
		return nil
	})
	return entry, ok, err
}

// RuneById resolves a rune id directly.
func (r *Reader) RuneById(id store.RuneIdKey) (store.RuneEntry, bool, error) {
	var entry store.RuneEntry
	var ok bool
	err := r.db.View(func(tx *bolt.Tx) error {
		e, found, err := store.GetRuneEntry(tx, id)
		if err != nil || !found {
			return err
		}
		entry, ok = e, true
		return nil
	})
	return entry, ok, err
}

// Tip returns the store manifest's committed tip height and the
// inscription sequence cursor stored for that height: the sequence
// number the next inscription will receive.
func (r *Reader) Tip() (height uint32, lastSequence uint32, err error) {
	m := r.db.Manifest()
	if m == nil {
		return 0, 0, fmt.Errorf("query: store has no manifest")
	}
	h := uint32(m.TipHeight)
	err = r.db.View(func(tx *bolt.Tx) error {
		seq, _ := store.GetHeightLastSequence(tx, h)
		lastSequence = seq
		return nil
	})
	return h, lastSequence, err
}
