// Package store is the crash-safe, ordered key-value layer the indexer
// persists every derived table to: sat ranges, inscriptions, runes,
// statistics, and the reorg undo log. It is built on go.etcd.io/bbolt,
// one bucket per logical table, with a JSON manifest committed atomically
// alongside each batch for crash recovery.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// SchemaVersion is bumped whenever a bucket layout or key encoding
// changes incompatibly. The store refuses to open a datadir stamped with
// a newer schema version than it understands.
const SchemaVersion uint32 = 1

var (
	bucketHeaders       = []byte("height_to_header")
	bucketStatistics    = []byte("statistics")
	bucketSatRanges     = []byte("outpoint_to_sat_ranges")
	bucketRareSats      = []byte("sat_to_satpoint")
	bucketIDToSeq       = []byte("inscription_id_to_sequence")
	bucketNumberToSeq   = []byte("inscription_number_to_sequence")
	bucketSeqToEntry    = []byte("sequence_to_entry")
	bucketSeqToSatpoint = []byte("sequence_to_satpoint")
	bucketSatpointToSeq = []byte("satpoint_to_sequence")
	bucketSatToSeq      = []byte("sat_to_sequence")
	bucketSeqToChildren = []byte("sequence_to_children")
	bucketHeightToLast  = []byte("height_to_last_sequence")
	bucketHomeInscr     = []byte("home_inscriptions")
	bucketContentType   = []byte("content_type_to_count")
	bucketOutpointRunes = []byte("outpoint_to_rune_balances")
	bucketRuneToID      = []byte("rune_to_rune_id")
	bucketIDToRuneEntry = []byte("rune_id_to_rune_entry")
	bucketTxidToRune    = []byte("txid_to_rune")
	bucketSeqToRuneID   = []byte("sequence_to_rune_id")
	bucketUndo          = []byte("undo_by_height")

	allBuckets = [][]byte{
		bucketHeaders, bucketStatistics, bucketSatRanges, bucketRareSats,
		bucketIDToSeq, bucketNumberToSeq, bucketSeqToEntry, bucketSeqToSatpoint,
		bucketSatpointToSeq, bucketSatToSeq, bucketSeqToChildren, bucketHeightToLast,
		bucketHomeInscr, bucketContentType, bucketOutpointRunes, bucketRuneToID,
		bucketIDToRuneEntry, bucketTxidToRune, bucketSeqToRuneID, bucketUndo,
	}
)

// DB is the indexer's persistent store.
type DB struct {
	dir      string
	db       *bolt.DB
	manifest *Manifest
}

// Open creates or opens the store rooted at dir. The manifest is read if
// present; a fresh store starts with an empty manifest stamped at the
// current schema version.
func Open(dir string) (*DB, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	path := filepath.Join(dir, "index.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}

	d := &DB{dir: dir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			m = &Manifest{SchemaVersion: SchemaVersion}
			if err := writeManifestAtomic(dir, m); err != nil {
				_ = bdb.Close()
				return nil, err
			}
		} else {
			_ = bdb.Close()
			return nil, fmt.Errorf("store: read manifest: %w", err)
		}
	}
	if m.SchemaVersion > SchemaVersion {
		_ = bdb.Close()
		return nil, fmt.Errorf("store: manifest schema_version %d newer than supported %d", m.SchemaVersion, SchemaVersion)
	}
	d.manifest = m

	return d, nil
}

// Close releases the underlying bbolt handle.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Dir is the root directory the store was opened against.
func (d *DB) Dir() string { return d.dir }

// Manifest returns the in-memory manifest snapshot.
func (d *DB) Manifest() *Manifest { return d.manifest }

// SetManifest persists m atomically and updates the in-memory copy.
func (d *DB) SetManifest(m *Manifest) error {
	if err := writeManifestAtomic(d.dir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// Update runs fn inside a read-write bbolt transaction.
func (d *DB) Update(fn func(*bolt.Tx) error) error {
	return d.db.Update(fn)
}

// View runs fn inside a read-only bbolt transaction.
func (d *DB) View(fn func(*bolt.Tx) error) error {
	return d.db.View(fn)
}
