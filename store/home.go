package store

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"
)

// HomeInscriptionWindow caps how many of the most recently blessed
// inscriptions are kept in the rolling home list. Unlike the rest of the
// schema this list is a display convenience: it is not undo-logged, so a
// rollback leaves it slightly stale rather than exactly reversed.
const HomeInscriptionWindow = 8

// PutHomeInscription appends seq to the rolling home window, evicting the
// oldest entry once the window exceeds HomeInscriptionWindow.
func PutHomeInscription(tx *bolt.Tx, seq uint32) error {
	b := tx.Bucket(bucketHomeInscr)
	c := b.Cursor()

	var keys [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	var next uint64
	if len(keys) > 0 {
		next = binary.BigEndian.Uint64(keys[len(keys)-1]) + 1
	}
	if err := b.Put(beUint64(next), beUint32(seq)); err != nil {
		return err
	}
	keys = append(keys, beUint64(next))

	for len(keys) > HomeInscriptionWindow {
		if err := b.Delete(keys[0]); err != nil {
			return err
		}
		keys = keys[1:]
	}
	return nil
}

// HomeInscriptions lists the window's sequence numbers, oldest first.
func HomeInscriptions(tx *bolt.Tx) ([]uint32, error) {
	b := tx.Bucket(bucketHomeInscr)
	c := b.Cursor()
	var out []uint32
	for k, v := c.First(); k != nil; k, v = c.Next() {
		out = append(out, binary.BigEndian.Uint32(v))
	}
	return out, nil
}
