package store

import (
	bolt "go.etcd.io/bbolt"
)

// PutHeader records the 32-byte block hash connected at height.
func PutHeader(tx *bolt.Tx, height uint32, hash [32]byte) error {
	return tx.Bucket(bucketHeaders).Put(beUint32(height), hash[:])
}

// GetHeader looks up the block hash connected at height.
func GetHeader(tx *bolt.Tx, height uint32) ([32]byte, bool) {
	v := tx.Bucket(bucketHeaders).Get(beUint32(height))
	if v == nil {
		return [32]byte{}, false
	}
	var h [32]byte
	copy(h[:], v)
	return h, true
}

// DeleteHeader removes the recorded block hash at height, used when a
// height is disconnected during rollback.
func DeleteHeader(tx *bolt.Tx, height uint32) error {
	return tx.Bucket(bucketHeaders).Delete(beUint32(height))
}
