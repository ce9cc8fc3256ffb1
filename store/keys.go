package store

import "encoding/binary"

func beUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func beUint32(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

// inscriptionNumberKey maps a signed inscription number onto an
// order-preserving unsigned byte key so negative (cursed) numbers sort
// before zero and positive (blessed) numbers in bbolt's byte-lexical
// cursor order.
func inscriptionNumberKey(n int64) []byte {
	return beUint64(uint64(n) ^ (1 << 63))
}

func decodeInscriptionNumberKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// compositeKey concatenates a prefix and suffix for multi-map buckets,
// where every (prefix, suffix) pair is its own row.
func compositeKey(prefix, suffix []byte) []byte {
	k := make([]byte, len(prefix)+len(suffix))
	copy(k, prefix)
	copy(k[len(prefix):], suffix)
	return k
}
