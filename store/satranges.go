package store

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
)

// GetSatRanges returns the sat ranges stored for an outpoint, or nil if
// the outpoint is unspent-but-untracked or already spent.
func GetSatRanges(tx *bolt.Tx, outpoint ordinals.OutPoint) ([]ordinals.SatRange, error) {
	v := tx.Bucket(bucketSatRanges).Get(ordinals.EncodeOutPoint(outpoint))
	if v == nil {
		return nil, nil
	}
	return ordinals.DecodeSatRanges(v)
}

// PutSatRanges stores the ranges for an outpoint, overwriting any
// existing entry.
func PutSatRanges(tx *bolt.Tx, outpoint ordinals.OutPoint, ranges []ordinals.SatRange) error {
	return tx.Bucket(bucketSatRanges).Put(ordinals.EncodeOutPoint(outpoint), ordinals.EncodeSatRanges(ranges))
}

// DeleteSatRanges drops the stored ranges for a now-spent outpoint.
func DeleteSatRanges(tx *bolt.Tx, outpoint ordinals.OutPoint) error {
	return tx.Bucket(bucketSatRanges).Delete(ordinals.EncodeOutPoint(outpoint))
}

// PutRareSat records a rare sat's current location in the rare-sat index.
func PutRareSat(tx *bolt.Tx, sat ordinals.Sat, point ordinals.SatPoint) error {
	return tx.Bucket(bucketRareSats).Put(beUint64(uint64(sat)), ordinals.EncodeSatPoint(point))
}

// GetRareSat looks up a rare sat's current location.
func GetRareSat(tx *bolt.Tx, sat ordinals.Sat) (ordinals.SatPoint, bool, error) {
	v := tx.Bucket(bucketRareSats).Get(beUint64(uint64(sat)))
	if v == nil {
		return ordinals.SatPoint{}, false, nil
	}
	sp, err := ordinals.DecodeSatPoint(v)
	if err != nil {
		return ordinals.SatPoint{}, false, err
	}
	return sp, true, nil
}

// ListRareSats returns every (sat, satpoint) pair in sat order, optionally
// starting after the given sat for pagination.
func ListRareSats(tx *bolt.Tx, after ordinals.Sat, limit int) ([]ordinals.Sat, []ordinals.SatPoint, error) {
	b := tx.Bucket(bucketRareSats)
	c := b.Cursor()

	var sats []ordinals.Sat
	var points []ordinals.SatPoint

	start := beUint64(uint64(after) + 1)
	for k, v := c.Seek(start); k != nil && (limit <= 0 || len(sats) < limit); k, v = c.Next() {
		sp, err := ordinals.DecodeSatPoint(v)
		if err != nil {
			return nil, nil, err
		}
		sats = append(sats, ordinals.Sat(beUint64ToUint64(k)))
		points = append(points, sp)
	}
	return sats, points, nil
}

// ListSatRanges enumerates every tracked (outpoint, ranges) pair, in
// outpoint byte order, for full-index dumps and reindex verification.
func ListSatRanges(tx *bolt.Tx, prefix []byte) (map[ordinals.OutPoint][]ordinals.SatRange, error) {
	b := tx.Bucket(bucketSatRanges)
	c := b.Cursor()

	out := map[ordinals.OutPoint][]ordinals.SatRange{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if len(prefix) > 0 && !bytes.HasPrefix(k, prefix) {
			continue
		}
		op, err := ordinals.DecodeOutPoint(k)
		if err != nil {
			return nil, err
		}
		ranges, err := ordinals.DecodeSatRanges(v)
		if err != nil {
			return nil, err
		}
		out[op] = ranges
	}
	return out, nil
}

func beUint64ToUint64(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n
}
