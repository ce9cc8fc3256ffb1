package store

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"
)

// Statistic names the single statistic -> u64 counter table.
type Statistic string

const (
	StatBlessedInscriptions Statistic = "blessed_inscriptions"
	StatCursedInscriptions  Statistic = "cursed_inscriptions"
	StatRunes               Statistic = "runes"
	StatReservedRunes       Statistic = "reserved_runes"
	StatLostSats            Statistic = "lost_sats"
	StatOutputsTraversed    Statistic = "outputs_traversed"
	StatSatRanges           Statistic = "sat_ranges"
	StatIndexHeight         Statistic = "index_height"
	StatUnboundInscriptions Statistic = "unbound_inscriptions"
)

// GetStatistic reads a counter, defaulting to 0.
func GetStatistic(tx *bolt.Tx, name Statistic) uint64 {
	v := tx.Bucket(bucketStatistics).Get([]byte(name))
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

// SetStatistic overwrites a counter.
func SetStatistic(tx *bolt.Tx, name Statistic, value uint64) error {
	return tx.Bucket(bucketStatistics).Put([]byte(name), beUint64(value))
}

// IncrementStatistic adds delta to a counter and returns the new value.
func IncrementStatistic(tx *bolt.Tx, name Statistic, delta uint64) (uint64, error) {
	v := GetStatistic(tx, name) + delta
	return v, SetStatistic(tx, name, v)
}
