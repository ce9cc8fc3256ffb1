package ordinals

import "fmt"

// SatRange is a half-open [Start, End) interval on the sat axis.
type SatRange struct {
	Start Sat
	End   Sat
}

// Size is the number of sats the range spans.
func (r SatRange) Size() uint64 {
	return uint64(r.End) - uint64(r.Start)
}

// Split divides r into a prefix of exactly size sats and the remainder.
// size must be <= r.Size().
func (r SatRange) Split(size uint64) (prefix, remainder SatRange) {
	mid := r.Start + Sat(size)
	return SatRange{r.Start, mid}, SatRange{mid, r.End}
}

// EncodeSatRange packs a SatRange into the 11-byte wire format: one
// 88-bit little-endian integer holding the absolute start sat in its low
// 51 bits (enough for every sat in the supply) and the length in sats in
// its upper 37 bits (enough for a full block subsidy), more compactly
// than two raw 8-byte integers.
func EncodeSatRange(r SatRange) [11]byte {
	var out [11]byte
	start := uint64(r.Start)
	length := r.Size()
	lo := start | length<<51
	hi := length >> 13
	for i := 0; i < 8; i++ {
		out[i] = byte(lo >> (8 * i))
	}
	for i := 0; i < 3; i++ {
		out[8+i] = byte(hi >> (8 * i))
	}
	return out
}

// DecodeSatRange unpacks the 11-byte wire format produced by EncodeSatRange.
func DecodeSatRange(b []byte) (SatRange, error) {
	if len(b) != 11 {
		return SatRange{}, fmt.Errorf("sat range: expected 11 bytes, got %d", len(b))
	}
	var lo, hi uint64
	for i := 0; i < 8; i++ {
		lo |= uint64(b[i]) << (8 * i)
	}
	for i := 0; i < 3; i++ {
		hi |= uint64(b[8+i]) << (8 * i)
	}
	start := lo & (1<<51 - 1)
	length := lo>>51 | hi<<13
	return SatRange{Start: Sat(start), End: Sat(start + length)}, nil
}

// EncodeSatRanges packs a sequence of ranges, each 11 bytes, in order.
func EncodeSatRanges(ranges []SatRange) []byte {
	out := make([]byte, 0, 11*len(ranges))
	for _, r := range ranges {
		enc := EncodeSatRange(r)
		out = append(out, enc[:]...)
	}
	return out
}

// DecodeSatRanges unpacks a sequence of 11-byte ranges.
func DecodeSatRanges(b []byte) ([]SatRange, error) {
	if len(b)%11 != 0 {
		return nil, fmt.Errorf("sat ranges: length %d not a multiple of 11", len(b))
	}
	ranges := make([]SatRange, 0, len(b)/11)
	for i := 0; i < len(b); i += 11 {
		r, err := DecodeSatRange(b[i : i+11])
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
