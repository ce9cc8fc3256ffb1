package ordinals

import "math/big"

var (
	big127 = big.NewInt(127)
	big128 = big.NewInt(128)
	big1   = big.NewInt(1)
)

// EncodeVarint encodes n as the ordinals biased-LEB128 varint used inside
// runestone payloads: base-128 digits, most significant first, with every
// non-final byte biased by -1 so that runs of continuation bytes pack more
// densely than plain LEB128. n must be non-negative. Always emits at least
// one byte; 0 encodes as a single 0x00 byte. Values are u128-range (the
// runestone wire format carries rune amounts and ids wider than 64 bits),
// so n is a *big.Int rather than a machine word.
func EncodeVarint(n *big.Int) []byte {
	return AppendVarint(nil, n)
}

// AppendVarint appends the varint encoding of n to dst and returns the
// extended slice.
func AppendVarint(dst []byte, n *big.Int) []byte {
	n = new(big.Int).Set(n)

	var digits []byte
	digits = append(digits, byte(new(big.Int).And(n, big127).Uint64()))

	for n.Cmp(big127) > 0 {
		n.Div(n, big128)
		n.Sub(n, big1)
		digits = append(digits, byte(new(big.Int).And(n, big127).Uint64())|0x80)
	}

	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return append(dst, digits...)
}

// DecodeVarint decodes a single varint from the front of buf, returning the
// value and the number of bytes consumed. A buffer with no terminating byte
// (high bit clear) returns the accumulated value and len(buf) consumed,
// mirroring the reference decoder's behavior on truncated input.
func DecodeVarint(buf []byte) (*big.Int, int) {
	n := new(big.Int)
	for i, b := range buf {
		n.Mul(n, big128)
		if b < 0x80 {
			n.Add(n, big.NewInt(int64(b)))
			return n, i + 1
		}
		n.Add(n, big.NewInt(int64(b)-0x7f))
	}
	return n, len(buf)
}

// EncodeVarintUint64 is a convenience wrapper for the common case of
// encoding a value already known to fit in 64 bits (sequence numbers,
// outputs, block heights used as runestone integers).
func EncodeVarintUint64(n uint64) []byte {
	return EncodeVarint(new(big.Int).SetUint64(n))
}
