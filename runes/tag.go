// Package runes decodes and encodes runestones: the OP_RETURN payloads
// that carry rune etching, minting, and transfer instructions.
package runes

import (
	"math/big"

	"github.com/ordsuite/ordinex/ordinals"
)

// Tag indexes one field inside a runestone's integer payload.
type Tag uint64

const (
	TagBody          Tag = 0
	TagFlags         Tag = 2
	TagRune          Tag = 4
	TagLimit         Tag = 6
	TagTerm          Tag = 8
	TagDeadline      Tag = 10
	TagDefaultOutput Tag = 12
	TagClaim         Tag = 14
	TagBurn          Tag = 126

	TagDivisibility Tag = 1
	TagSpacers      Tag = 3
	TagSymbol       Tag = 5
	TagNop          Tag = 127
)

// take removes and returns the value for the tag, if present.
func (t Tag) take(fields map[uint64]*big.Int) (*big.Int, bool) {
	v, ok := fields[uint64(t)]
	if ok {
		delete(fields, uint64(t))
	}
	return v, ok
}

// encode appends tag then value as a pair of biased-varints onto dst.
func (t Tag) encode(value *big.Int, dst []byte) []byte {
	dst = ordinals.AppendVarint(dst, new(big.Int).SetUint64(uint64(t)))
	dst = ordinals.AppendVarint(dst, value)
	return dst
}
