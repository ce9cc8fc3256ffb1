package runes

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// RuneId identifies an etching by the block it was etched in and its
// position among etchings in that block.
type RuneId struct {
	Height uint32
	Index  uint16
}

func (id RuneId) String() string {
	return fmt.Sprintf("%d:%d", id.Height, id.Index)
}

// ParseRuneId parses the "height:index" form.
func ParseRuneId(s string) (RuneId, error) {
	height, index, ok := strings.Cut(s, ":")
	if !ok {
		return RuneId{}, fmt.Errorf("runes: invalid rune id %q", s)
	}
	h, err := strconv.ParseUint(height, 10, 32)
	if err != nil {
		return RuneId{}, fmt.Errorf("runes: invalid rune id height %q: %w", height, err)
	}
	i, err := strconv.ParseUint(index, 10, 16)
	if err != nil {
		return RuneId{}, fmt.Errorf("runes: invalid rune id index %q: %w", index, err)
	}
	return RuneId{Height: uint32(h), Index: uint16(i)}, nil
}

// ToBig packs the id as height<<16 | index, the representation used inside
// runestone delta-encoded edict ids.
func (id RuneId) ToBig() *big.Int {
	n := new(big.Int).SetUint64(uint64(id.Height))
	n.Lsh(n, 16)
	n.Or(n, big.NewInt(int64(id.Index)))
	return n
}

// RuneIdFromBig unpacks the ToBig representation.
func RuneIdFromBig(n *big.Int) (RuneId, error) {
	if n.Sign() < 0 {
		return RuneId{}, fmt.Errorf("runes: negative rune id")
	}
	height := new(big.Int).Rsh(n, 16)
	if !height.IsUint64() || height.Uint64() > 0xffffffff {
		return RuneId{}, fmt.Errorf("runes: rune id height out of range")
	}
	index := new(big.Int).And(n, big.NewInt(0xffff))
	return RuneId{Height: uint32(height.Uint64()), Index: uint16(index.Uint64())}, nil
}
