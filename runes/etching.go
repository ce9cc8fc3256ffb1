package runes

import "math/big"

// Mint carries the optional limit, term, and deadline an etching assigns
// to open minting.
type Mint struct {
	Deadline *uint32
	Limit    *big.Int
	Term     *uint32
}

// Etching is the rune-creation payload of a runestone.
type Etching struct {
	Divisibility uint8
	Rune         *Rune
	Spacers      uint32
	Symbol       *rune
	Mint         *Mint
}
