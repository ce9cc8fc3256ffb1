package runes

import "math/big"

// Edict moves amount units of the rune identified by Id to the
// transaction's Output-th output (or, per the even-split rule, to every
// non-OP_RETURN output when Output equals len(outputs)).
type Edict struct {
	Id     RuneId
	Amount *big.Int
	Output uint32
}
