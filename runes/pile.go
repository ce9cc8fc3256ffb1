package runes

import (
	"math/big"
	"strings"
)

// Pile is a balance of some rune rendered with its etching's divisibility
// and symbol.
type Pile struct {
	Amount       *big.Int
	Divisibility uint8
	Symbol       *rune
}

func (p Pile) String() string {
	cutoff := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Divisibility)), nil)

	whole, fractional := new(big.Int), new(big.Int)
	whole.DivMod(p.Amount, cutoff, fractional)

	var b strings.Builder
	if fractional.Sign() == 0 {
		b.WriteString(whole.String())
	} else {
		width := int(p.Divisibility)
		for fractional.Sign() != 0 && new(big.Int).Mod(fractional, big.NewInt(10)).Sign() == 0 {
			fractional.Div(fractional, big.NewInt(10))
			width--
		}
		digits := fractional.String()
		for len(digits) < width {
			digits = "0" + digits
		}
		b.WriteString(whole.String())
		b.WriteByte('.')
		b.WriteString(digits)
	}

	if p.Symbol != nil {
		b.WriteRune(' ')
		b.WriteRune(*p.Symbol)
	}

	return b.String()
}
