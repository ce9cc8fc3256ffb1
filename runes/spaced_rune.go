package runes

import (
	"fmt"
	"math/bits"
	"strings"
)

// SpacedRune is a rune name together with the bullet-separator positions a
// user chose for display, encoded as a bitmask over the name's characters.
type SpacedRune struct {
	Rune    Rune
	Spacers uint32
}

// ParseSpacedRune parses a name written with '.' or '•' spacers, e.g.
// "UNCOMMON.GOODS".
func ParseSpacedRune(s string) (SpacedRune, error) {
	var name strings.Builder
	var spacers uint32

	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			name.WriteRune(c)
		case c == '.' || c == '•':
			if name.Len() == 0 {
				return SpacedRune{}, fmt.Errorf("runes: leading spacer")
			}
			flag := uint32(1) << (name.Len() - 1)
			if spacers&flag != 0 {
				return SpacedRune{}, fmt.Errorf("runes: double spacer")
			}
			spacers |= flag
		default:
			return SpacedRune{}, fmt.Errorf("runes: invalid character %q", c)
		}
	}

	if int(32-leadingZeros32(spacers)) >= name.Len() {
		return SpacedRune{}, fmt.Errorf("runes: trailing spacer")
	}

	rune_, err := ParseRune(name.String())
	if err != nil {
		return SpacedRune{}, err
	}

	return SpacedRune{Rune: rune_, Spacers: spacers}, nil
}

func leadingZeros32(n uint32) uint32 {
	return uint32(bits.LeadingZeros32(n))
}

func (sr SpacedRune) String() string {
	name := sr.Rune.String()
	var b strings.Builder
	for i, c := range name {
		b.WriteRune(c)
		if i < len(name)-1 && sr.Spacers&(1<<uint(i)) != 0 {
			b.WriteRune('•')
		}
	}
	return b.String()
}
