package runes

import (
	"fmt"
	"math/big"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/ordinals"
)

// MaxDivisibility bounds an etching's divisibility field.
const MaxDivisibility = 38

// MaxLimit caps a per-mint limit at 2^64.
var MaxLimit = new(big.Int).Lsh(big.NewInt(1), 64)

// reserved is the first rune number set aside for runes etched without a
// name (reserved runes), keyed off height rather than name auction.
var reserved, _ = new(big.Int).SetString("6402364363415443603228541259936211926", 10)

// steps holds the cumulative name-space size at each unlock length, used by
// MinimumAtHeight to interpolate the minimum etchable rune as the name
// auction progresses.
var steps = func() []*big.Int {
	raw := []string{
		"0", "26", "702", "18278", "475254", "12356630", "321272406",
		"8353082582", "217180147158", "5646683826134", "146813779479510",
		"3817158266467286", "99246114928149462", "2580398988131886038",
		"67090373691429037014", "1744349715977154962390",
		"45353092615406029022166", "1179180408000556754576342",
		"30658690608014475618984918", "797125955808376366093607894",
		"20725274851017785518433805270", "538857146126462423479278937046",
		"14010285799288023010461252363222", "364267430781488598271992561443798",
		"9470953200318703555071806597538774", "246244783208286292431866971536008150",
		"6402364363415443603228541259936211926",
		"166461473448801533683942072758341510102",
	}
	out := make([]*big.Int, len(raw))
	for i, s := range raw {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			panic("runes: bad steps literal")
		}
		out[i] = n
	}
	return out
}()

// Rune is a rune's integer name, the inverse of its base-26 uppercase
// string encoding.
type Rune struct {
	Value *big.Int
}

// NewRune wraps n as a Rune.
func NewRune(n *big.Int) Rune {
	return Rune{Value: new(big.Int).Set(n)}
}

// IsReserved reports whether the rune falls in the reserved range set
// aside for unnamed etchings.
func (r Rune) IsReserved() bool {
	return r.Value.Cmp(reserved) >= 0
}

// Reserved returns the nth reserved rune.
func Reserved(n *big.Int) Rune {
	return NewRune(new(big.Int).Add(reserved, n))
}

// MinimumAtHeight computes the lowest rune name etchable at height, given
// the twelve-interval unlock schedule that begins at the chain's first
// rune height and runs for one halving epoch.
func MinimumAtHeight(chain chainparams.Chain, height ordinals.Height) Rune {
	offset := uint64(height) + 1

	const intervals = 12
	interval := uint64(chainparams.SubsidyHalvingInterval) / intervals

	start := uint64(chain.FirstRuneHeight())
	end := start + uint64(chainparams.SubsidyHalvingInterval)

	if offset < start {
		return NewRune(steps[12])
	}
	if offset >= end {
		return NewRune(big.NewInt(0))
	}

	progress := offset - start
	length := intervals - progress/interval

	endStep := steps[length-1]
	startStep := steps[length]

	remainder := big.NewInt(int64(progress % interval))

	diff := new(big.Int).Sub(startStep, endStep)
	diff.Mul(diff, remainder)
	diff.Div(diff, big.NewInt(int64(interval)))

	return NewRune(new(big.Int).Sub(startStep, diff))
}

const runeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// String renders the rune as its base-26 uppercase name.
func (r Rune) String() string {
	n := new(big.Int).Set(r.Value)

	max := new(big.Int).Lsh(big.NewInt(1), 128)
	max.Sub(max, big.NewInt(1))
	if n.Cmp(max) == 0 {
		return "BCGDENLQRQWDSLRUGSNLBTMFIJAV"
	}

	n.Add(n, big.NewInt(1))

	var b []byte
	twentySix := big.NewInt(26)
	for n.Sign() > 0 {
		n.Sub(n, big.NewInt(1))
		mod := new(big.Int)
		n.DivMod(n, twentySix, mod)
		b = append(b, runeAlphabet[mod.Int64()])
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// ParseRune parses a base-26 uppercase rune name.
func ParseRune(s string) (Rune, error) {
	if s == "" {
		return Rune{}, fmt.Errorf("runes: empty rune name")
	}
	x := big.NewInt(0)
	twentySix := big.NewInt(26)
	for i, c := range s {
		if i > 0 {
			x.Add(x, big.NewInt(1))
		}
		x.Mul(x, twentySix)
		if c < 'A' || c > 'Z' {
			return Rune{}, fmt.Errorf("runes: invalid character %q in rune name", c)
		}
		x.Add(x, big.NewInt(int64(c-'A')))
	}
	return NewRune(x), nil
}
