package runes

import (
	"math/big"
	"testing"
)

func TestRuneNameRoundTrip(t *testing.T) {
	cases := []struct {
		n    int64
		name string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
	}
	for _, c := range cases {
		r := NewRune(big.NewInt(c.n))
		if got := r.String(); got != c.name {
			t.Errorf("Rune(%d).String() = %q, want %q", c.n, got, c.name)
		}
		parsed, err := ParseRune(c.name)
		if err != nil {
			t.Fatalf("ParseRune(%q): %v", c.name, err)
		}
		if parsed.Value.Cmp(big.NewInt(c.n)) != 0 {
			t.Errorf("ParseRune(%q) = %s, want %d", c.name, parsed.Value, c.n)
		}
	}
}

func TestRuneMaxName(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	max.Sub(max, big.NewInt(1))
	r := NewRune(max)
	if got := r.String(); got != "BCGDENLQRQWDSLRUGSNLBTMFIJAV" {
		t.Fatalf("max rune name = %q", got)
	}
}

func TestParseRuneInvalidCharacter(t *testing.T) {
	if _, err := ParseRune("foo"); err == nil {
		t.Fatal("expected error for lowercase rune name")
	}
}

func TestIsReserved(t *testing.T) {
	if NewRune(big.NewInt(0)).IsReserved() {
		t.Fatal("rune 0 should not be reserved")
	}
	if !Reserved(big.NewInt(0)).IsReserved() {
		t.Fatal("Reserved(0) should be reserved")
	}
}

func TestSpacedRuneRoundTrip(t *testing.T) {
	sr, err := ParseSpacedRune("UNCOMMON.GOODS")
	if err != nil {
		t.Fatalf("ParseSpacedRune: %v", err)
	}
	if got := sr.String(); got != "UNCOMMON•GOODS" {
		t.Fatalf("String() = %q", got)
	}
}

func TestSpacedRuneLeadingSpacer(t *testing.T) {
	if _, err := ParseSpacedRune(".A"); err == nil {
		t.Fatal("expected error for leading spacer")
	}
}

func TestSpacedRuneTrailingSpacer(t *testing.T) {
	if _, err := ParseSpacedRune("A."); err == nil {
		t.Fatal("expected error for trailing spacer")
	}
}

func TestSpacedRuneDoubleSpacer(t *testing.T) {
	if _, err := ParseSpacedRune("A..B"); err == nil {
		t.Fatal("expected error for double spacer")
	}
}

func TestRuneIdRoundTrip(t *testing.T) {
	id := RuneId{Height: 840000, Index: 42}
	s := id.String()
	parsed, err := ParseRuneId(s)
	if err != nil {
		t.Fatalf("ParseRuneId(%q): %v", s, err)
	}
	if parsed != id {
		t.Fatalf("round trip: got %+v, want %+v", parsed, id)
	}

	packed := id.ToBig()
	unpacked, err := RuneIdFromBig(packed)
	if err != nil {
		t.Fatalf("RuneIdFromBig: %v", err)
	}
	if unpacked != id {
		t.Fatalf("packed round trip: got %+v, want %+v", unpacked, id)
	}
}

func TestPileString(t *testing.T) {
	p := Pile{Amount: big.NewInt(123450), Divisibility: 3}
	if got := p.String(); got != "123.45" {
		t.Fatalf("Pile.String() = %q, want %q", got, "123.45")
	}
	p2 := Pile{Amount: big.NewInt(100000), Divisibility: 3}
	if got := p2.String(); got != "100" {
		t.Fatalf("Pile.String() = %q, want %q", got, "100")
	}
}
