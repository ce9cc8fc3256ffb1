package ordinals

import "testing"

func TestRarityScenarios(t *testing.T) {
	cases := []struct {
		sat  Sat
		want Rarity
	}{
		{0, Mythic},
		{1, Common},
		{50 * CoinValue, Uncommon},
		{50 * CoinValue * SubsidyHalvingInterval, Rare},
	}
	for _, c := range cases {
		if got := c.sat.Rarity(); got != c.want {
			t.Errorf("Sat(%d).Rarity() = %s, want %s", c.sat, got, c.want)
		}
	}
}

func TestNameRoundTrip(t *testing.T) {
	if got := Sat(2_099_999_997_689_999).Name(); got != "a" {
		t.Fatalf("Sat(2099999997689999).Name() = %q, want %q", got, "a")
	}
	parsed, err := ParseSat("a")
	if err != nil {
		t.Fatalf("ParseSat(a): %v", err)
	}
	if parsed != 2_099_999_997_689_999 {
		t.Fatalf("ParseSat(a) = %d, want 2099999997689999", parsed)
	}
	if got := Sat(0).Name(); got != "nvtdijuwxlp" {
		t.Fatalf("Sat(0).Name() = %q, want %q", got, "nvtdijuwxlp")
	}
}

func TestDegreeParseConsistency(t *testing.T) {
	// epoch offset 0 and period offset 1 differ by one from the nearest
	// multiple of the halving increment (336), so this is never a
	// reachable (epoch, period) pair for any cycle.
	if _, err := ParseSat("1°0′1″0‴"); err == nil {
		t.Fatal("expected EpochPeriodMismatch error")
	}
	if _, err := ParseSat("1°0′336″0‴"); err != nil {
		t.Fatalf("expected successful parse, got %v", err)
	}
}

func TestSatStringRoundTrip(t *testing.T) {
	for _, s := range []Sat{0, 1, 50 * CoinValue, LastSat, 1_000_000_000_000} {
		decimal := s.Decimal()
		got, err := ParseSat(decimal)
		if err != nil {
			t.Fatalf("ParseSat(%q): %v", decimal, err)
		}
		if got != s {
			t.Fatalf("decimal round trip: got %d, want %d", got, s)
		}

		name := s.Name()
		got, err = ParseSat(name)
		if err != nil {
			t.Fatalf("ParseSat(%q): %v", name, err)
		}
		if got != s {
			t.Fatalf("name round trip: got %d, want %d", got, s)
		}
	}
}

func TestParseSatIntegerRange(t *testing.T) {
	if _, err := ParseSat("2099999997690000"); err == nil {
		t.Fatal("expected out-of-range error for Supply")
	}
	if _, err := ParseSat("2099999997689999"); err != nil {
		t.Fatalf("LastSat should parse: %v", err)
	}
}
