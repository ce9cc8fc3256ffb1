// Command ordinex-bench is a small conformance/throughput harness: it
// drives the round-trip properties spec.md §8 states as universal
// invariants (varint, sat string forms, runestone encipher/decipher)
// over synthetic input and reports pass/fail counts and throughput,
// in the flag-based single-purpose-tool idiom the daemon's sibling
// utilities use.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"os"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/runes"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ordinex-bench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	suite := fs.String("suite", "all", "suite to run: varint|sat|runestone|all")
	n := fs.Int("n", 10000, "iterations per suite")
	seed := fs.Int64("seed", 1, "deterministic PRNG seed")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rng := rand.New(rand.NewSource(*seed))
	suites := map[string]func(*rand.Rand, int) result{
		"varint":    varintSuite,
		"sat":       satSuite,
		"runestone": runestoneSuite,
	}

	var names []string
	switch *suite {
	case "all":
		names = []string{"varint", "sat", "runestone"}
	default:
		if _, ok := suites[*suite]; !ok {
			fmt.Fprintf(stderr, "unknown suite %q\n", *suite)
			return 2
		}
		names = []string{*suite}
	}

	failed := 0
	for _, name := range names {
		start := time.Now()
		res := suites[name](rng, *n)
		elapsed := time.Since(start)
		fmt.Fprintf(stdout, "%-10s checked=%d failed=%d elapsed=%s rate=%.0f/s\n",
			name, res.checked, res.failed, elapsed.Round(time.Microsecond), float64(res.checked)/elapsed.Seconds())
		for _, f := range res.failures {
			fmt.Fprintf(stdout, "  FAIL: %s\n", f)
		}
		failed += res.failed
	}
	if failed > 0 {
		return 1
	}
	return 0
}

type result struct {
	checked  int
	failed   int
	failures []string
}

func (r *result) fail(format string, args ...any) {
	r.failed++
	if len(r.failures) < 20 {
		r.failures = append(r.failures, fmt.Sprintf(format, args...))
	}
}

// varintSuite checks decode(encode(n)) == (n, len) for random u128-range
// values, per spec.md §8 "decode(encode(n)) == (n, _)".
func varintSuite(rng *rand.Rand, n int) result {
	var r result
	cases := []*big.Int{big.NewInt(0), big.NewInt(127), big.NewInt(128)}
	max128 := new(big.Int).Lsh(big.NewInt(1), 128)
	max128.Sub(max128, big.NewInt(1))
	cases = append(cases, max128)

	for i := 0; i < n; i++ {
		var v *big.Int
		if i < len(cases) {
			v = cases[i]
		} else {
			bits := rng.Intn(128) + 1
			v = new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
		}
		r.checked++
		encoded := ordinals.EncodeVarint(v)
		decoded, consumed := ordinals.DecodeVarint(encoded)
		if consumed != len(encoded) || decoded.Cmp(v) != 0 {
			r.fail("varint round trip: n=%s encoded=%x decoded=%s consumed=%d", v, encoded, decoded, consumed)
		}
	}
	return r
}

// satSuite checks Sat.FromString(sat.String()) == sat for decimal and
// name forms across the valid sat range, per spec.md §8's round-trip law.
func satSuite(rng *rand.Rand, n int) result {
	var r result
	cases := []ordinals.Sat{0, 1, ordinals.LastSat, 50 * ordinals.CoinValue, 50 * ordinals.CoinValue * ordinals.SubsidyHalvingInterval}
	for i := 0; i < n; i++ {
		var s ordinals.Sat
		if i < len(cases) {
			s = cases[i]
		} else {
			s = ordinals.Sat(rng.Int63n(ordinals.Supply))
		}
		r.checked++

		if decimal := s.Decimal(); true {
			got, err := ordinals.ParseSat(decimal)
			if err != nil || got != s {
				r.fail("sat decimal round trip: sat=%d decimal=%s got=%d err=%v", s, decimal, got, err)
			}
		}

		name := s.Name()
		got, err := ordinals.ParseSat(name)
		if err != nil || got != s {
			r.fail("sat name round trip: sat=%d name=%s got=%d err=%v", s, name, got, err)
		}
	}
	return r
}

// runestoneSuite checks runestone.Encipher().Decipher() round trips a
// random edict set, per spec.md §8's "runestone.encipher().decipher()
// == Some(same)" law.
func runestoneSuite(rng *rand.Rand, n int) result {
	var r result
	for i := 0; i < n; i++ {
		r.checked++

		amount := big.NewInt(rng.Int63n(1_000_000) + 1)
		rs := &runes.Runestone{
			Edicts: []runes.Edict{{
				Id:     runes.RuneId{Height: uint32(rng.Intn(800_000)), Index: uint16(rng.Intn(1 << 16))},
				Amount: amount,
				Output: 0,
			}},
		}

		script, err := rs.Encipher()
		if err != nil {
			r.fail("encipher: %v", err)
			continue
		}

		tx := wire.NewMsgTx(2)
		tx.AddTxOut(wire.NewTxOut(0, script))
		got, err := runes.Decipher(tx)
		if err != nil {
			r.fail("decipher: %v", err)
			continue
		}
		if got == nil || len(got.Edicts) != 1 {
			r.fail("decipher: expected one edict, got %+v", got)
			continue
		}
		want := rs.Edicts[0]
		have := got.Edicts[0]
		if have.Id != want.Id || have.Output != want.Output || have.Amount.Cmp(want.Amount) != 0 {
			r.fail("runestone round trip mismatch: want=%+v have=%+v", want, have)
		}
	}
	return r
}
