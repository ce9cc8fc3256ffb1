package ordinals

import (
	"bytes"
	"testing"
)

func TestSatRangeSplit(t *testing.T) {
	r := SatRange{Start: 100, End: 200}
	prefix, remainder := r.Split(30)
	if prefix != (SatRange{100, 130}) {
		t.Fatalf("prefix = %+v", prefix)
	}
	if remainder != (SatRange{130, 200}) {
		t.Fatalf("remainder = %+v", remainder)
	}
	if prefix.Size()+remainder.Size() != r.Size() {
		t.Fatal("split does not conserve size")
	}
}

func TestSatRangeEncodeDecodeRoundTrip(t *testing.T) {
	cases := []SatRange{
		{0, 0},
		{0, 1},
		{5_000_000_000, 5_000_000_001},
		{Sat(LastSat), Sat(Supply)},
	}
	for _, r := range cases {
		enc := EncodeSatRange(r)
		got, err := DecodeSatRange(enc[:])
		if err != nil {
			t.Fatalf("DecodeSatRange(%+v): %v", r, err)
		}
		if got != r {
			t.Fatalf("round trip: got %+v, want %+v", got, r)
		}
	}
}

func TestSatRangesRoundTrip(t *testing.T) {
	ranges := []SatRange{{0, 100}, {100, 250}, {1_000_000, 2_000_000}}
	enc := EncodeSatRanges(ranges)
	if len(enc) != 11*len(ranges) {
		t.Fatalf("encoded length = %d, want %d", len(enc), 11*len(ranges))
	}
	got, err := DecodeSatRanges(enc)
	if err != nil {
		t.Fatalf("DecodeSatRanges: %v", err)
	}
	if len(got) != len(ranges) {
		t.Fatalf("decoded %d ranges, want %d", len(got), len(ranges))
	}
	for i := range ranges {
		if got[i] != ranges[i] {
			t.Fatalf("range %d: got %+v, want %+v", i, got[i], ranges[i])
		}
	}
	if !bytes.Equal(EncodeSatRanges(got), enc) {
		t.Fatal("re-encoding decoded ranges did not reproduce the original bytes")
	}
}

func TestDecodeSatRangesRejectsMisalignedLength(t *testing.T) {
	if _, err := DecodeSatRanges(make([]byte, 10)); err == nil {
		t.Fatal("expected error for non-multiple-of-11 length")
	}
}
