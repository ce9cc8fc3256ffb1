package ordinals

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func sampleHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestOutPointRoundTrip(t *testing.T) {
	p := OutPoint{Txid: sampleHash(0xab), Vout: 7}
	enc := EncodeOutPoint(p)
	if len(enc) != 36 {
		t.Fatalf("encoded length = %d, want 36", len(enc))
	}
	got, err := DecodeOutPoint(enc)
	if err != nil {
		t.Fatalf("DecodeOutPoint: %v", err)
	}
	if got != p {
		t.Fatalf("round trip: got %+v, want %+v", got, p)
	}
}

func TestDecodeOutPointRejectsWrongLength(t *testing.T) {
	if _, err := DecodeOutPoint(make([]byte, 35)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestSatPointRoundTrip(t *testing.T) {
	sp := SatPoint{OutPoint: OutPoint{Txid: sampleHash(0x01), Vout: 2}, Offset: 546}
	enc := EncodeSatPoint(sp)
	if len(enc) != 44 {
		t.Fatalf("encoded length = %d, want 44", len(enc))
	}
	got, err := DecodeSatPoint(enc)
	if err != nil {
		t.Fatalf("DecodeSatPoint: %v", err)
	}
	if got != sp {
		t.Fatalf("round trip: got %+v, want %+v", got, sp)
	}
}

func TestNullOutPointIsZero(t *testing.T) {
	if NullOutPoint != (OutPoint{}) {
		t.Fatal("NullOutPoint should be the zero value")
	}
	if NullOutPoint.Vout != 0 {
		t.Fatal("NullOutPoint.Vout should be 0")
	}
}

func TestInscriptionIdRoundTrip(t *testing.T) {
	id := InscriptionId{Txid: sampleHash(0xcd), Index: 3}
	enc := EncodeInscriptionId(id)
	if len(enc) != 36 {
		t.Fatalf("encoded length = %d, want 36", len(enc))
	}
	got, err := DecodeInscriptionId(enc)
	if err != nil {
		t.Fatalf("DecodeInscriptionId: %v", err)
	}
	if got != id {
		t.Fatalf("round trip: got %+v, want %+v", got, id)
	}
	want := id.Txid.String() + "i3"
	if got.String() != want {
		t.Fatalf("String() = %q, want %q", got.String(), want)
	}
}

func TestDecodeInscriptionIdRejectsWrongLength(t *testing.T) {
	if _, err := DecodeInscriptionId(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
