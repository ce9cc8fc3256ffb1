package ordinals

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutPoint identifies a transaction output.
type OutPoint struct {
	Txid chainhash.Hash
	Vout uint32
}

func (p OutPoint) String() string {
	return fmt.Sprintf("%s:%d", p.Txid, p.Vout)
}

// NullOutPoint is the sentinel (all-zero txid, vout 0) outpoint that carries
// sats sent to provably-unspendable outputs and fees burned by runestones.
var NullOutPoint = OutPoint{}

// EncodeOutPoint packs an outpoint as txid(32 bytes) || vout(4 bytes LE),
// matching the wire ordering bitcoind itself uses for txids.
func EncodeOutPoint(p OutPoint) []byte {
	out := make([]byte, 36)
	copy(out[:32], p.Txid[:])
	binary.LittleEndian.PutUint32(out[32:], p.Vout)
	return out
}

// DecodeOutPoint unpacks the format produced by EncodeOutPoint.
func DecodeOutPoint(b []byte) (OutPoint, error) {
	if len(b) != 36 {
		return OutPoint{}, fmt.Errorf("outpoint: expected 36 bytes, got %d", len(b))
	}
	var p OutPoint
	copy(p.Txid[:], b[:32])
	p.Vout = binary.LittleEndian.Uint32(b[32:])
	return p, nil
}

// SatPoint locates a specific sat within a transaction output.
type SatPoint struct {
	OutPoint OutPoint
	Offset   uint64
}

func (p SatPoint) String() string {
	return fmt.Sprintf("%s:%d", p.OutPoint, p.Offset)
}

// EncodeSatPoint packs a satpoint as outpoint(36 bytes) || offset(8 bytes LE).
func EncodeSatPoint(p SatPoint) []byte {
	out := make([]byte, 44)
	copy(out[:36], EncodeOutPoint(p.OutPoint))
	binary.LittleEndian.PutUint64(out[36:], p.Offset)
	return out
}

// DecodeSatPoint unpacks the format produced by EncodeSatPoint.
func DecodeSatPoint(b []byte) (SatPoint, error) {
	if len(b) != 44 {
		return SatPoint{}, fmt.Errorf("satpoint: expected 44 bytes, got %d", len(b))
	}
	op, err := DecodeOutPoint(b[:36])
	if err != nil {
		return SatPoint{}, err
	}
	return SatPoint{OutPoint: op, Offset: binary.LittleEndian.Uint64(b[36:])}, nil
}

// InscriptionId identifies an inscription by the transaction whose witness
// carried its envelope and the envelope's index within that transaction.
type InscriptionId struct {
	Txid  chainhash.Hash
	Index uint32
}

func (id InscriptionId) String() string {
	return fmt.Sprintf("%si%d", id.Txid, id.Index)
}

// EncodeInscriptionId packs an inscription id as txid(32) || index(4 LE).
func EncodeInscriptionId(id InscriptionId) []byte {
	out := make([]byte, 36)
	copy(out[:32], id.Txid[:])
	binary.LittleEndian.PutUint32(out[32:], id.Index)
	return out
}

// DecodeInscriptionId unpacks the format produced by EncodeInscriptionId.
func DecodeInscriptionId(b []byte) (InscriptionId, error) {
	if len(b) != 36 {
		return InscriptionId{}, fmt.Errorf("inscription id: expected 36 bytes, got %d", len(b))
	}
	var id InscriptionId
	copy(id.Txid[:], b[:32])
	id.Index = binary.LittleEndian.Uint32(b[32:])
	return id, nil
}
