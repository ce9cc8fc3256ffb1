package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
)

// noSat and noParent are sentinels marking an absent optional field in
// InscriptionEntry's fixed-width encoding.
const noSat = ^uint64(0)
const noParent = ^uint32(0)

// InscriptionEntry is the persisted row for one inscription, keyed by its
// sequence number.
type InscriptionEntry struct {
	Id                ordinals.InscriptionId
	SequenceNumber    uint32
	InscriptionNumber int64
	Sat               *ordinals.Sat
	Height            uint32
	Fee               uint64
	Timestamp         int64
	Charms            uint16
	Parent            *uint32
}

func encodeInscriptionEntry(e InscriptionEntry) []byte {
	b := make([]byte, 0, 36+4+8+8+4+8+8+2+4)
	b = append(b, ordinals.EncodeInscriptionId(e.Id)...)
	b = append(b, beUint32(e.SequenceNumber)...)
	b = append(b, beUint64(uint64(e.InscriptionNumber))...)
	sat := noSat
	if e.Sat != nil {
		sat = uint64(*e.Sat)
	}
	b = append(b, beUint64(sat)...)
	b = append(b, beUint32(e.Height)...)
	b = append(b, beUint64(e.Fee)...)
	b = append(b, beUint64(uint64(e.Timestamp))...)
	b = append(b, byte(e.Charms>>8), byte(e.Charms))
	parent := noParent
	if e.Parent != nil {
		parent = *e.Parent
	}
	b = append(b, beUint32(parent)...)
	return b
}

func decodeInscriptionEntry(b []byte) (InscriptionEntry, error) {
	const want = 36 + 4 + 8 + 8 + 4 + 8 + 8 + 2 + 4
	if len(b) != want {
		return InscriptionEntry{}, fmt.Errorf("store: inscription entry: expected %d bytes, got %d", want, len(b))
	}
	id, err := ordinals.DecodeInscriptionId(b[:36])
	if err != nil {
		return InscriptionEntry{}, err
	}
	i := 36
	seq := binary.BigEndian.Uint32(b[i:])
	i += 4
	number := int64(binary.BigEndian.Uint64(b[i:]))
	i += 8
	satRaw := binary.BigEndian.Uint64(b[i:])
	i += 8
	var sat *ordinals.Sat
	if satRaw != noSat {
		s := ordinals.Sat(satRaw)
		sat = &s
	}
	height := binary.BigEndian.Uint32(b[i:])
	i += 4
	fee := binary.BigEndian.Uint64(b[i:])
	i += 8
	ts := int64(binary.BigEndian.Uint64(b[i:]))
	i += 8
	charms := uint16(b[i])<<8 | uint16(b[i+1])
	i += 2
	parentRaw := binary.BigEndian.Uint32(b[i:])
	var parent *uint32
	if parentRaw != noParent {
		p := parentRaw
		parent = &p
	}
	return InscriptionEntry{
		Id: id, SequenceNumber: seq, InscriptionNumber: number, Sat: sat,
		Height: height, Fee: fee, Timestamp: ts, Charms: charms, Parent: parent,
	}, nil
}

// PutInscriptionEntry writes the entry and its id/number lookup rows.
func PutInscriptionEntry(tx *bolt.Tx, e InscriptionEntry) error {
	if err := tx.Bucket(bucketSeqToEntry).Put(beUint32(e.SequenceNumber), encodeInscriptionEntry(e)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketIDToSeq).Put(ordinals.EncodeInscriptionId(e.Id), beUint32(e.SequenceNumber)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketNumberToSeq).Put(inscriptionNumberKey(e.InscriptionNumber), beUint32(e.SequenceNumber)); err != nil {
		return err
	}
	if e.Parent != nil {
		if err := tx.Bucket(bucketSeqToChildren).Put(compositeKey(beUint32(*e.Parent), beUint32(e.SequenceNumber)), nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteInscriptionEntry removes the entry and its lookup rows (used by
// reorg rollback).
func DeleteInscriptionEntry(tx *bolt.Tx, e InscriptionEntry) error {
	if err := tx.Bucket(bucketSeqToEntry).Delete(beUint32(e.SequenceNumber)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketIDToSeq).Delete(ordinals.EncodeInscriptionId(e.Id)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketNumberToSeq).Delete(inscriptionNumberKey(e.InscriptionNumber)); err != nil {
		return err
	}
	if e.Parent != nil {
		if err := tx.Bucket(bucketSeqToChildren).Delete(compositeKey(beUint32(*e.Parent), beUint32(e.SequenceNumber))); err != nil {
			return err
		}
	}
	return nil
}

// GetInscriptionEntryBySequence looks up an entry by sequence number.
func GetInscriptionEntryBySequence(tx *bolt.Tx, seq uint32) (InscriptionEntry, bool, error) {
	v := tx.Bucket(bucketSeqToEntry).Get(beUint32(seq))
	if v == nil {
		return InscriptionEntry{}, false, nil
	}
	e, err := decodeInscriptionEntry(v)
	return e, err == nil, err
}

// SequenceByInscriptionId resolves an inscription id to its sequence
// number.
func SequenceByInscriptionId(tx *bolt.Tx, id ordinals.InscriptionId) (uint32, bool) {
	v := tx.Bucket(bucketIDToSeq).Get(ordinals.EncodeInscriptionId(id))
	if v == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// SequenceByInscriptionNumber resolves a signed inscription number to its
// sequence number.
func SequenceByInscriptionNumber(tx *bolt.Tx, number int64) (uint32, bool) {
	v := tx.Bucket(bucketNumberToSeq).Get(inscriptionNumberKey(number))
	if v == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// Children lists a parent's direct children, in sequence-number order.
func Children(tx *bolt.Tx, parent uint32) ([]uint32, error) {
	b := tx.Bucket(bucketSeqToChildren)
	c := b.Cursor()
	prefix := beUint32(parent)

	var children []uint32
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		children = append(children, binary.BigEndian.Uint32(k[4:]))
	}
	return children, nil
}

// PutSatpoint records an inscription's current location, maintaining both
// directions of the sequence<->satpoint relation.
func PutSatpoint(tx *bolt.Tx, seq uint32, point ordinals.SatPoint) error {
	if old := tx.Bucket(bucketSeqToSatpoint).Get(beUint32(seq)); old != nil {
		if err := tx.Bucket(bucketSatpointToSeq).Delete(compositeKey(old, beUint32(seq))); err != nil {
			return err
		}
	}
	enc := ordinals.EncodeSatPoint(point)
	if err := tx.Bucket(bucketSeqToSatpoint).Put(beUint32(seq), enc); err != nil {
		return err
	}
	return tx.Bucket(bucketSatpointToSeq).Put(compositeKey(enc, beUint32(seq)), nil)
}

// GetSatpoint looks up an inscription's current location.
func GetSatpoint(tx *bolt.Tx, seq uint32) (ordinals.SatPoint, bool, error) {
	v := tx.Bucket(bucketSeqToSatpoint).Get(beUint32(seq))
	if v == nil {
		return ordinals.SatPoint{}, false, nil
	}
	sp, err := ordinals.DecodeSatPoint(v)
	return sp, err == nil, err
}

// SequencesAtSatpoint lists inscriptions whose current satpoint matches
// point exactly.
func SequencesAtSatpoint(tx *bolt.Tx, point ordinals.SatPoint) ([]uint32, error) {
	b := tx.Bucket(bucketSatpointToSeq)
	c := b.Cursor()
	prefix := ordinals.EncodeSatPoint(point)

	var seqs []uint32
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		seqs = append(seqs, binary.BigEndian.Uint32(k[44:]))
	}
	return seqs, nil
}

// SequenceOffset pairs an inscription's sequence number with its offset
// into the outpoint queried by SequencesAtOutpoint.
type SequenceOffset struct {
	Sequence uint32
	Offset   uint64
}

// SequencesAtOutpoint lists every inscription currently located somewhere
// within op, regardless of offset, used to detect spends that move an
// inscription's satpoint into a new transaction's outputs.
func SequencesAtOutpoint(tx *bolt.Tx, op ordinals.OutPoint) ([]SequenceOffset, error) {
	b := tx.Bucket(bucketSatpointToSeq)
	c := b.Cursor()
	prefix := ordinals.EncodeOutPoint(op)

	var out []SequenceOffset
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		out = append(out, SequenceOffset{
			Sequence: binary.BigEndian.Uint32(k[44:]),
			Offset:   binary.LittleEndian.Uint64(k[36:44]),
		})
	}
	return out, nil
}

// PutSatIndex records that sat currently carries inscription seq.
func PutSatIndex(tx *bolt.Tx, sat ordinals.Sat, seq uint32) error {
	return tx.Bucket(bucketSatToSeq).Put(compositeKey(beUint64(uint64(sat)), beUint32(seq)), nil)
}

// DeleteSatIndex removes a sat -> sequence row (used on transfer/reorg).
func DeleteSatIndex(tx *bolt.Tx, sat ordinals.Sat, seq uint32) error {
	return tx.Bucket(bucketSatToSeq).Delete(compositeKey(beUint64(uint64(sat)), beUint32(seq)))
}

// SequencesAtSat lists every inscription ever recorded on sat.
func SequencesAtSat(tx *bolt.Tx, sat ordinals.Sat) ([]uint32, error) {
	b := tx.Bucket(bucketSatToSeq)
	c := b.Cursor()
	prefix := beUint64(uint64(sat))

	var seqs []uint32
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		seqs = append(seqs, binary.BigEndian.Uint32(k[8:]))
	}
	return seqs, nil
}

// SetHeightLastSequence records the inscription sequence cursor at the
// end of height: the sequence number the next inscription will receive.
func SetHeightLastSequence(tx *bolt.Tx, height uint32, seq uint32) error {
	return tx.Bucket(bucketHeightToLast).Put(beUint32(height), beUint32(seq))
}

// GetHeightLastSequence looks up the inscription sequence cursor stored
// for height: the sequence number the next inscription will receive.
func GetHeightLastSequence(tx *bolt.Tx, height uint32) (uint32, bool) {
	v := tx.Bucket(bucketHeightToLast).Get(beUint32(height))
	if v == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// DeleteHeightLastSequence removes the row (used by reorg rollback).
func DeleteHeightLastSequence(tx *bolt.Tx, height uint32) error {
	return tx.Bucket(bucketHeightToLast).Delete(beUint32(height))
}

// IncrementContentTypeCount bumps the per-content-type inscription
// counter.
func IncrementContentTypeCount(tx *bolt.Tx, contentType string, delta int64) error {
	b := tx.Bucket(bucketContentType)
	key := []byte(contentType)
	var n int64
	if v := b.Get(key); v != nil {
		n = int64(binary.BigEndian.Uint64(v))
	}
	n += delta
	return b.Put(key, beUint64(uint64(n)))
}
