package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
)

// UndoRecord captures everything a block's indexing pass mutated, in
// enough detail to reverse it exactly. One record is written per
// connected height and consumed, in reverse, by a disconnect.
type UndoRecord struct {
	Height uint32

	SatRangesSpent   []SatRangeUndo
	SatRangesCreated []ordinals.OutPoint

	InscriptionsCreated []InscriptionEntry
	SatpointChanges     []SatpointUndo

	StatDeltas []StatDelta

	RunesCreated       []RuneIdKey
	RuneEntrySnapshots []RuneEntry

	OutpointRuneBalanceChanges []OutpointRuneBalanceUndo

	SatIndexAdded     []SatIndexUndo
	ContentTypeDeltas []ContentTypeDelta

	HadPrevHeightLastSequence bool
	PrevHeightLastSequence    uint32
}

// SatIndexUndo records a sat -> sequence row this block added, so
// rollback can remove it.
type SatIndexUndo struct {
	Sat      ordinals.Sat
	Sequence uint32
}

// ContentTypeDelta is a signed adjustment to a content_type -> count row.
type ContentTypeDelta struct {
	ContentType string
	Delta       int64
}

// SatRangeUndo restores the ranges an outpoint carried before the block
// that spent it was connected.
type SatRangeUndo struct {
	OutPoint ordinals.OutPoint
	Ranges   []ordinals.SatRange
}

// SatpointUndo restores an inscription's prior location, or its absence.
type SatpointUndo struct {
	Sequence  uint32
	HadPrev   bool
	PrevPoint ordinals.SatPoint
}

// StatDelta is a signed adjustment applied to a statistics counter; undo
// subtracts it back out.
type StatDelta struct {
	Name  Statistic
	Delta int64
}

// OutpointRuneBalanceUndo restores an outpoint's rune balances to what
// they were before the block ran, or removes the row entirely if it had
// none.
type OutpointRuneBalanceUndo struct {
	OutPoint     []byte
	HadPrev      bool
	PrevBalances []RuneBalance
}

// PutUndoRecord persists the undo record for height, keyed so disconnect
// can fetch it by height alone.
func PutUndoRecord(tx *bolt.Tx, u UndoRecord) error {
	return tx.Bucket(bucketUndo).Put(beUint32(u.Height), encodeUndoRecord(u))
}

// GetUndoRecord fetches the undo record for height, if one was written.
func GetUndoRecord(tx *bolt.Tx, height uint32) (*UndoRecord, bool, error) {
	v := tx.Bucket(bucketUndo).Get(beUint32(height))
	if v == nil {
		return nil, false, nil
	}
	u, err := decodeUndoRecord(v)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// DeleteUndoRecord drops the undo record for height; RollbackToHeight
// calls it for each height it disconnects.
func DeleteUndoRecord(tx *bolt.Tx, height uint32) error {
	return tx.Bucket(bucketUndo).Delete(beUint32(height))
}

func putU32(out []byte, n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return append(out, b[:]...)
}

func putBytes(out []byte, b []byte) []byte {
	out = putU32(out, uint32(len(b)))
	return append(out, b...)
}

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) u32() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, fmt.Errorf("store: undo: truncated u32")
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.off+8 > len(r.b) {
		return 0, fmt.Errorf("store: undo: truncated u64")
	}
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, fmt.Errorf("store: undo: truncated bytes")
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *byteReader) lenPrefixed() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(n))
}

func (r *byteReader) byte() (byte, error) {
	v, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func encodeUndoRecord(u UndoRecord) []byte {
	out := make([]byte, 0, 256)
	out = putU32(out, u.Height)

	out = putU32(out, uint32(len(u.SatRangesSpent)))
	for _, s := range u.SatRangesSpent {
		out = putBytes(out, ordinals.EncodeOutPoint(s.OutPoint))
		out = putBytes(out, ordinals.EncodeSatRanges(s.Ranges))
	}

	out = putU32(out, uint32(len(u.SatRangesCreated)))
	for _, p := range u.SatRangesCreated {
		out = putBytes(out, ordinals.EncodeOutPoint(p))
	}

	out = putU32(out, uint32(len(u.InscriptionsCreated)))
	for _, e := range u.InscriptionsCreated {
		out = putBytes(out, encodeInscriptionEntry(e))
	}

	out = putU32(out, uint32(len(u.SatpointChanges)))
	for _, s := range u.SatpointChanges {
		out = putU32(out, s.Sequence)
		if s.HadPrev {
			out = append(out, 1)
			out = putBytes(out, ordinals.EncodeSatPoint(s.PrevPoint))
		} else {
			out = append(out, 0)
		}
	}

	out = putU32(out, uint32(len(u.StatDeltas)))
	for _, d := range u.StatDeltas {
		out = putBytes(out, []byte(d.Name))
		out = append(out, beUint64(uint64(d.Delta))...)
	}

	out = putU32(out, uint32(len(u.RunesCreated)))
	for _, id := range u.RunesCreated {
		out = putBytes(out, encodeRuneId(id))
	}

	out = putU32(out, uint32(len(u.RuneEntrySnapshots)))
	for _, e := range u.RuneEntrySnapshots {
		out = putBytes(out, encodeRuneId(e.Id))
		out = putBytes(out, encodeRuneEntry(e))
	}

	out = putU32(out, uint32(len(u.OutpointRuneBalanceChanges)))
	for _, c := range u.OutpointRuneBalanceChanges {
		out = putBytes(out, c.OutPoint)
		if c.HadPrev {
			out = append(out, 1)
			out = putBytes(out, encodeRuneBalances(c.PrevBalances))
		} else {
			out = append(out, 0)
		}
	}

	out = putU32(out, uint32(len(u.SatIndexAdded)))
	for _, s := range u.SatIndexAdded {
		out = append(out, beUint64(uint64(s.Sat))...)
		out = putU32(out, s.Sequence)
	}

	out = putU32(out, uint32(len(u.ContentTypeDeltas)))
	for _, d := range u.ContentTypeDeltas {
		out = putBytes(out, []byte(d.ContentType))
		out = append(out, beUint64(uint64(d.Delta))...)
	}

	if u.HadPrevHeightLastSequence {
		out = append(out, 1)
		out = putU32(out, u.PrevHeightLastSequence)
	} else {
		out = append(out, 0)
		out = putU32(out, 0)
	}

	return out
}

func decodeUndoRecord(b []byte) (*UndoRecord, error) {
	r := &byteReader{b: b}
	u := &UndoRecord{}

	h, err := r.u32()
	if err != nil {
		return nil, err
	}
	u.Height = h

	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		opb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		op, err := ordinals.DecodeOutPoint(opb)
		if err != nil {
			return nil, err
		}
		rb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		ranges, err := ordinals.DecodeSatRanges(rb)
		if err != nil {
			return nil, err
		}
		u.SatRangesSpent = append(u.SatRangesSpent, SatRangeUndo{OutPoint: op, Ranges: ranges})
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		opb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		op, err := ordinals.DecodeOutPoint(opb)
		if err != nil {
			return nil, err
		}
		u.SatRangesCreated = append(u.SatRangesCreated, op)
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		eb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		e, err := decodeInscriptionEntry(eb)
		if err != nil {
			return nil, err
		}
		u.InscriptionsCreated = append(u.InscriptionsCreated, e)
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		seq, err := r.u32()
		if err != nil {
			return nil, err
		}
		has, err := r.byte()
		if err != nil {
			return nil, err
		}
		sc := SatpointUndo{Sequence: seq}
		if has == 1 {
			sc.HadPrev = true
			spb, err := r.lenPrefixed()
			if err != nil {
				return nil, err
			}
			sc.PrevPoint, err = ordinals.DecodeSatPoint(spb)
			if err != nil {
				return nil, err
			}
		}
		u.SatpointChanges = append(u.SatpointChanges, sc)
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		nameb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		delta, err := r.u64()
		if err != nil {
			return nil, err
		}
		u.StatDeltas = append(u.StatDeltas, StatDelta{Name: Statistic(nameb), Delta: int64(delta)})
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		idb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		id, err := decodeRuneId(idb)
		if err != nil {
			return nil, err
		}
		u.RunesCreated = append(u.RunesCreated, id)
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		idb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		id, err := decodeRuneId(idb)
		if err != nil {
			return nil, err
		}
		eb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		e, err := decodeRuneEntry(id, eb)
		if err != nil {
			return nil, err
		}
		u.RuneEntrySnapshots = append(u.RuneEntrySnapshots, e)
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		opb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		has, err := r.byte()
		if err != nil {
			return nil, err
		}
		c := OutpointRuneBalanceUndo{OutPoint: opb}
		if has == 1 {
			c.HadPrev = true
			bb, err := r.lenPrefixed()
			if err != nil {
				return nil, err
			}
			c.PrevBalances, err = decodeRuneBalances(bb)
			if err != nil {
				return nil, err
			}
		}
		u.OutpointRuneBalanceChanges = append(u.OutpointRuneBalanceChanges, c)
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		satRaw, err := r.u64()
		if err != nil {
			return nil, err
		}
		seq, err := r.u32()
		if err != nil {
			return nil, err
		}
		u.SatIndexAdded = append(u.SatIndexAdded, SatIndexUndo{Sat: ordinals.Sat(satRaw), Sequence: seq})
	}

	n, err = r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		ctb, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		delta, err := r.u64()
		if err != nil {
			return nil, err
		}
		u.ContentTypeDeltas = append(u.ContentTypeDeltas, ContentTypeDelta{ContentType: string(ctb), Delta: int64(delta)})
	}

	has, err := r.byte()
	if err != nil {
		return nil, err
	}
	prevSeq, err := r.u32()
	if err != nil {
		return nil, err
	}
	if has == 1 {
		u.HadPrevHeightLastSequence = true
		u.PrevHeightLastSequence = prevSeq
	}

	if r.off != len(b) {
		return nil, fmt.Errorf("store: undo: trailing bytes")
	}
	return u, nil
}
