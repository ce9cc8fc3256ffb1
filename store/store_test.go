package store

import (
	"math/big"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func sampleOutPoint(b byte) ordinals.OutPoint {
	var op ordinals.OutPoint
	for i := range op.Txid {
		op.Txid[i] = b
	}
	op.Vout = uint32(b)
	return op
}

func TestOpenCreatesManifestAtCurrentSchema(t *testing.T) {
	d := openTestDB(t)
	if d.Manifest().SchemaVersion != SchemaVersion {
		t.Fatalf("schema version = %d, want %d", d.Manifest().SchemaVersion, SchemaVersion)
	}

	reopened, err := Open(d.Dir())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Manifest().SchemaVersion != SchemaVersion {
		t.Fatalf("reopened schema version = %d, want %d", reopened.Manifest().SchemaVersion, SchemaVersion)
	}
}

func TestSatRangesRoundTrip(t *testing.T) {
	d := openTestDB(t)
	op := sampleOutPoint(1)
	ranges := []ordinals.SatRange{{Start: 0, End: 5_000_000_000}, {Start: 5_000_000_000, End: 5_000_000_010}}

	if err := d.Update(func(tx *bolt.Tx) error { return PutSatRanges(tx, op, ranges) }); err != nil {
		t.Fatalf("PutSatRanges: %v", err)
	}

	var got []ordinals.SatRange
	if err := d.View(func(tx *bolt.Tx) error {
		var err error
		got, err = GetSatRanges(tx, op)
		return err
	}); err != nil {
		t.Fatalf("GetSatRanges: %v", err)
	}
	if len(got) != len(ranges) || got[0] != ranges[0] || got[1] != ranges[1] {
		t.Fatalf("got %v, want %v", got, ranges)
	}

	if err := d.Update(func(tx *bolt.Tx) error { return DeleteSatRanges(tx, op) }); err != nil {
		t.Fatalf("DeleteSatRanges: %v", err)
	}
	if err := d.View(func(tx *bolt.Tx) error {
		var err error
		got, err = GetSatRanges(tx, op)
		return err
	}); err != nil {
		t.Fatalf("GetSatRanges after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %v", got)
	}
}

func TestStatisticIncrementAndRead(t *testing.T) {
	d := openTestDB(t)
	if err := d.Update(func(tx *bolt.Tx) error {
		if _, err := IncrementStatistic(tx, StatBlessedInscriptions, 3); err != nil {
			return err
		}
		_, err := IncrementStatistic(tx, StatBlessedInscriptions, 4)
		return err
	}); err != nil {
		t.Fatalf("increment: %v", err)
	}

	var got uint64
	if err := d.View(func(tx *bolt.Tx) error {
		got = GetStatistic(tx, StatBlessedInscriptions)
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestInscriptionEntryAndSatpointRoundTrip(t *testing.T) {
	d := openTestDB(t)
	sat := ordinals.Sat(1_234_567)
	entry := InscriptionEntry{
		Id:                ordinals.InscriptionId{Index: 0},
		SequenceNumber:    0,
		InscriptionNumber: -1,
		Sat:               &sat,
		Height:            840000,
		Fee:               1000,
		Timestamp:         1700000000,
		Charms:            0,
		Parent:            nil,
	}
	entry.Id.Txid[0] = 0xab

	point := ordinals.SatPoint{OutPoint: sampleOutPoint(9), Offset: 42}

	if err := d.Update(func(tx *bolt.Tx) error {
		if err := PutInscriptionEntry(tx, entry); err != nil {
			return err
		}
		return PutSatpoint(tx, entry.SequenceNumber, point)
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := d.View(func(tx *bolt.Tx) error {
		got, ok, err := GetInscriptionEntryBySequence(tx, 0)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("entry not found")
		}
		if got.InscriptionNumber != -1 {
			t.Fatalf("number = %d, want -1", got.InscriptionNumber)
		}
		if got.Sat == nil || *got.Sat != sat {
			t.Fatalf("sat mismatch: %v", got.Sat)
		}

		seq, ok := SequenceByInscriptionId(tx, entry.Id)
		if !ok || seq != 0 {
			t.Fatalf("SequenceByInscriptionId: seq=%d ok=%v", seq, ok)
		}
		seq, ok = SequenceByInscriptionNumber(tx, -1)
		if !ok || seq != 0 {
			t.Fatalf("SequenceByInscriptionNumber: seq=%d ok=%v", seq, ok)
		}

		gotPoint, ok, err := GetSatpoint(tx, 0)
		if err != nil {
			return err
		}
		if !ok || gotPoint != point {
			t.Fatalf("GetSatpoint = %v, want %v", gotPoint, point)
		}

		seqs, err := SequencesAtSatpoint(tx, point)
		if err != nil {
			return err
		}
		if len(seqs) != 1 || seqs[0] != 0 {
			t.Fatalf("SequencesAtSatpoint = %v", seqs)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestChildrenOrdering(t *testing.T) {
	d := openTestDB(t)
	parent := uint32(5)
	for _, seq := range []uint32{20, 7, 13} {
		seq := seq
		entry := InscriptionEntry{SequenceNumber: seq, InscriptionNumber: int64(seq), Parent: &parent}
		entry.Id.Index = seq
		if err := d.Update(func(tx *bolt.Tx) error { return PutInscriptionEntry(tx, entry) }); err != nil {
			t.Fatalf("put child %d: %v", seq, err)
		}
	}

	var children []uint32
	if err := d.View(func(tx *bolt.Tx) error {
		var err error
		children, err = Children(tx, parent)
		return err
	}); err != nil {
		t.Fatalf("Children: %v", err)
	}
	want := []uint32{7, 13, 20}
	if len(children) != len(want) {
		t.Fatalf("children = %v, want %v", children, want)
	}
	for i := range want {
		if children[i] != want[i] {
			t.Fatalf("children = %v, want %v", children, want)
		}
	}
}

func TestRuneEntryRoundTrip(t *testing.T) {
	d := openTestDB(t)
	id := RuneIdKey{Height: 1, Index: 0}
	entry := RuneEntry{
		Id:           id,
		Rune:         big.NewInt(123456789),
		Divisibility: 2,
		Spacers:      0b101,
		HasSymbol:    true,
		Symbol:       'R',
		Supply:       big.NewInt(1_000_000),
		Burned:       big.NewInt(0),
		HasMintLimit: true,
		MintLimit:    big.NewInt(1000),
		EtchHeight:   1,
	}
	entry.EtchTxid[0] = 0xcd

	if err := d.Update(func(tx *bolt.Tx) error { return PutRuneEntry(tx, entry) }); err != nil {
		t.Fatalf("PutRuneEntry: %v", err)
	}

	if err := d.View(func(tx *bolt.Tx) error {
		got, ok, err := GetRuneEntry(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("entry not found")
		}
		if got.Rune.Cmp(entry.Rune) != 0 || got.Supply.Cmp(entry.Supply) != 0 {
			t.Fatalf("entry mismatch: %+v", got)
		}
		if got.Symbol != 'R' || !got.HasSymbol {
			t.Fatalf("symbol mismatch: %+v", got)
		}

		gotId, ok, err := RuneIdByName(tx, entry.Rune)
		if err != nil {
			return err
		}
		if !ok || gotId != id {
			t.Fatalf("RuneIdByName = %v, ok=%v", gotId, ok)
		}

		rn, ok := RuneByTxid(tx, entry.EtchTxid)
		if !ok || rn.Cmp(entry.Rune) != 0 {
			t.Fatalf("RuneByTxid mismatch")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOutpointRuneBalancesRoundTrip(t *testing.T) {
	d := openTestDB(t)
	op := ordinals.EncodeOutPoint(sampleOutPoint(3))
	balances := []RuneBalance{
		{Id: RuneIdKey{Height: 1, Index: 0}, Amount: big.NewInt(500)},
		{Id: RuneIdKey{Height: 2, Index: 1}, Amount: big.NewInt(7)},
	}

	if err := d.Update(func(tx *bolt.Tx) error { return PutOutpointRuneBalances(tx, op, balances) }); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got []RuneBalance
	if err := d.View(func(tx *bolt.Tx) error {
		var err error
		got, err = GetOutpointRuneBalances(tx, op)
		return err
	}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0].Amount.Cmp(balances[0].Amount) != 0 {
		t.Fatalf("balances = %+v", got)
	}

	if err := d.Update(func(tx *bolt.Tx) error { return PutOutpointRuneBalances(tx, op, nil) }); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := d.View(func(tx *bolt.Tx) error {
		var err error
		got, err = GetOutpointRuneBalances(tx, op)
		return err
	}); err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after clearing, got %+v", got)
	}
}

// TestRollbackReversesUndoRecord exercises the reorg disconnect path: a
// block's mutations (new sat range, a blessed inscription, a statistic
// bump) are applied alongside an undo record, then RollbackToHeight
// rewinds them and the store looks exactly like it did before the block
// connected.
func TestRollbackReversesUndoRecord(t *testing.T) {
	d := openTestDB(t)
	const height = 100

	spentOutpoint := sampleOutPoint(1)
	spentRanges := []ordinals.SatRange{{Start: 0, End: 100}}
	createdOutpoint := sampleOutPoint(2)
	createdRanges := []ordinals.SatRange{{Start: 0, End: 50}, {Start: 50, End: 100}}

	entry := InscriptionEntry{InscriptionNumber: 0, SequenceNumber: 0}
	point := ordinals.SatPoint{OutPoint: createdOutpoint, Offset: 0}

	var hash [32]byte
	hash[0] = 0x11

	if err := d.Update(func(tx *bolt.Tx) error {
		if err := PutSatRanges(tx, spentOutpoint, spentRanges); err != nil {
			return err
		}
		if err := SetHeightLastSequence(tx, height-1, 0); err != nil {
			return err
		}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := d.Update(func(tx *bolt.Tx) error {
		if err := DeleteSatRanges(tx, spentOutpoint); err != nil {
			return err
		}
		if err := PutSatRanges(tx, createdOutpoint, createdRanges); err != nil {
			return err
		}
		if err := PutInscriptionEntry(tx, entry); err != nil {
			return err
		}
		if err := PutSatpoint(tx, 0, point); err != nil {
			return err
		}
		if _, err := IncrementStatistic(tx, StatBlessedInscriptions, 1); err != nil {
			return err
		}
		if err := SetHeightLastSequence(tx, height, 1); err != nil {
			return err
		}
		if err := PutHeader(tx, height, hash); err != nil {
			return err
		}

		undo := UndoRecord{
			Height:              height,
			SatRangesSpent:      []SatRangeUndo{{OutPoint: spentOutpoint, Ranges: spentRanges}},
			SatRangesCreated:    []ordinals.OutPoint{createdOutpoint},
			InscriptionsCreated: []InscriptionEntry{entry},
			SatpointChanges:     []SatpointUndo{{Sequence: 0, HadPrev: false}},
			StatDeltas:          []StatDelta{{Name: StatBlessedInscriptions, Delta: 1}},
			HadPrevHeightLastSequence: true,
			PrevHeightLastSequence:    0,
		}
		return PutUndoRecord(tx, undo)
	}); err != nil {
		t.Fatalf("connect block: %v", err)
	}

	if err := d.Update(func(tx *bolt.Tx) error {
		return RollbackToHeight(tx, height, height-1)
	}); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if err := d.View(func(tx *bolt.Tx) error {
		if ranges, err := GetSatRanges(tx, spentOutpoint); err != nil || len(ranges) != 1 || ranges[0] != spentRanges[0] {
			t.Fatalf("spent outpoint not restored: %v %v", ranges, err)
		}
		if ranges, err := GetSatRanges(tx, createdOutpoint); err != nil || ranges != nil {
			t.Fatalf("created outpoint not removed: %v %v", ranges, err)
		}
		if _, ok, err := GetInscriptionEntryBySequence(tx, 0); err != nil || ok {
			t.Fatalf("inscription entry not removed: ok=%v err=%v", ok, err)
		}
		if got := GetStatistic(tx, StatBlessedInscriptions); got != 0 {
			t.Fatalf("statistic not rolled back: %d", got)
		}
		if _, ok := GetHeader(tx, height); ok {
			t.Fatalf("header not removed at rolled-back height")
		}
		if _, ok, err := GetUndoRecord(tx, height); err != nil || ok {
			t.Fatalf("undo record not removed: ok=%v err=%v", ok, err)
		}
		return nil
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
