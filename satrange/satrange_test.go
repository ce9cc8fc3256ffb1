package satrange

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	d, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func coinbaseTx(value int64) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	tx.AddTxOut(&wire.TxOut{Value: value, PkScript: []byte{0x51}})
	return tx
}

func TestIndexBlockCoinbaseOnlyAssignsSubsidy(t *testing.T) {
	d := openTestDB(t)
	height := ordinals.Height(0)
	tx := coinbaseTx(int64(height.Subsidy()))

	var results []Result
	if err := d.Update(func(btx *bolt.Tx) error {
		var err error
		u := &store.UndoRecord{Height: 0}
		results, err = IndexBlock(btx, height, []*wire.MsgTx{tx}, u)
		return err
	}); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	if len(results[0].OutputRanges) != 1 {
		t.Fatalf("expected 1 output range slice, got %d", len(results[0].OutputRanges))
	}
	ranges := results[0].OutputRanges[0]
	if len(ranges) != 1 || ranges[0].Start != 0 || ranges[0].End != ordinals.Sat(height.Subsidy()) {
		t.Fatalf("coinbase ranges = %v", ranges)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		op := ordinals.OutPoint{Txid: tx.TxHash(), Vout: 0}
		got, err := store.GetSatRanges(btx, op)
		if err != nil {
			return err
		}
		if len(got) != 1 || got[0] != ranges[0] {
			t.Fatalf("stored ranges = %v, want %v", got, ranges)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestIndexBlockSpendsInputAndSplitsAcrossOutputs(t *testing.T) {
	d := openTestDB(t)
	seedOutpoint := ordinals.OutPoint{Vout: 7}
	seedOutpoint.Txid[0] = 0x42
	seedRanges := []ordinals.SatRange{{Start: 1000, End: 2000}}

	if err := d.Update(func(btx *bolt.Tx) error {
		return store.PutSatRanges(btx, seedOutpoint, seedRanges)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	spendTx := wire.NewMsgTx(1)
	spendTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: seedOutpoint.Txid, Index: seedOutpoint.Vout}})
	spendTx.AddTxOut(&wire.TxOut{Value: 600, PkScript: []byte{0x51}})
	cb := coinbaseTx(int64(ordinals.Height(0).Subsidy()))

	var results []Result
	var u *store.UndoRecord
	if err := d.Update(func(btx *bolt.Tx) error {
		var err error
		u = &store.UndoRecord{Height: 0}
		results, err = IndexBlock(btx, 0, []*wire.MsgTx{cb, spendTx}, u)
		return err
	}); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	if len(u.SatRangesSpent) != 1 || u.SatRangesSpent[0].OutPoint != seedOutpoint {
		t.Fatalf("undo spent = %+v", u.SatRangesSpent)
	}

	spendResult := results[1]
	if len(spendResult.InputRanges) != 1 || len(spendResult.InputRanges[0]) != 1 {
		t.Fatalf("input ranges = %v", spendResult.InputRanges)
	}
	outRanges := spendResult.OutputRanges[0]
	if len(outRanges) != 1 || outRanges[0].Start != 1000 || outRanges[0].End != 1600 {
		t.Fatalf("output ranges = %v", outRanges)
	}

	// The 400-sat remainder (2000-1600) is fee income the coinbase
	// output (which only claims the subsidy) doesn't claim, so it is
	// lost rather than assigned anywhere.
	coinbaseRanges := results[0].OutputRanges[0]
	var total uint64
	for _, r := range coinbaseRanges {
		total += r.Size()
	}
	if total != ordinals.Height(0).Subsidy() {
		t.Fatalf("coinbase total = %d, want %d", total, ordinals.Height(0).Subsidy())
	}
	if err := d.View(func(btx *bolt.Tx) error {
		if got := store.GetStatistic(btx, store.StatLostSats); got != 400 {
			t.Fatalf("lost_sats = %d, want 400", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		got, err := store.GetSatRanges(btx, seedOutpoint)
		if err != nil {
			return err
		}
		if got != nil {
			t.Fatalf("spent outpoint still has ranges: %v", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestIndexBlockOpReturnCollapsesToNullOutpoint(t *testing.T) {
	d := openTestDB(t)
	opReturnScript := []byte{txscript.OP_RETURN}

	cb := wire.NewMsgTx(1)
	cb.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	cb.AddTxOut(&wire.TxOut{Value: 100, PkScript: opReturnScript})

	var u *store.UndoRecord
	if err := d.Update(func(btx *bolt.Tx) error {
		var err error
		u = &store.UndoRecord{Height: 0}
		_, err = IndexBlock(btx, 0, []*wire.MsgTx{cb}, u)
		return err
	}); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		got, err := store.GetSatRanges(btx, ordinals.NullOutPoint)
		if err != nil {
			return err
		}
		var total uint64
		for _, r := range got {
			total += r.Size()
		}
		if total != 100 {
			t.Fatalf("null outpoint total = %d, want 100", total)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	found := false
	for _, op := range u.SatRangesCreated {
		if op == ordinals.NullOutPoint {
			found = true
		}
	}
	if !found {
		t.Fatalf("undo record missing null outpoint creation")
	}
}
