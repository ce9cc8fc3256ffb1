package runeindex

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/runes"
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

// pastFirstRuneHeight picks a height past the end of the name-minimum
// unlock window, where any non-reserved name is legal, so tests don't
// need to construct a name satisfying the length schedule.
func pastFirstRuneHeight(chain chainparams.Chain) ordinals.Height {
	return ordinals.Height(uint64(chain.FirstRuneHeight()) + uint64(chainparams.SubsidyHalvingInterval))
}

func TestIndexBlockEtchMintAndSplitEdict(t *testing.T) {
	d := openTestDB(t)
	height := pastFirstRuneHeight(chainparams.Mainnet)

	name := runes.NewRune(big.NewInt(123456789))
	etching := &runes.Etching{Divisibility: 0, Rune: &name, Mint: &runes.Mint{Limit: big.NewInt(1000)}}
	claimId := runes.RuneId{Height: uint32(height), Index: 0}

	runestone := &runes.Runestone{
		Etching: etching,
		Claim:   claimId.ToBig(),
		Edicts:  []runes.Edict{{Id: runes.RuneId{}, Amount: big.NewInt(0), Output: 3}},
	}
	script, err := runestone.Encipher()
	if err != nil {
		t.Fatalf("Encipher: %v", err)
	}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: script})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})

	txid := tx.TxHash()
	ridKey := store.RuneIdKey{Height: uint32(height), Index: 0}

	if err := d.Update(func(btx *bolt.Tx) error {
		u := &store.UndoRecord{Height: uint32(height)}
		_, err := IndexBlock(btx, chainparams.Mainnet, height, 1700000000, []*wire.MsgTx{tx}, u)
		return err
	}); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		entry, ok, err := store.GetRuneEntry(btx, ridKey)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("rune entry not created")
		}
		if entry.Supply.Cmp(big.NewInt(1000)) != 0 {
			t.Fatalf("supply = %v, want 1000", entry.Supply)
		}

		for _, vout := range []uint32{1, 2} {
			op := ordinals.OutPoint{Txid: txid, Vout: vout}
			balances, err := store.GetOutpointRuneBalances(btx, ordinals.EncodeOutPoint(op))
			if err != nil {
				return err
			}
			if len(balances) != 1 || balances[0].Id != ridKey || balances[0].Amount.Cmp(big.NewInt(500)) != 0 {
				t.Fatalf("output %d balances = %+v, want 500 of %v", vout, balances, ridKey)
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestIndexBlockBurnFlagOverridesEdictTarget(t *testing.T) {
	d := openTestDB(t)

	ridKey := store.RuneIdKey{Height: 5, Index: 0}
	inputOp := ordinals.OutPoint{Vout: 0}
	inputOp.Txid[0] = 0x77

	if err := d.Update(func(btx *bolt.Tx) error {
		entry := store.RuneEntry{
			Id: ridKey, Rune: big.NewInt(777), Supply: big.NewInt(300), Burned: big.NewInt(0),
			EtchHeight: 5, EtchTxid: [32]byte{0x09},
		}
		if err := store.PutRuneEntry(btx, entry); err != nil {
			return err
		}
		return store.PutOutpointRuneBalances(btx, ordinals.EncodeOutPoint(inputOp), []store.RuneBalance{
			{Id: ridKey, Amount: big.NewInt(300)},
		})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runestone := &runes.Runestone{
		Burn:   true,
		Edicts: []runes.Edict{{Id: runes.RuneId{Height: ridKey.Height, Index: ridKey.Index}, Amount: big.NewInt(0), Output: 1}},
	}
	script, err := runestone.Encipher()
	if err != nil {
		t.Fatalf("Encipher: %v", err)
	}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: inputOp.Txid, Index: inputOp.Vout}, nil, nil))
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: script})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	txid := tx.TxHash()

	if err := d.Update(func(btx *bolt.Tx) error {
		u := &store.UndoRecord{Height: 6}
		_, err := IndexBlock(btx, chainparams.Mainnet, 6, 1700000000, []*wire.MsgTx{tx}, u)
		return err
	}); err != nil {
		t.Fatalf("IndexBlock: %v", err)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		out, err := store.GetOutpointRuneBalances(btx, ordinals.EncodeOutPoint(ordinals.OutPoint{Txid: txid, Vout: 1}))
		if err != nil {
			return err
		}
		if len(out) != 0 {
			t.Fatalf("expected no balance on the named output once burned, got %+v", out)
		}

		null, err := store.GetOutpointRuneBalances(btx, ordinals.EncodeOutPoint(ordinals.NullOutPoint))
		if err != nil {
			return err
		}
		if len(null) != 1 || null[0].Id != ridKey || null[0].Amount.Cmp(big.NewInt(300)) != 0 {
			t.Fatalf("null outpoint balances = %+v, want 300 of %v", null, ridKey)
		}

		entry, ok, err := store.GetRuneEntry(btx, ridKey)
		if err != nil || !ok {
			t.Fatalf("entry missing after burn: ok=%v err=%v", ok, err)
		}
		if entry.Burned.Cmp(big.NewInt(300)) != 0 {
			t.Fatalf("burned = %v, want 300", entry.Burned)
		}
		return nil
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestIndexBlockRollbackRestoresPriorLedgerState(t *testing.T) {
	d := openTestDB(t)
	const height = 50

	ridKey := store.RuneIdKey{Height: 5, Index: 0}
	inputOp := ordinals.OutPoint{Vout: 0}
	inputOp.Txid[0] = 0x42

	if err := d.Update(func(btx *bolt.Tx) error {
		entry := store.RuneEntry{
			Id: ridKey, Rune: big.NewInt(42), Supply: big.NewInt(100), Burned: big.NewInt(0),
			EtchHeight: 5, EtchTxid: [32]byte{0x42},
		}
		if err := store.PutRuneEntry(btx, entry); err != nil {
			return err
		}
		return store.PutOutpointRuneBalances(btx, ordinals.EncodeOutPoint(inputOp), []store.RuneBalance{
			{Id: ridKey, Amount: big.NewInt(100)},
		})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runestone := &runes.Runestone{
		Edicts: []runes.Edict{{Id: runes.RuneId{Height: ridKey.Height, Index: ridKey.Index}, Amount: big.NewInt(0), Output: 1}},
	}
	script, err := runestone.Encipher()
	if err != nil {
		t.Fatalf("Encipher: %v", err)
	}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: inputOp.Txid, Index: inputOp.Vout}, nil, nil))
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: script})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	txid := tx.TxHash()
	outputOp := ordinals.OutPoint{Txid: txid, Vout: 1}

	var hash [32]byte
	hash[0] = 0x55

	if err := d.Update(func(btx *bolt.Tx) error {
		u := &store.UndoRecord{Height: height}
		if _, err := IndexBlock(btx, chainparams.Mainnet, height, 1700000000, []*wire.MsgTx{tx}, u); err != nil {
			return err
		}
		if err := store.PutHeader(btx, height, hash); err != nil {
			return err
		}
		return store.PutUndoRecord(btx, *u)
	}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := d.Update(func(btx *bolt.Tx) error {
		return store.RollbackToHeight(btx, height, height-1)
	}); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		entry, ok, err := store.GetRuneEntry(btx, ridKey)
		if err != nil || !ok {
			t.Fatalf("entry missing after rollback: ok=%v err=%v", ok, err)
		}
		if entry.Supply.Cmp(big.NewInt(100)) != 0 {
			t.Fatalf("supply = %v, want 100 restored", entry.Supply)
		}

		in, err := store.GetOutpointRuneBalances(btx, ordinals.EncodeOutPoint(inputOp))
		if err != nil {
			return err
		}
		if len(in) != 1 || in[0].Id != ridKey || in[0].Amount.Cmp(big.NewInt(100)) != 0 {
			t.Fatalf("input balances not restored: %+v", in)
		}

		out, err := store.GetOutpointRuneBalances(btx, ordinals.EncodeOutPoint(outputOp))
		if err != nil {
			return err
		}
		if len(out) != 0 {
			t.Fatalf("output balances not removed after rollback: %+v", out)
		}
		return nil
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
