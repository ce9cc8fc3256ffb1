package updater

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/config"
	"github.com/ordsuite/ordinex/events"
	"github.com/ordsuite/ordinex/fetch"
	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/reorg"
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

func coinbaseBlock(height uint32, prevHash chainhash.Hash) *wire.MsgBlock {
	header := wire.NewBlockHeader(1, &prevHash, &chainhash.Hash{}, 0, 0)
	header.Timestamp = time.Unix(1700000000, 0)
	block := wire.NewMsgBlock(header)

	cb := wire.NewMsgTx(1)
	cb.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	cb.AddTxOut(&wire.TxOut{Value: int64(ordinals.Height(height).Subsidy()), PkScript: []byte{0x51}})
	block.AddTransaction(cb)
	return block
}

func newTestRuntime(d *store.DB) *Runtime {
	return &Runtime{
		DB:       d,
		Chain:    chainparams.Regtest,
		Config:   config.Default(),
		Sink:     events.NewChanSink(8),
		Detector: reorg.NewDetector(),
	}
}

func TestRunBatchCommitsManifestAndHeader(t *testing.T) {
	d := openTestDB(t)
	block := coinbaseBlock(0, chainhash.Hash{})
	hash := block.BlockHash()

	rt := newTestRuntime(d)
	rt.Config.NoIndexInscripts = true

	blocks := []fetch.Block{{Height: 0, Hash: hash, Msg: block}}
	if err := runBatch(rt, blocks, nil); err != nil {
		t.Fatalf("runBatch: %v", err)
	}

	m := d.Manifest()
	if m.TipHeight != 0 || m.TipHash != hash.String() {
		t.Fatalf("manifest not updated: %+v", m)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		got, ok := store.GetHeader(btx, 0)
		if !ok || got != hash {
			t.Fatalf("header at height 0 = %x ok=%v, want %x", got, ok, hash)
		}
		if _, ok, err := store.GetUndoRecord(btx, 0); err != nil || !ok {
			t.Fatalf("undo record at height 0 missing: ok=%v err=%v", ok, err)
		}
		return nil
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestRunBatchSetsHeightSequenceWhenInscriptionsEnabled(t *testing.T) {
	d := openTestDB(t)
	block := coinbaseBlock(0, chainhash.Hash{})
	hash := block.BlockHash()

	rt := newTestRuntime(d)
	rt.Config.NoIndexInscripts = false

	if err := runBatch(rt, []fetch.Block{{Height: 0, Hash: hash, Msg: block}}, nil); err != nil {
		t.Fatalf("runBatch: %v", err)
	}

	if err := d.View(func(btx *bolt.Tx) error {
		if _, ok := store.GetHeightLastSequence(btx, 0); !ok {
			t.Fatal("height-to-last-sequence cursor not set")
		}
		return nil
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestConnectBlockDetectsReorgOnPrevHashMismatch(t *testing.T) {
	d := openTestDB(t)

	genesis := coinbaseBlock(0, chainhash.Hash{})
	genesisHash := genesis.BlockHash()
	rt := newTestRuntime(d)
	rt.Config.NoIndexInscripts = true

	if err := runBatch(rt, []fetch.Block{{Height: 0, Hash: genesisHash, Msg: genesis}}, nil); err != nil {
		t.Fatalf("runBatch genesis: %v", err)
	}

	var wrongPrev chainhash.Hash
	wrongPrev[0] = 0xee
	nextBlock := coinbaseBlock(1, wrongPrev)
	nextHash := nextBlock.BlockHash()

	remoteHashAt := func(h uint32) ([32]byte, bool) {
		if h == 0 {
			return genesisHash, true
		}
		return [32]byte{}, false
	}

	err := runBatch(rt, []fetch.Block{{Height: 1, Hash: nextHash, Msg: nextBlock}}, remoteHashAt)
	if err == nil {
		t.Fatal("expected error: remote agrees at height 0 so the fork can't be found below it")
	}
}
