// Package runeindex applies runestones found in a block's transactions
// to the rune ledger: unallocated-input accounting, etching, minting,
// edict distribution, and burn handling.
package runeindex

import (
	"math/big"
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/runes"
	"github.com/ordsuite/ordinex/store"
)

// Mint records a claim crediting new units of a rune.
type Mint struct {
	Id     store.RuneIdKey
	Amount *big.Int
}

// Transfer records rune balance landing on an outpoint via edict or
// residual assignment.
type Transfer struct {
	Id       store.RuneIdKey
	Amount   *big.Int
	Outpoint ordinals.OutPoint
}

// Burn records rune balance destroyed by an explicit burn flag or by
// landing on a provably unspendable output.
type Burn struct {
	Id     store.RuneIdKey
	Amount *big.Int
}

// Occurrences collects the mint, transfer, and burn events IndexBlock
// produced for one block, in transaction order.
type Occurrences struct {
	Mints     []Mint
	Transfers []Transfer
	Burns     []Burn
}

// IndexBlock applies every transaction's runestone (if any) to the rune
// ledger, in transaction order. Every mutation is mirrored onto u so a
// later rollback can reverse it exactly.
func IndexBlock(
	tx *bolt.Tx,
	chain chainparams.Chain,
	height ordinals.Height,
	timestamp int64,
	txs []*wire.MsgTx,
	u *store.UndoRecord,
) (Occurrences, error) {
	balances := newBalanceCache()
	entries := newEntryCache()
	var occ Occurrences

	for i, msgTx := range txs {
		if err := indexTx(tx, chain, height, timestamp, uint16(i), msgTx, balances, entries, u, &occ); err != nil {
			return occ, err
		}
	}

	if err := balances.flush(tx, u); err != nil {
		return occ, err
	}
	if err := entries.flush(tx, u); err != nil {
		return occ, err
	}
	return occ, nil
}

func indexTx(
	tx *bolt.Tx,
	chain chainparams.Chain,
	height ordinals.Height,
	timestamp int64,
	txIndex uint16,
	msgTx *wire.MsgTx,
	balances *balanceCache,
	entries *entryCache,
	u *store.UndoRecord,
	occ *Occurrences,
) error {
	runestone, err := runes.Decipher(msgTx)
	if err != nil || runestone == nil {
		// An undecipherable payload carries no rune effects; inputs keep
		// whatever balance they held, which is still sitting in the store
		// rows the spent outpoints occupied until something drains them.
		return nil
	}

	unallocated := map[store.RuneIdKey]*big.Int{}
	for _, in := range msgTx.TxIn {
		op := ordinals.OutPoint{Txid: in.PreviousOutPoint.Hash, Vout: in.PreviousOutPoint.Index}
		for id, amt := range balances.take(tx, op) {
			addTo(unallocated, id, amt)
		}
	}

	var etchedId *store.RuneIdKey
	if runestone.Etching != nil {
		etchedId, err = etch(tx, chain, height, txIndex, msgTx.TxHash(), runestone.Etching, entries, u)
		if err != nil {
			return err
		}
	}

	if runestone.Claim != nil {
		if claimId, err := runes.RuneIdFromBig(runestone.Claim); err == nil {
			mintId := store.RuneIdKey{Height: claimId.Height, Index: claimId.Index}
			amount, err := mint(tx, entries, u, mintId, height, timestamp)
			if err != nil {
				return err
			}
			if amount != nil {
				addTo(unallocated, mintId, amount)
				occ.Mints = append(occ.Mints, Mint{Id: mintId, Amount: new(big.Int).Set(amount)})
			}
		}
	}

	perOutput := make([]map[store.RuneIdKey]*big.Int, len(msgTx.TxOut))
	for i := range perOutput {
		perOutput[i] = map[store.RuneIdKey]*big.Int{}
	}

	nonOpReturn := make([]uint32, 0, len(msgTx.TxOut))
	for vout, out := range msgTx.TxOut {
		if !isOpReturn(out.PkScript) {
			nonOpReturn = append(nonOpReturn, uint32(vout))
		}
	}

	for _, e := range runestone.Edicts {
		id := store.RuneIdKey{Height: e.Id.Height, Index: e.Id.Index}
		if id.Height == 0 && id.Index == 0 && etchedId != nil {
			id = *etchedId
		}

		available := unallocated[id]
		if available == nil || available.Sign() == 0 {
			continue
		}

		amount := e.Amount
		if amount == nil || amount.Sign() == 0 {
			amount = new(big.Int).Set(available)
		}
		if amount.Cmp(available) > 0 {
			amount = new(big.Int).Set(available)
		}

		if uint64(e.Output) == uint64(len(msgTx.TxOut)) {
			spreadEvenly(perOutput, nonOpReturn, id, amount)
		} else if int(e.Output) < len(msgTx.TxOut) {
			addTo(perOutput[e.Output], id, amount)
		} else {
			// Out-of-range output index: the edict cannot be applied: the
			// amount stays unallocated and falls through to residual
			// assignment below.
			continue
		}

		available.Sub(available, amount)
	}

	var defaultOutput *uint32
	if runestone.DefaultOutput != nil && int(*runestone.DefaultOutput) < len(msgTx.TxOut) {
		defaultOutput = runestone.DefaultOutput
	}

	burned := map[store.RuneIdKey]*big.Int{}
	for id, amt := range unallocated {
		if amt.Sign() == 0 {
			continue
		}
		if defaultOutput != nil && !isOpReturn(msgTx.TxOut[*defaultOutput].PkScript) {
			addTo(perOutput[*defaultOutput], id, amt)
		} else {
			addTo(burned, id, amt)
		}
	}

	if runestone.Burn {
		for vout, bal := range perOutput {
			_ = vout
			for id, amt := range bal {
				addTo(burned, id, amt)
				delete(bal, id)
			}
		}
	}

	txid := msgTx.TxHash()
	for vout, bal := range perOutput {
		if len(bal) == 0 {
			continue
		}
		op := ordinals.OutPoint{Txid: txid, Vout: uint32(vout)}
		balances.add(tx, op, bal)
		for id, amt := range bal {
			occ.Transfers = append(occ.Transfers, Transfer{Id: id, Amount: new(big.Int).Set(amt), Outpoint: op})
		}
	}

	if len(burned) > 0 {
		balances.add(tx, ordinals.NullOutPoint, burned)
		for id, amt := range burned {
			if err := entries.addBurned(tx, u, id, amt); err != nil {
				return err
			}
			occ.Burns = append(occ.Burns, Burn{Id: id, Amount: new(big.Int).Set(amt)})
		}
	}

	return nil
}

// etch creates a RuneEntry for a fresh etching, if the requested name is
// available and legal at this height. A nil, nil return means the
// etching was silently rejected (name taken, reserved, or below the
// time-varying minimum), mirroring how an invalid etching simply fails
// to claim a name rather than poisoning the rest of the transaction.
func etch(
	tx *bolt.Tx,
	chain chainparams.Chain,
	height ordinals.Height,
	txIndex uint16,
	txid [32]byte,
	etching *runes.Etching,
	entries *entryCache,
	u *store.UndoRecord,
) (*store.RuneIdKey, error) {
	var name runes.Rune
	if etching.Rune != nil {
		name = *etching.Rune
		if name.IsReserved() {
			return nil, nil
		}
		min := runes.MinimumAtHeight(chain, height)
		if name.Value.Cmp(min.Value) < 0 {
			return nil, nil
		}
		if _, ok, err := store.RuneIdByName(tx, name.Value); err != nil {
			return nil, err
		} else if ok {
			return nil, nil
		}
	} else {
		n := store.ReservedRuneCount(tx)
		name = runes.Reserved(new(big.Int).SetUint64(n))
		if _, err := store.IncrementStatistic(tx, store.StatReservedRunes, 1); err != nil {
			return nil, err
		}
		u.StatDeltas = append(u.StatDeltas, store.StatDelta{Name: store.StatReservedRunes, Delta: 1})
	}

	id := store.NewRuneId(uint32(height), txIndex)
	entry := store.RuneEntry{
		Id:           id,
		Rune:         name.Value,
		Divisibility: etching.Divisibility,
		Spacers:      etching.Spacers,
		Supply:       big.NewInt(0),
		Burned:       big.NewInt(0),
		EtchHeight:   uint32(height),
		EtchTxid:     txid,
	}
	if etching.Symbol != nil {
		entry.HasSymbol = true
		entry.Symbol = *etching.Symbol
	}
	if etching.Mint != nil {
		if etching.Mint.Limit != nil {
			entry.HasMintLimit = true
			entry.MintLimit = etching.Mint.Limit
		}
		if etching.Mint.Deadline != nil {
			entry.HasDeadline = true
			entry.MintDeadline = *etching.Mint.Deadline
		}
		if etching.Mint.Term != nil {
			entry.HasTerm = true
			entry.MintTerm = *etching.Mint.Term
		}
	}

	if err := store.PutRuneEntry(tx, entry); err != nil {
		return nil, err
	}
	u.RunesCreated = append(u.RunesCreated, id)
	if _, err := store.IncrementStatistic(tx, store.StatRunes, 1); err != nil {
		return nil, err
	}
	u.StatDeltas = append(u.StatDeltas, store.StatDelta{Name: store.StatRunes, Delta: 1})

	entries.created(id, entry)

	return &id, nil
}

// mint validates a claim against the rune's mint policy and, if open,
// returns the limit amount to credit. It returns (nil, nil) when the
// claim targets an unknown rune or a closed mint.
func mint(tx *bolt.Tx, entries *entryCache, u *store.UndoRecord, id store.RuneIdKey, height ordinals.Height, timestamp int64) (*big.Int, error) {
	entry, ok, err := entries.get(tx, id, u)
	if err != nil || !ok || entry.MintLimit == nil {
		return nil, err
	}
	if entry.HasTerm && uint32(height) > entry.EtchHeight+entry.MintTerm {
		return nil, nil
	}
	if entry.HasDeadline && timestamp >= int64(entry.MintDeadline) {
		return nil, nil
	}
	if entry.Supply.Cmp(entry.MintLimit) > 0 {
		return nil, nil
	}

	entry.Supply = new(big.Int).Add(entry.Supply, entry.MintLimit)
	entries.mutate(id, entry)

	return new(big.Int).Set(entry.MintLimit), nil
}

// spreadEvenly distributes amount across the outputs named by targets:
// floor(amount/len(targets)) to every target, with the remainder handed
// out one unit at a time starting from the lowest-indexed target.
func spreadEvenly(perOutput []map[store.RuneIdKey]*big.Int, targets []uint32, id store.RuneIdKey, amount *big.Int) {
	if len(targets) == 0 {
		return
	}
	count := big.NewInt(int64(len(targets)))
	portion, remainder := new(big.Int), new(big.Int)
	portion.DivMod(amount, count, remainder)

	rem := remainder.Int64()
	for i, vout := range targets {
		share := new(big.Int).Set(portion)
		if int64(i) < rem {
			share.Add(share, big.NewInt(1))
		}
		if share.Sign() > 0 {
			addTo(perOutput[vout], id, share)
		}
	}
}

func addTo(m map[store.RuneIdKey]*big.Int, id store.RuneIdKey, amount *big.Int) {
	if cur, ok := m[id]; ok {
		cur.Add(cur, amount)
	} else {
		m[id] = new(big.Int).Set(amount)
	}
}

func isOpReturn(script []byte) bool {
	t := txscript.MakeScriptTokenizer(0, script)
	return t.Next() && t.Opcode() == txscript.OP_RETURN
}

// balanceCache batches outpoint rune-balance reads and writes across a
// whole block, recording exactly one undo entry per outpoint touched so
// repeated mutations within the block (the null outpoint especially,
// which every burn in the block may add to) don't need reverse-order
// replay to unwind correctly.
type balanceCache struct {
	loaded map[string]map[store.RuneIdKey]*big.Int
	hadRow map[string]bool
	order  []string
}

func newBalanceCache() *balanceCache {
	return &balanceCache{
		loaded: map[string]map[store.RuneIdKey]*big.Int{},
		hadRow: map[string]bool{},
	}
}

func (c *balanceCache) load(tx *bolt.Tx, op ordinals.OutPoint) (string, map[store.RuneIdKey]*big.Int, error) {
	key := string(ordinals.EncodeOutPoint(op))
	if m, ok := c.loaded[key]; ok {
		return key, m, nil
	}
	raw, err := store.GetOutpointRuneBalances(tx, ordinals.EncodeOutPoint(op))
	if err != nil {
		return key, nil, err
	}
	m := map[store.RuneIdKey]*big.Int{}
	for _, b := range raw {
		m[b.Id] = new(big.Int).Set(b.Amount)
	}
	c.loaded[key] = m
	c.hadRow[key] = len(raw) > 0
	c.order = append(c.order, key)
	return key, m, nil
}

// take removes and returns the balances stored at op (e.g. because a
// spending input just drained it).
func (c *balanceCache) take(tx *bolt.Tx, op ordinals.OutPoint) map[store.RuneIdKey]*big.Int {
	_, m, err := c.load(tx, op)
	if err != nil || len(m) == 0 {
		return nil
	}
	out := m
	c.loaded[string(ordinals.EncodeOutPoint(op))] = map[store.RuneIdKey]*big.Int{}
	return out
}

// add credits deltas onto op's in-memory balance set.
func (c *balanceCache) add(tx *bolt.Tx, op ordinals.OutPoint, deltas map[store.RuneIdKey]*big.Int) {
	_, m, err := c.load(tx, op)
	if err != nil {
		return
	}
	for id, amt := range deltas {
		addTo(m, id, amt)
	}
}

func (c *balanceCache) flush(tx *bolt.Tx, u *store.UndoRecord) error {
	for _, key := range c.order {
		opBytes := []byte(key)
		prev, err := store.GetOutpointRuneBalances(tx, opBytes)
		if err != nil {
			return err
		}
		u.OutpointRuneBalanceChanges = append(u.OutpointRuneBalanceChanges, store.OutpointRuneBalanceUndo{
			OutPoint:     append([]byte(nil), opBytes...),
			HadPrev:      c.hadRow[key],
			PrevBalances: prev,
		})

		var out []store.RuneBalance
		for id, amt := range c.loaded[key] {
			if amt.Sign() == 0 {
				continue
			}
			out = append(out, store.RuneBalance{Id: id, Amount: amt})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Id.Height != out[j].Id.Height {
				return out[i].Id.Height < out[j].Id.Height
			}
			return out[i].Id.Index < out[j].Id.Index
		})
		if err := store.PutOutpointRuneBalances(tx, opBytes, out); err != nil {
			return err
		}
	}
	return nil
}

// entryCache batches rune-entry reads and writes the same way
// balanceCache batches outpoint balances: a pre-block snapshot is taken
// the first time an existing entry is touched in this block, however
// many transactions mutate it afterward, and the final state is written
// once at flush.
type entryCache struct {
	state map[store.RuneIdKey]store.RuneEntry
	order []store.RuneIdKey
}

func newEntryCache() *entryCache {
	return &entryCache{
		state: map[store.RuneIdKey]store.RuneEntry{},
	}
}

func (c *entryCache) created(id store.RuneIdKey, e store.RuneEntry) {
	c.state[id] = e
	c.order = append(c.order, id)
}

// get loads id's entry, caching it and (for an entry that existed before
// this block) recording its pre-block snapshot exactly once.
func (c *entryCache) get(tx *bolt.Tx, id store.RuneIdKey, u *store.UndoRecord) (store.RuneEntry, bool, error) {
	if e, ok := c.state[id]; ok {
		return e, true, nil
	}
	e, ok, err := store.GetRuneEntry(tx, id)
	if err != nil || !ok {
		return store.RuneEntry{}, false, err
	}
	c.state[id] = e
	c.order = append(c.order, id)
	u.RuneEntrySnapshots = append(u.RuneEntrySnapshots, e)
	return e, true, nil
}

func (c *entryCache) mutate(id store.RuneIdKey, e store.RuneEntry) {
	c.state[id] = e
}

// addBurned folds amount into id's cumulative burned counter.
func (c *entryCache) addBurned(tx *bolt.Tx, u *store.UndoRecord, id store.RuneIdKey, amount *big.Int) error {
	e, ok, err := c.get(tx, id, u)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	burned := e.Burned
	if burned == nil {
		burned = big.NewInt(0)
	}
	e.Burned = new(big.Int).Add(burned, amount)
	c.mutate(id, e)
	return nil
}

func (c *entryCache) flush(tx *bolt.Tx, u *store.UndoRecord) error {
	for _, id := range c.order {
		if err := store.PutRuneEntry(tx, c.state[id]); err != nil {
			return err
		}
	}
	return nil
}
