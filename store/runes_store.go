package store

import (
	"encoding/binary"
	"fmt"
	"math/big"

	bolt "go.etcd.io/bbolt"
)

func encodeRuneId(id RuneIdKey) []byte {
	b := make([]byte, 6)
	binary.BigEndian.PutUint32(b, id.Height)
	binary.BigEndian.PutUint16(b[4:], id.Index)
	return b
}

func decodeRuneId(b []byte) (RuneIdKey, error) {
	if len(b) != 6 {
		return RuneIdKey{}, fmt.Errorf("store: rune id: expected 6 bytes, got %d", len(b))
	}
	return RuneIdKey{Height: binary.BigEndian.Uint32(b), Index: binary.BigEndian.Uint16(b[4:])}, nil
}

// RuneIdKey is the store's wire form of a rune id, independent of the
// runes package's parsing/string representation.
type RuneIdKey struct {
	Height uint32
	Index  uint16
}

func encodeRune128(n *big.Int) []byte {
	b := make([]byte, 16)
	n.FillBytes(b)
	return b
}

func decodeRune128(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// RuneEntry is the persisted per-rune ledger row.
type RuneEntry struct {
	Id           RuneIdKey
	Rune         *big.Int
	Divisibility uint8
	Spacers      uint32
	Symbol       rune
	HasSymbol    bool
	Supply       *big.Int
	Burned       *big.Int
	MintLimit    *big.Int
	HasMintLimit bool
	MintDeadline uint32
	HasDeadline  bool
	MintTerm     uint32
	HasTerm      bool
	EtchHeight   uint32
	EtchTxid     [32]byte
}

func encodeRuneEntry(e RuneEntry) []byte {
	var b []byte
	b = append(b, encodeRune128(e.Rune)...)
	b = append(b, e.Divisibility)
	b = append(b, beUint32(e.Spacers)...)
	if e.HasSymbol {
		b = append(b, 1)
		b = append(b, beUint32(uint32(e.Symbol))...)
	} else {
		b = append(b, 0, 0, 0, 0, 0)
	}
	supply := e.Supply
	if supply == nil {
		supply = big.NewInt(0)
	}
	burned := e.Burned
	if burned == nil {
		burned = big.NewInt(0)
	}
	b = append(b, encodeRune128(supply)...)
	b = append(b, encodeRune128(burned)...)
	if e.HasMintLimit {
		b = append(b, 1)
		b = append(b, encodeRune128(e.MintLimit)...)
	} else {
		b = append(b, 0)
		b = append(b, make([]byte, 16)...)
	}
	if e.HasDeadline {
		b = append(b, 1)
		b = append(b, beUint32(e.MintDeadline)...)
	} else {
		b = append(b, 0, 0, 0, 0, 0)
	}
	if e.HasTerm {
		b = append(b, 1)
		b = append(b, beUint32(e.MintTerm)...)
	} else {
		b = append(b, 0, 0, 0, 0, 0)
	}
	b = append(b, beUint32(e.EtchHeight)...)
	b = append(b, e.EtchTxid[:]...)
	return b
}

func decodeRuneEntry(id RuneIdKey, b []byte) (RuneEntry, error) {
	const want = 16 + 1 + 4 + 5 + 16 + 16 + 17 + 5 + 5 + 4 + 32
	if len(b) != want {
		return RuneEntry{}, fmt.Errorf("store: rune entry: expected %d bytes, got %d", want, len(b))
	}
	e := RuneEntry{Id: id}
	i := 0
	e.Rune = decodeRune128(b[i : i+16])
	i += 16
	e.Divisibility = b[i]
	i++
	e.Spacers = binary.BigEndian.Uint32(b[i:])
	i += 4
	if b[i] == 1 {
		e.HasSymbol = true
		e.Symbol = rune(binary.BigEndian.Uint32(b[i+1:]))
	}
	i += 5
	e.Supply = decodeRune128(b[i : i+16])
	i += 16
	e.Burned = decodeRune128(b[i : i+16])
	i += 16
	if b[i] == 1 {
		e.HasMintLimit = true
		e.MintLimit = decodeRune128(b[i+1 : i+17])
	}
	i += 17
	if b[i] == 1 {
		e.HasDeadline = true
		e.MintDeadline = binary.BigEndian.Uint32(b[i+1:])
	}
	i += 5
	if b[i] == 1 {
		e.HasTerm = true
		e.MintTerm = binary.BigEndian.Uint32(b[i+1:])
	}
	i += 5
	e.EtchHeight = binary.BigEndian.Uint32(b[i:])
	i += 4
	copy(e.EtchTxid[:], b[i:i+32])
	return e, nil
}

// PutRuneEntry writes a rune's ledger row and its name/txid lookup rows.
func PutRuneEntry(tx *bolt.Tx, e RuneEntry) error {
	key := encodeRuneId(e.Id)
	if err := tx.Bucket(bucketIDToRuneEntry).Put(key, encodeRuneEntry(e)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketRuneToID).Put(encodeRune128(e.Rune), key); err != nil {
		return err
	}
	return tx.Bucket(bucketTxidToRune).Put(e.EtchTxid[:], encodeRune128(e.Rune))
}

// DeleteRuneEntry removes a rune's ledger row (used by reorg rollback of
// an etching).
func DeleteRuneEntry(tx *bolt.Tx, e RuneEntry) error {
	key := encodeRuneId(e.Id)
	if err := tx.Bucket(bucketIDToRuneEntry).Delete(key); err != nil {
		return err
	}
	if err := tx.Bucket(bucketRuneToID).Delete(encodeRune128(e.Rune)); err != nil {
		return err
	}
	return tx.Bucket(bucketTxidToRune).Delete(e.EtchTxid[:])
}

// GetRuneEntry looks up a rune's ledger row by id.
func GetRuneEntry(tx *bolt.Tx, id RuneIdKey) (RuneEntry, bool, error) {
	v := tx.Bucket(bucketIDToRuneEntry).Get(encodeRuneId(id))
	if v == nil {
		return RuneEntry{}, false, nil
	}
	e, err := decodeRuneEntry(id, v)
	return e, err == nil, err
}

// RuneIdByName resolves a rune's base-26 name (as its u128 value) to its
// id.
func RuneIdByName(tx *bolt.Tx, rune_ *big.Int) (RuneIdKey, bool, error) {
	v := tx.Bucket(bucketRuneToID).Get(encodeRune128(rune_))
	if v == nil {
		return RuneIdKey{}, false, nil
	}
	id, err := decodeRuneId(v)
	return id, err == nil, err
}

// RuneBalance is one rune's balance within an outpoint's encoded balance
// list.
type RuneBalance struct {
	Id     RuneIdKey
	Amount *big.Int
}

func encodeRuneBalances(balances []RuneBalance) []byte {
	var b []byte
	b = append(b, beUint32(uint32(len(balances)))...)
	for _, bal := range balances {
		b = append(b, encodeRuneId(bal.Id)...)
		b = append(b, encodeRune128(bal.Amount)...)
	}
	return b
}

func decodeRuneBalances(b []byte) ([]RuneBalance, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("store: rune balances: truncated")
	}
	n := binary.BigEndian.Uint32(b)
	b = b[4:]
	balances := make([]RuneBalance, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 22 {
			return nil, fmt.Errorf("store: rune balances: truncated entry")
		}
		id, err := decodeRuneId(b[:6])
		if err != nil {
			return nil, err
		}
		amount := decodeRune128(b[6:22])
		balances = append(balances, RuneBalance{Id: id, Amount: amount})
		b = b[22:]
	}
	return balances, nil
}

// GetOutpointRuneBalances returns the rune balances an outpoint carries.
func GetOutpointRuneBalances(tx *bolt.Tx, outpoint []byte) ([]RuneBalance, error) {
	v := tx.Bucket(bucketOutpointRunes).Get(outpoint)
	if v == nil {
		return nil, nil
	}
	return decodeRuneBalances(v)
}

// PutOutpointRuneBalances overwrites the rune balances an outpoint
// carries.
func PutOutpointRuneBalances(tx *bolt.Tx, outpoint []byte, balances []RuneBalance) error {
	if len(balances) == 0 {
		return tx.Bucket(bucketOutpointRunes).Delete(outpoint)
	}
	return tx.Bucket(bucketOutpointRunes).Put(outpoint, encodeRuneBalances(balances))
}

// NewRuneId adapts a chain height and in-block tx index to a RuneIdKey.
func NewRuneId(height uint32, txIndex uint16) RuneIdKey {
	return RuneIdKey{Height: height, Index: txIndex}
}

// ReservedRuneCount returns how many reserved runes have been etched so
// far, tracked via the statistics table.
func ReservedRuneCount(tx *bolt.Tx) uint64 {
	return GetStatistic(tx, StatReservedRunes)
}

// PutSequenceRuneId records that the inscription at seq is the parent of
// (or otherwise paired with) rune id, for the rune's home-inscription
// link.
func PutSequenceRuneId(tx *bolt.Tx, seq uint32, id RuneIdKey) error {
	return tx.Bucket(bucketSeqToRuneID).Put(beUint32(seq), encodeRuneId(id))
}

// SequenceRuneId looks up the rune id paired with an inscription
// sequence number, if any.
func SequenceRuneId(tx *bolt.Tx, seq uint32) (RuneIdKey, bool, error) {
	v := tx.Bucket(bucketSeqToRuneID).Get(beUint32(seq))
	if v == nil {
		return RuneIdKey{}, false, nil
	}
	id, err := decodeRuneId(v)
	return id, err == nil, err
}

// RuneByTxid resolves an etching transaction's txid to the rune it
// etched.
func RuneByTxid(tx *bolt.Tx, txid [32]byte) (*big.Int, bool) {
	v := tx.Bucket(bucketTxidToRune).Get(txid[:])
	if v == nil {
		return nil, false
	}
	return decodeRune128(v), true
}
