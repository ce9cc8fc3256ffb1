// Package events defines the typed events the indexer emits as it
// commits blocks, and a minimal in-process bus for delivering them to
// external collaborators.
package events

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/ordsuite/ordinex/ordinals"
	"github.com/ordsuite/ordinex/store"
)

// Event is the common envelope every event carries: a batch correlation
// id (shared by every event emitted while committing one block batch)
// and a monotonic sequence number within that batch.
type Event struct {
	BatchID  string
	Sequence uint64
	Payload  any
}

// InscriptionCreated fires the first time an inscription is indexed.
type InscriptionCreated struct {
	Id       ordinals.InscriptionId
	Number   int64
	Location ordinals.SatPoint
}

// InscriptionTransferred fires when an inscription's satpoint moves.
type InscriptionTransferred struct {
	Id          ordinals.InscriptionId
	OldLocation ordinals.SatPoint
	NewLocation ordinals.SatPoint
}

// RuneEtched fires when a transaction successfully etches a new rune.
type RuneEtched struct {
	Id   store.RuneIdKey
	Rune *big.Int
}

// RuneMinted fires when a claim successfully mints new units of a rune.
type RuneMinted struct {
	Id     store.RuneIdKey
	Amount *big.Int
}

// RuneTransferred fires when an edict or residual assignment moves rune
// balance to an outpoint.
type RuneTransferred struct {
	Id       store.RuneIdKey
	Amount   *big.Int
	Outpoint ordinals.OutPoint
}

// RuneBurned fires when rune balance is destroyed, either by an explicit
// burn flag or by landing on a provably unspendable output.
type RuneBurned struct {
	Id     store.RuneIdKey
	Amount *big.Int
}

// Sink receives events as they are emitted. Implementations must not
// block the indexer for long; delivery is best-effort within a
// committed block.
type Sink interface {
	Emit(Event)
}

// Batch collects events for one block batch under a shared correlation
// id, then hands them to a Sink in sequence order once the batch
// commits. Events queued before Flush are held in memory only; nothing
// is delivered if the batch is discarded instead of flushed.
type Batch struct {
	id     string
	next   uint64
	events []Event
}

// NewBatch starts a new batch with a fresh correlation id.
func NewBatch() *Batch {
	return &Batch{id: uuid.New().String()}
}

// Add appends an event to the batch under construction.
func (b *Batch) Add(payload any) {
	b.events = append(b.events, Event{BatchID: b.id, Sequence: b.next, Payload: payload})
	b.next++
}

// Flush delivers every queued event to sink in sequence order and
// clears the batch.
func (b *Batch) Flush(sink Sink) {
	if sink == nil {
		b.events = nil
		return
	}
	for _, ev := range b.events {
		sink.Emit(ev)
	}
	b.events = nil
}

// ChanSink is a Sink backed by a buffered channel, for a single
// in-process consumer. Emit drops the event if the channel is full
// rather than blocking the indexer.
type ChanSink struct {
	ch chan Event
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer)}
}

// C returns the channel events are delivered on.
func (s *ChanSink) C() <-chan Event {
	return s.ch
}

// Emit implements Sink.
func (s *ChanSink) Emit(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}
