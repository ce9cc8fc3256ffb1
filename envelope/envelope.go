// Package envelope decodes the witness-script-embedded inscription envelope:
// the OP_FALSE OP_IF <protocol-id> <tag,value>* [BODY <chunks>*] OP_ENDIF
// pattern a transaction input's witness carries.
package envelope

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// protocolID is the envelope's magic push, immediately following OP_IF.
const protocolID = "ord"

// Tag is a small integer indexing one inscription field inside an envelope.
type Tag uint64

const (
	TagBody            Tag = 0
	TagContentType     Tag = 1
	TagPointer         Tag = 2
	TagParent          Tag = 3
	TagMetadata        Tag = 5
	TagMetaprotocol    Tag = 7
	TagContentEncoding Tag = 9
	TagDelegate        Tag = 11
)

// Envelope is one parsed OP_FALSE OP_IF ... OP_ENDIF payload found in a
// transaction input's witness.
type Envelope struct {
	Fields  map[Tag][]byte
	Body    []byte
	HasBody bool

	DuplicateField        bool
	IncompleteField       bool
	UnrecognizedEvenField bool
	Pushnum               bool
}

// IndexedEnvelope is an Envelope together with the input it was found in and
// its position among envelopes found in that input (needed by the
// inscription indexer to apply the not_in_first_input / stutter curses).
type IndexedEnvelope struct {
	Envelope
	InputIndex    int
	EnvelopeIndex int
}

// FromTransaction scans every input's witness, in input order, for
// envelopes, and returns them in canonical (input, envelope-in-input)
// order.
func FromTransaction(tx *wire.MsgTx) []IndexedEnvelope {
	var out []IndexedEnvelope
	for i, in := range tx.TxIn {
		idx := 0
		for _, item := range in.Witness {
			for _, env := range scanWitnessItem(item) {
				out = append(out, IndexedEnvelope{Envelope: env, InputIndex: i, EnvelopeIndex: idx})
				idx++
			}
		}
	}
	return out
}

func scanWitnessItem(item []byte) []Envelope {
	var envelopes []Envelope

	t := txscript.MakeScriptTokenizer(0, item)
	for t.Next() {
		if t.Opcode() != txscript.OP_0 {
			continue
		}
		if !t.Next() {
			break
		}
		if t.Opcode() != txscript.OP_IF {
			continue
		}
		if !t.Next() {
			break
		}
		if !isDataPush(t.Opcode()) || string(t.Data()) != protocolID {
			continue
		}
		envelopes = append(envelopes, parseBody(&t))
	}

	return envelopes
}

func parseBody(t *txscript.ScriptTokenizer) Envelope {
	env := Envelope{Fields: map[Tag][]byte{}}

	for {
		if !t.Next() {
			env.IncompleteField = true
			return env
		}

		if t.Opcode() == txscript.OP_ENDIF {
			return env
		}

		if !isDataPush(t.Opcode()) {
			env.Pushnum = true
			continue
		}

		tag := decodeTag(t.Data())

		if tag == TagBody {
			env.HasBody = true
			for t.Next() {
				if t.Opcode() == txscript.OP_ENDIF {
					return env
				}
				if !isDataPush(t.Opcode()) {
					env.Pushnum = true
					continue
				}
				env.Body = append(env.Body, t.Data()...)
			}
			env.IncompleteField = true
			return env
		}

		if !t.Next() {
			env.IncompleteField = true
			return env
		}
		if !isDataPush(t.Opcode()) {
			env.Pushnum = true
			continue
		}
		value := append([]byte(nil), t.Data()...)

		if _, exists := env.Fields[tag]; exists {
			env.DuplicateField = true
			continue
		}
		env.Fields[tag] = value
		if tag%2 == 0 && tag != TagBody && tag != TagPointer {
			env.UnrecognizedEvenField = true
		}
	}
}

func decodeTag(data []byte) Tag {
	var n uint64
	for i, b := range data {
		if i >= 8 {
			break
		}
		n |= uint64(b) << (8 * i)
	}
	return Tag(n)
}

func isDataPush(op byte) bool {
	return op == txscript.OP_0 || (op >= txscript.OP_DATA_1 && op <= txscript.OP_PUSHDATA4)
}
