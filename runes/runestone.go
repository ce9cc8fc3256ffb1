package runes

import (
	"math/big"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/ordsuite/ordinex/ordinals"
)

// protocolTag is the OP_RETURN magic push that marks a runestone output.
const protocolTag = "RUNE_TEST"

// maxSpacers bounds the spacers field to 27 usable bit positions.
const maxSpacers = 0b00000111_11111111_11111111_11111111

// Runestone is the deciphered contents of a transaction's runestone
// output.
type Runestone struct {
	Burn          bool
	Claim         *big.Int
	DefaultOutput *uint32
	Edicts        []Edict
	Etching       *Etching
}

type message struct {
	fields map[uint64]*big.Int
	edicts []Edict
}

func messageFromIntegers(payload []*big.Int) message {
	var edicts []Edict
	fields := map[uint64]*big.Int{}

	for i := 0; i < len(payload); i += 2 {
		tag := payload[i]

		if tag.Cmp(big.NewInt(int64(TagBody))) == 0 {
			id := new(big.Int)
			rest := payload[i+1:]
			for j := 0; j+3 <= len(rest); j += 3 {
				id = new(big.Int).Add(id, rest[j])
				runeID, err := RuneIdFromBig(id)
				if err != nil {
					continue
				}
				edicts = append(edicts, Edict{
					Id:     runeID,
					Amount: rest[j+1],
					Output: uint32(rest[j+2].Uint64()),
				})
			}
			break
		}

		if i+1 >= len(payload) {
			break
		}
		if !tag.IsUint64() {
			continue
		}
		value := payload[i+1]

		key := tag.Uint64()
		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}

	return message{fields: fields, edicts: edicts}
}

// Decipher extracts the runestone from a transaction's outputs, if any.
// It returns (nil, nil) when the transaction carries no runestone output.
func Decipher(tx *wire.MsgTx) (*Runestone, error) {
	payload, ok := findPayload(tx)
	if !ok {
		return nil, nil
	}

	integers := decodeIntegers(payload)
	msg := messageFromIntegers(integers)

	claim, _ := TagClaim.take(msg.fields)

	defaultOutputVal, hasDefault := TagDefaultOutput.take(msg.fields)
	var defaultOutput *uint32
	if hasDefault && defaultOutputVal.IsUint64() && defaultOutputVal.Uint64() <= 0xffffffff {
		v := uint32(defaultOutputVal.Uint64())
		defaultOutput = &v
	}

	divisibility := uint8(0)
	if divVal, ok := TagDivisibility.take(msg.fields); ok && divVal.IsUint64() && divVal.Uint64() <= MaxDivisibility {
		divisibility = uint8(divVal.Uint64())
	}

	var limit *big.Int
	if limitVal, ok := TagLimit.take(msg.fields); ok {
		limit = limitVal
		if limit.Cmp(MaxLimit) > 0 {
			limit = new(big.Int).Set(MaxLimit)
		}
	}

	var runePtr *Rune
	if runeVal, ok := TagRune.take(msg.fields); ok {
		r := NewRune(runeVal)
		runePtr = &r
	}

	spacers := uint32(0)
	if spacersVal, ok := TagSpacers.take(msg.fields); ok && spacersVal.IsUint64() && spacersVal.Uint64() <= maxSpacers {
		spacers = uint32(spacersVal.Uint64())
	}

	var symbol *rune
	if symbolVal, ok := TagSymbol.take(msg.fields); ok && symbolVal.IsUint64() && symbolVal.Uint64() <= 0x10ffff {
		c := rune(symbolVal.Uint64())
		symbol = &c
	}

	var term *uint32
	if termVal, ok := TagTerm.take(msg.fields); ok && termVal.IsUint64() && termVal.Uint64() <= 0xffffffff {
		v := uint32(termVal.Uint64())
		term = &v
	}

	var deadline *uint32
	if deadlineVal, ok := TagDeadline.take(msg.fields); ok && deadlineVal.IsUint64() && deadlineVal.Uint64() <= 0xffffffff {
		v := uint32(deadlineVal.Uint64())
		deadline = &v
	}

	flagsVal, _ := TagFlags.take(msg.fields)
	var flags uint64
	if flagsVal != nil && flagsVal.IsUint64() {
		flags = flagsVal.Uint64()
	} else if flagsVal != nil {
		flags = ^uint64(0)
	}

	etch := FlagEtch.take(&flags)
	mint := FlagMint.take(&flags)

	var etching *Etching
	if etch {
		e := &Etching{
			Divisibility: divisibility,
			Rune:         runePtr,
			Spacers:      spacers,
			Symbol:       symbol,
		}
		if mint {
			e.Mint = &Mint{Deadline: deadline, Limit: limit, Term: term}
		}
		etching = e
	}

	burn := flags != 0
	if !burn {
		for tag := range msg.fields {
			if tag%2 == 0 {
				burn = true
				break
			}
		}
	}

	return &Runestone{
		Burn:          burn,
		Claim:         claim,
		DefaultOutput: defaultOutput,
		Edicts:        msg.edicts,
		Etching:       etching,
	}, nil
}

// Encipher serializes the runestone into an OP_RETURN script.
func (r *Runestone) Encipher() ([]byte, error) {
	var payload []byte

	if r.Etching != nil {
		var flags uint64
		FlagEtch.set(&flags)
		if r.Etching.Mint != nil {
			FlagMint.set(&flags)
		}
		payload = TagFlags.encode(new(big.Int).SetUint64(flags), payload)

		if r.Etching.Rune != nil {
			payload = TagRune.encode(r.Etching.Rune.Value, payload)
		}
		if r.Etching.Divisibility != 0 {
			payload = TagDivisibility.encode(big.NewInt(int64(r.Etching.Divisibility)), payload)
		}
		if r.Etching.Spacers != 0 {
			payload = TagSpacers.encode(big.NewInt(int64(r.Etching.Spacers)), payload)
		}
		if r.Etching.Symbol != nil {
			payload = TagSymbol.encode(big.NewInt(int64(*r.Etching.Symbol)), payload)
		}
		if r.Etching.Mint != nil {
			m := r.Etching.Mint
			if m.Deadline != nil {
				payload = TagDeadline.encode(big.NewInt(int64(*m.Deadline)), payload)
			}
			if m.Limit != nil {
				payload = TagLimit.encode(m.Limit, payload)
			}
			if m.Term != nil {
				payload = TagTerm.encode(big.NewInt(int64(*m.Term)), payload)
			}
		}
	}

	if r.Claim != nil {
		payload = TagClaim.encode(r.Claim, payload)
	}
	if r.DefaultOutput != nil {
		payload = TagDefaultOutput.encode(big.NewInt(int64(*r.DefaultOutput)), payload)
	}
	if r.Burn {
		payload = TagBurn.encode(big.NewInt(0), payload)
	}

	if len(r.Edicts) > 0 {
		payload = ordinals.AppendVarint(payload, big.NewInt(int64(TagBody)))

		edicts := append([]Edict(nil), r.Edicts...)
		sortEdictsByID(edicts)

		id := big.NewInt(0)
		for _, e := range edicts {
			eid := e.Id.ToBig()
			delta := new(big.Int).Sub(eid, id)
			payload = ordinals.AppendVarint(payload, delta)
			payload = ordinals.AppendVarint(payload, e.Amount)
			payload = ordinals.AppendVarint(payload, big.NewInt(int64(e.Output)))
			id = eid
		}
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddData([]byte(protocolTag))

	for i := 0; i < len(payload); i += txscript.MaxScriptElementSize {
		end := i + txscript.MaxScriptElementSize
		if end > len(payload) {
			end = len(payload)
		}
		builder.AddData(payload[i:end])
	}

	return builder.Script()
}

func sortEdictsByID(edicts []Edict) {
	for i := 1; i < len(edicts); i++ {
		for j := i; j > 0; j-- {
			if edicts[j-1].Id.ToBig().Cmp(edicts[j].Id.ToBig()) <= 0 {
				break
			}
			edicts[j-1], edicts[j] = edicts[j], edicts[j-1]
		}
	}
}

func findPayload(tx *wire.MsgTx) ([]byte, bool) {
	for _, out := range tx.TxOut {
		script := out.PkScript
		t := txscript.MakeScriptTokenizer(0, script)

		if !t.Next() || t.Opcode() != txscript.OP_RETURN {
			continue
		}
		if !t.Next() || !isDataPush(t.Opcode()) || string(t.Data()) != protocolTag {
			continue
		}

		var payload []byte
		for t.Next() {
			if isDataPush(t.Opcode()) {
				payload = append(payload, t.Data()...)
			}
		}
		return payload, true
	}
	return nil, false
}

func decodeIntegers(payload []byte) []*big.Int {
	var integers []*big.Int
	for i := 0; i < len(payload); {
		n, length := ordinals.DecodeVarint(payload[i:])
		integers = append(integers, n)
		i += length
	}
	return integers
}

func isDataPush(op byte) bool {
	return op == txscript.OP_0 || (op >= txscript.OP_DATA_1 && op <= txscript.OP_PUSHDATA4)
}
