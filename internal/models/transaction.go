package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
)

// Transaction represents an append-only ledger transaction.
//
// Hash, VinHash and VoutHash form a hash chain over the transaction contents:
// VoutHash and VinHash digest the canonical serialization of Vout and Vin, and Hash
// digests the header (every scalar field except Hash itself). Recomputing the chain
// and comparing against the stored Hash is the only tamper check.
type Transaction struct {
	Hash     string   `json:"hash"`
	UUID     string   `json:"uuid"`
	Date     int64    `json:"date"` // unix seconds
	VinHash  string   `json:"vin_hash"`
	VoutHash string   `json:"vout_hash"`
	Vout     []Output `json:"vout"`
	Vin      []Input  `json:"vin"`
}

// header is the hashed part of a transaction; field order is part of the format
type header struct {
	UUID     string `json:"uuid"`
	Date     int64  `json:"date"`
	VinHash  string `json:"vin_hash"`
	VoutHash string `json:"vout_hash"`
}

// NewTransaction creates an empty transaction with a fresh identifier and timestamp
func NewTransaction() *Transaction {
	id := uuid.New()
	return &Transaction{
		UUID: base58.Encode(id[:]),
		Date: time.Now().Unix(),
		Vout: []Output{},
		Vin:  []Input{},
	}
}

// AddOutput appends an output; its id is its position in Vout.
// The value is not validated here.
func (t *Transaction) AddOutput(value Amount, address string) {
	t.Vout = append(t.Vout, Output{
		ID:      uint32(len(t.Vout)),
		Value:   value,
		Address: address,
	})
}

// SetInputs replaces the input list, ordered by (id, prev_tx) so that a
// transaction reloaded from the store serializes identically
func (t *Transaction) SetInputs(inputs []Input) {
	vin := make([]Input, len(inputs))
	copy(vin, inputs)
	sortInputs(vin)
	t.Vin = vin
}

// ComputeHash recomputes VoutHash, VinHash and then Hash.
// It must run once after Vout and Vin are final and before the transaction is persisted.
func (t *Transaction) ComputeHash() {
	t.VoutHash = digest(t.outputs())
	t.VinHash = digest(t.inputs())
	t.Hash = digest(header{
		UUID:     t.UUID,
		Date:     t.Date,
		VinHash:  t.VinHash,
		VoutHash: t.VoutHash,
	})
}

// Validate recomputes the hash chain and reports whether every link matches the
// stored values. On mismatch the stored hash fields are left untouched.
func (t *Transaction) Validate() bool {
	hash, vinHash, voutHash := t.Hash, t.VinHash, t.VoutHash

	t.ComputeHash()
	if hash != "" && t.Hash == hash && t.VinHash == vinHash && t.VoutHash == voutHash {
		return true
	}

	t.Hash, t.VinHash, t.VoutHash = hash, vinHash, voutHash
	return false
}

// IsCoinbase reports whether the transaction creates value without spending any
func (t *Transaction) IsCoinbase() bool {
	return len(t.Vin) == 0
}

// InputTotal returns the sum of all input values
func (t *Transaction) InputTotal() (Amount, error) {
	values := make([]Amount, 0, len(t.Vin))
	for _, in := range t.Vin {
		values = append(values, in.Value)
	}
	return SumAmounts(values...)
}

// OutputTotal returns the sum of all output values
func (t *Transaction) OutputTotal() (Amount, error) {
	values := make([]Amount, 0, len(t.Vout))
	for _, out := range t.Vout {
		values = append(values, out.Value)
	}
	return SumAmounts(values...)
}

// Clone returns a copy of t that shares no slices with it
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.Vout = append([]Output(nil), t.outputs()...)
	cp.Vin = append([]Input(nil), t.inputs()...)
	return &cp
}

// Output returns the output with the given id
func (t *Transaction) Output(id uint32) (Output, bool) {
	for _, out := range t.Vout {
		if out.ID == id {
			return out, true
		}
	}
	return Output{}, false
}

// outputs and inputs never serialize as null
func (t *Transaction) outputs() []Output {
	if t.Vout == nil {
		return []Output{}
	}
	return t.Vout
}

func (t *Transaction) inputs() []Input {
	if t.Vin == nil {
		return []Input{}
	}
	return t.Vin
}

func sortInputs(vin []Input) {
	sort.SliceStable(vin, func(i, j int) bool {
		if vin[i].ID != vin[j].ID {
			return vin[i].ID < vin[j].ID
		}
		return vin[i].PrevTx < vin[j].PrevTx
	})
}

func sortOutputs(vout []Output) {
	sort.SliceStable(vout, func(i, j int) bool {
		return vout[i].ID < vout[j].ID
	})
}

// digest returns the hex SHA-256 of the canonical JSON form of v
func digest(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// only plain structs, strings and Amount reach here
		panic(fmt.Sprintf("canonical serialization failed: %v", err))
	}
	return hex.EncodeToString(chainhash.HashB(data))
}
