package models

import "fmt"

// Input represents a transaction input spending one prior output
type Input struct {
	PrevTx    string `json:"prev_tx"` // hash of the transaction that created the output
	ID        uint32 `json:"id"`      // output id within PrevTx
	Value     Amount `json:"value"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// NewInput wraps an output of transaction prevTx as an unsigned input
func NewInput(prevTx string, out Output) Input {
	return Input{
		PrevTx:  prevTx,
		ID:      out.ID,
		Value:   out.Value,
		Address: out.Address,
	}
}

// IsSigned reports whether the ownership proof fields are populated
func (in Input) IsSigned() bool {
	return in.PublicKey != "" && in.Signature != ""
}

// Outpoint returns the (transaction, output id) pair the input spends
func (in Input) Outpoint() Outpoint {
	return Outpoint{TxHash: in.PrevTx, ID: in.ID}
}

// Outpoint identifies an output across the whole ledger
type Outpoint struct {
	TxHash string
	ID     uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash, o.ID)
}
