package models

// Output represents a transaction output, an indivisible unit of value
type Output struct {
	ID      uint32 `json:"id"` // position in the parent transaction's vout
	Value   Amount `json:"value"`
	Address string `json:"address"`
}
