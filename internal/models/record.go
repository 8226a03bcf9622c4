package models

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// Record property names of Transaction and Output nodes
const (
	FieldHash      = "hash"
	FieldUUID      = "uuid"
	FieldDate      = "date"
	FieldVinHash   = "vin_hash"
	FieldVoutHash  = "vout_hash"
	FieldID        = "id"
	FieldValue     = "value"
	FieldAddress   = "address"
	FieldPrevTx    = "prev_tx"
	FieldPublicKey = "public_key"
	FieldSignature = "signature"
)

// ErrMalformedRecord is returned when a stored record cannot be decoded
var ErrMalformedRecord = errors.New("malformed record")

// Record is the flat property form of a stored node; every value is text
type Record = map[string]string

// TransactionRecord holds the records a transaction is persisted as
type TransactionRecord struct {
	Node    Record
	Outputs []Record
	Inputs  []Record
}

// ToRecord converts the transaction into store records
func (t *Transaction) ToRecord() TransactionRecord {
	rec := TransactionRecord{
		Node: Record{
			FieldHash:     t.Hash,
			FieldUUID:     t.UUID,
			FieldDate:     strconv.FormatInt(t.Date, 10),
			FieldVinHash:  t.VinHash,
			FieldVoutHash: t.VoutHash,
		},
		Outputs: make([]Record, 0, len(t.Vout)),
		Inputs:  make([]Record, 0, len(t.Vin)),
	}
	for _, out := range t.Vout {
		rec.Outputs = append(rec.Outputs, out.Record())
	}
	for _, in := range t.Vin {
		rec.Inputs = append(rec.Inputs, in.Record())
	}
	return rec
}

// Record converts the output into its store record
func (o Output) Record() Record {
	return Record{
		FieldID:      strconv.FormatUint(uint64(o.ID), 10),
		FieldValue:   o.Value.String(),
		FieldAddress: o.Address,
	}
}

// Record converts the input into the record of the spent output it stamps
func (in Input) Record() Record {
	return Record{
		FieldID:        strconv.FormatUint(uint64(in.ID), 10),
		FieldValue:     in.Value.String(),
		FieldAddress:   in.Address,
		FieldPrevTx:    in.PrevTx,
		FieldPublicKey: in.PublicKey,
		FieldSignature: in.Signature,
	}
}

// FromRecord rebuilds a transaction from its node, its output records and the
// records of the outputs it spent. Outputs and inputs come back sorted by id.
func FromRecord(node Record, outputs, inputs []Record) (*Transaction, error) {
	date, err := parseInt(node, FieldDate)
	if err != nil {
		return nil, err
	}

	t := &Transaction{
		Date: date,
		Vout: make([]Output, 0, len(outputs)),
		Vin:  make([]Input, 0, len(inputs)),
	}
	for field, dst := range map[string]*string{
		FieldHash:     &t.Hash,
		FieldUUID:     &t.UUID,
		FieldVinHash:  &t.VinHash,
		FieldVoutHash: &t.VoutHash,
	} {
		if *dst, err = require(node, field); err != nil {
			return nil, err
		}
	}

	for _, rec := range outputs {
		out, err := OutputFromRecord(rec)
		if err != nil {
			return nil, err
		}
		t.Vout = append(t.Vout, out)
	}
	for _, rec := range inputs {
		in, err := InputFromRecord(rec)
		if err != nil {
			return nil, err
		}
		t.Vin = append(t.Vin, in)
	}

	sortOutputs(t.Vout)
	sortInputs(t.Vin)
	return t, nil
}

// OutputFromRecord decodes an output record
func OutputFromRecord(rec Record) (Output, error) {
	id, err := parseID(rec)
	if err != nil {
		return Output{}, err
	}
	value, err := parseValue(rec)
	if err != nil {
		return Output{}, err
	}
	address, err := require(rec, FieldAddress)
	if err != nil {
		return Output{}, err
	}
	return Output{ID: id, Value: value, Address: address}, nil
}

// InputFromRecord decodes the record of a spent output back into the input that spent it
func InputFromRecord(rec Record) (Input, error) {
	out, err := OutputFromRecord(rec)
	if err != nil {
		return Input{}, err
	}

	in := NewInput("", out)
	for field, dst := range map[string]*string{
		FieldPrevTx:    &in.PrevTx,
		FieldPublicKey: &in.PublicKey,
		FieldSignature: &in.Signature,
	} {
		if *dst, err = require(rec, field); err != nil {
			return Input{}, err
		}
	}
	return in, nil
}

func require(rec Record, field string) (string, error) {
	v, ok := rec[field]
	if !ok || v == "" {
		return "", errors.Wrapf(ErrMalformedRecord, "missing field %q", field)
	}
	return v, nil
}

func parseInt(rec Record, field string) (int64, error) {
	v, err := require(rec, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedRecord, "field %q: %v", field, err)
	}
	return n, nil
}

func parseID(rec Record) (uint32, error) {
	v, err := require(rec, FieldID)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedRecord, "field %q: %v", FieldID, err)
	}
	return uint32(n), nil
}

func parseValue(rec Record) (Amount, error) {
	v, err := require(rec, FieldValue)
	if err != nil {
		return 0, err
	}
	a, err := ParseAmount(v)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedRecord, "field %q: %v", FieldValue, err)
	}
	return a, nil
}
