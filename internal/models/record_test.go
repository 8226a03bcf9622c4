package models_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/utxo-graph/internal/models"
)

func TestRecordRoundTrip(t *testing.T) {
	tx := newSpendTx(t)
	rec := tx.ToRecord()

	assert.Equal(t, "4.0", rec.Outputs[0][models.FieldValue])
	assert.Equal(t, "6.0", rec.Outputs[1][models.FieldValue])

	// the store hands lists back in no particular order
	outputs := []models.Record{rec.Outputs[1], rec.Outputs[0]}
	inputs := []models.Record{rec.Inputs[1], rec.Inputs[0]}

	back, err := models.FromRecord(rec.Node, outputs, inputs)
	require.NoError(t, err)
	assert.Equal(t, tx, back)
	assert.True(t, back.Validate())

	back.ComputeHash()
	assert.Equal(t, tx.Hash, back.Hash)
}

func TestRecordRoundTripCoinbase(t *testing.T) {
	tx := models.NewTransaction()
	tx.AddOutput(10*models.AmountPerCoin, addrX)
	tx.ComputeHash()

	rec := tx.ToRecord()
	back, err := models.FromRecord(rec.Node, rec.Outputs, nil)
	require.NoError(t, err)
	assert.True(t, back.Validate())
	assert.True(t, back.IsCoinbase())
}

func TestFromRecordMalformed(t *testing.T) {
	tx := newSpendTx(t)

	cases := map[string]func(rec *models.TransactionRecord){
		"missing hash":      func(rec *models.TransactionRecord) { delete(rec.Node, models.FieldHash) },
		"bad date":          func(rec *models.TransactionRecord) { rec.Node[models.FieldDate] = "yesterday" },
		"bad output id":     func(rec *models.TransactionRecord) { rec.Outputs[0][models.FieldID] = "-1" },
		"bad output value":  func(rec *models.TransactionRecord) { rec.Outputs[0][models.FieldValue] = "ten" },
		"missing address":   func(rec *models.TransactionRecord) { delete(rec.Outputs[1], models.FieldAddress) },
		"unsigned input":    func(rec *models.TransactionRecord) { rec.Inputs[0][models.FieldSignature] = "" },
		"input without ref": func(rec *models.TransactionRecord) { delete(rec.Inputs[1], models.FieldPrevTx) },
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			rec := tx.ToRecord()
			corrupt(&rec)

			_, err := models.FromRecord(rec.Node, rec.Outputs, rec.Inputs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrMalformedRecord))
		})
	}
}
