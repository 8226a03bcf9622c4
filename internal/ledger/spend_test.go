package ledger

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

func TestSpendFSM(t *testing.T) {
	ctx := context.Background()

	m := NewSpendFSM(zerolog.Nop())
	assert.Equal(t, StateSelecting, m.Current())

	for _, ev := range []struct{ event, state string }{
		{EventSign, StateSigning},
		{EventVerify, StateVerifying},
		{EventBuild, StateBuilding},
		{EventRetry, StateSelecting},
		{EventSign, StateSigning},
		{EventVerify, StateVerifying},
		{EventBuild, StateBuilding},
		{EventPersist, StatePersisted},
	} {
		require.NoError(t, m.Event(ctx, ev.event), ev.event)
		assert.Equal(t, ev.state, m.Current())
	}

	// persisted is terminal
	assert.Error(t, m.Event(ctx, EventAbort))

	m = NewSpendFSM(zerolog.Nop())
	assert.Error(t, m.Event(ctx, EventBuild))
	require.NoError(t, m.Event(ctx, EventSign))
	require.NoError(t, m.Event(ctx, EventAbort))
	assert.Equal(t, StateAborted, m.Current())
	assert.Error(t, m.Event(ctx, EventRetry))
}

func TestPrepareSubmit(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	x, y := newKey(t), newKey(t)

	coinbase(t, l, x.Address(), "3")
	coinbase(t, l, x.Address(), "3")

	quote, err := l.Prepare(ctx, x.Address(), coins("5"))
	require.NoError(t, err)
	assert.Len(t, quote.Inputs, 2)
	assert.Equal(t, coins("6"), quote.Total)

	signed, err := x.SignInputs(quote.Inputs)
	require.NoError(t, err)

	tx, err := l.Submit(ctx, SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("5"), Inputs: signed})
	require.NoError(t, err)
	assert.Len(t, tx.Vin, 2)
	in, err := tx.InputTotal()
	require.NoError(t, err)
	out, err := tx.OutputTotal()
	require.NoError(t, err)
	assert.Equal(t, coins("6"), in)
	assert.Equal(t, coins("6"), out)

	requireBalance(t, l, x.Address(), "1.0")
	requireBalance(t, l, y.Address(), "5.0")

	// the same signed inputs cannot be spent again
	_, err = l.Submit(ctx, SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("5"), Inputs: signed})
	assert.True(t, errors.Is(err, ErrOutputSpent))
}

func TestPrepareInsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	x := newKey(t)

	coinbase(t, l, x.Address(), "1")

	_, err := l.Prepare(context.Background(), x.Address(), coins("1.00000001"))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
}

func TestSubmitRejects(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	x, y := newKey(t), newKey(t)

	coinbase(t, l, x.Address(), "10")
	quote, err := l.Prepare(ctx, x.Address(), coins("4"))
	require.NoError(t, err)

	signed, err := x.SignInputs(quote.Inputs)
	require.NoError(t, err)
	forgedKey, err := y.SignInputs(quote.Inputs)
	require.NoError(t, err)

	inflated := append([]models.Input(nil), signed...)
	inflated[0].Value = coins("20")

	missing := append([]models.Input(nil), signed...)
	missing[0].ID = 7

	cases := []struct {
		name   string
		req    SubmitRequest
		target error
	}{
		{"unsigned", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("4"), Inputs: quote.Inputs}, ErrInvalidSignature},
		{"wrong key", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("4"), Inputs: forgedKey}, ErrInvalidSignature},
		{"not the sender's inputs", SubmitRequest{From: y.Address(), To: x.Address(), Amount: coins("4"), Inputs: signed}, ErrInvalidSignature},
		{"duplicate input", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("4"), Inputs: append(signed, signed...)}, ErrDuplicateInput},
		{"amount above inputs", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("11"), Inputs: signed}, ErrInsufficientBalance},
		{"no inputs", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("1")}, ErrInsufficientBalance},
		{"inflated value", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("15"), Inputs: inflated}, ErrOutputMismatch},
		{"unknown output", SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("4"), Inputs: missing}, ErrOutputNotFound},
		{"zero amount", SubmitRequest{From: x.Address(), To: y.Address(), Inputs: signed}, ErrInvalidAmount},
		{"bad recipient", SubmitRequest{From: x.Address(), To: "y", Amount: coins("4"), Inputs: signed}, ErrInvalidAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Submit(ctx, tc.req)
			assert.True(t, errors.Is(err, tc.target), "got %v", err)
		})
	}

	requireBalance(t, l, x.Address(), "10.0")
	requireBalance(t, l, y.Address(), "0.0")
}

func TestSubmitRejectsTamperedSource(t *testing.T) {
	l, g := newTestLedger(t)
	ctx := context.Background()
	x, y := newKey(t), newKey(t)

	funding := coinbase(t, l, x.Address(), "10")
	tamper(t, g, funding.Hash, "0", storage.Props{models.FieldValue: "1000.0"})
	requireBalance(t, l, x.Address(), "0.0")

	forged, err := x.SignInputs([]models.Input{
		models.NewInput(funding.Hash, models.Output{ID: 0, Value: coins("1000"), Address: x.Address()}),
	})
	require.NoError(t, err)

	_, err = l.Submit(ctx, SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("1000"), Inputs: forged})
	assert.True(t, errors.Is(err, ErrHashMismatch), "got %v", err)

	// the original value no longer matches the stored output either
	honest, err := x.SignInputs([]models.Input{models.NewInput(funding.Hash, funding.Vout[0])})
	require.NoError(t, err)
	_, err = l.Submit(ctx, SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("10"), Inputs: honest})
	assert.True(t, errors.Is(err, ErrHashMismatch), "got %v", err)

	requireBalance(t, l, y.Address(), "0.0")
}

func TestSubmitRejectsOverflowingInputs(t *testing.T) {
	l, _ := newTestLedger(t)
	x, y := newKey(t), newKey(t)

	inputs, err := x.SignInputs([]models.Input{
		{PrevTx: "aa", ID: 0, Value: coins("92233720368"), Address: x.Address()},
		{PrevTx: "bb", ID: 0, Value: coins("92233720368"), Address: x.Address()},
	})
	require.NoError(t, err)

	_, err = l.Submit(context.Background(), SubmitRequest{From: x.Address(), To: y.Address(), Amount: coins("1"), Inputs: inputs})
	assert.True(t, errors.Is(err, ErrInvalidAmount), "got %v", err)
}

func TestPersistPreconditions(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	x := newKey(t)

	funding := coinbase(t, l, x.Address(), "10")

	err := l.Persist(ctx, funding)
	assert.True(t, errors.Is(err, ErrDuplicateTransaction))

	unhashed := models.NewTransaction()
	unhashed.AddOutput(coins("1"), x.Address())
	err = l.Persist(ctx, unhashed)
	assert.True(t, errors.Is(err, ErrHashMismatch))

	unsigned := models.NewTransaction()
	unsigned.SetInputs([]models.Input{models.NewInput(funding.Hash, funding.Vout[0])})
	unsigned.AddOutput(coins("10"), x.Address())
	unsigned.ComputeHash()
	err = l.Persist(ctx, unsigned)
	assert.True(t, errors.Is(err, ErrUnsignedInput))

	requireBalance(t, l, x.Address(), "10.0")
}

func TestConcurrentSubmitsOfOneOutput(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	x := newKey(t)

	coinbase(t, l, x.Address(), "10")
	quote, err := l.Prepare(ctx, x.Address(), coins("4"))
	require.NoError(t, err)
	signed, err := x.SignInputs(quote.Inputs)
	require.NoError(t, err)

	const spenders = 8
	recipients := make([]string, spenders)
	for i := range recipients {
		recipients[i] = newKey(t).Address()
	}

	var persisted, rejected int32
	var eg errgroup.Group
	for i := 0; i < spenders; i++ {
		to := recipients[i]
		eg.Go(func() error {
			_, err := l.Submit(ctx, SubmitRequest{From: x.Address(), To: to, Amount: coins("4"), Inputs: signed})
			switch {
			case err == nil:
				atomic.AddInt32(&persisted, 1)
			case errors.Is(err, ErrOutputSpent):
				atomic.AddInt32(&rejected, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, int32(1), persisted)
	assert.Equal(t, int32(spenders-1), rejected)

	requireBalance(t, l, x.Address(), "6.0")
	var paid models.Amount
	for _, to := range recipients {
		b, err := l.GetBalance(ctx, to)
		require.NoError(t, err)
		paid += b
	}
	assert.Equal(t, coins("4"), paid)
}

func TestConcurrentSends(t *testing.T) {
	l, _ := newTestLedger(t, WithMaxSpendRetries(8))
	ctx := context.Background()
	x, y := newKey(t), newKey(t)

	coinbase(t, l, x.Address(), "10")
	coinbase(t, l, x.Address(), "10")

	var eg errgroup.Group
	for i := 0; i < 4; i++ {
		eg.Go(func() error {
			_, err := l.Send(ctx, x, y.Address(), coins("1"))
			return err
		})
	}
	require.NoError(t, eg.Wait())

	requireBalance(t, l, x.Address(), "16.0")
	requireBalance(t, l, y.Address(), "4.0")
}
