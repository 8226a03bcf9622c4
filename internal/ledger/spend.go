package ledger

import (
	"context"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/thanhnp/utxo-graph/internal/crypto"
	"github.com/thanhnp/utxo-graph/internal/metrics"
	"github.com/thanhnp/utxo-graph/internal/models"
)

// Spend states
const (
	StateSelecting = "selecting"
	StateSigning   = "signing"
	StateVerifying = "verifying"
	StateBuilding  = "building"
	StatePersisted = "persisted"
	StateAborted   = "aborted"
)

// Spend events
const (
	EventSign    = "sign"
	EventVerify  = "verify"
	EventBuild   = "build"
	EventPersist = "persist"
	EventRetry   = "retry"
	EventAbort   = "abort"
)

// Signer holds the private key of an address and signs inputs spending its outputs
type Signer interface {
	// Address returns the address the signer owns
	Address() string

	// SignInputs returns copies of inputs with PublicKey and Signature set
	SignInputs(inputs []models.Input) ([]models.Input, error)
}

// Quote is the first half of a two-phase spend: the unsigned inputs an external
// signer must sign
type Quote struct {
	From   string         `json:"from"`
	Amount models.Amount  `json:"amount"`
	Inputs []models.Input `json:"inputs"`
	Total  models.Amount  `json:"total"`
}

// SubmitRequest is the second half of a two-phase spend
type SubmitRequest struct {
	From   string         `json:"from"`
	To     string         `json:"to"`
	Amount models.Amount  `json:"amount"`
	Inputs []models.Input `json:"inputs"`
}

// NewSpendFSM creates the state machine of one spend.
//
//	selecting -sign-> signing -verify-> verifying -build-> building -persist-> persisted
//	building -retry-> selecting
//	any non-terminal state -abort-> aborted
func NewSpendFSM(log zerolog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateSelecting,
		fsm.Events{
			{Name: EventSign, Src: []string{StateSelecting}, Dst: StateSigning},
			{Name: EventVerify, Src: []string{StateSigning}, Dst: StateVerifying},
			{Name: EventBuild, Src: []string{StateVerifying}, Dst: StateBuilding},
			{Name: EventPersist, Src: []string{StateBuilding}, Dst: StatePersisted},
			{Name: EventRetry, Src: []string{StateBuilding}, Dst: StateSelecting},
			{
				Name: EventAbort,
				Src: []string{
					StateSelecting,
					StateSigning,
					StateVerifying,
					StateBuilding,
				},
				Dst: StateAborted,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("spend state")
			},
		},
	)
}

// spend carries one spend through its state machine
type spend struct {
	l      *Ledger
	fsm    *fsm.FSM
	from   string
	to     string
	amount models.Amount
	tx     *models.Transaction
}

func (l *Ledger) newSpend(from, to string, amount models.Amount) *spend {
	log := l.log.With().Str("from", from).Str("to", to).Str("amount", amount.String()).Logger()
	return &spend{
		l:      l,
		fsm:    NewSpendFSM(log),
		from:   from,
		to:     to,
		amount: amount,
	}
}

func (s *spend) event(ctx context.Context, name string) error {
	if err := s.fsm.Event(ctx, name); err != nil {
		return errors.Wrapf(err, "spend %s -> %s", s.fsm.Current(), name)
	}
	return nil
}

// abort moves the spend to aborted and records the outcome of err
func (s *spend) abort(ctx context.Context, err error) error {
	state := s.fsm.Current()
	if evErr := s.event(ctx, EventAbort); evErr != nil {
		s.l.log.Error().Err(evErr).Msg("failed to abort spend")
	}

	metrics.SpendsTotal.WithLabelValues(outcome(err)).Inc()
	s.l.log.Info().Err(err).Str("state", state).Str("from", s.from).Msg("spend aborted")
	return err
}

// Send moves amount from the signer's address to to. The signer signs inputs the
// ledger selected; the ledger verifies them before building and persisting the
// spending transaction. If another spend claims a selected output first, selection
// starts over, up to the configured number of retries.
func (l *Ledger) Send(ctx context.Context, signer Signer, to string, amount models.Amount) (*models.Transaction, error) {
	from := signer.Address()
	if err := checkSpend(from, to, amount); err != nil {
		return nil, err
	}

	s := l.newSpend(from, to, amount)
	for attempt := 0; ; attempt++ {
		err := s.run(ctx, signer)
		if err == nil {
			return s.tx, nil
		}
		if !errors.Is(err, ErrOutputSpent) || attempt >= l.maxRetries {
			return nil, s.abort(ctx, err)
		}

		metrics.SpendRetries.Inc()
		l.log.Info().Err(err).Int("attempt", attempt+1).Msg("output claimed concurrently, reselecting")
		if err := s.event(ctx, EventRetry); err != nil {
			return nil, s.abort(ctx, err)
		}
	}
}

// run takes the spend from selecting to persisted
func (s *spend) run(ctx context.Context, signer Signer) error {
	inputs, total, err := s.l.SelectUnspent(ctx, s.from, s.amount)
	if err != nil {
		return err
	}
	if total < s.amount {
		return errors.Wrapf(ErrInsufficientBalance, "%s has %s, needs %s", s.from, total, s.amount)
	}

	if err := s.event(ctx, EventSign); err != nil {
		return err
	}
	signed, err := signer.SignInputs(inputs)
	if err != nil {
		return errors.Wrap(err, "failed to sign inputs")
	}

	return s.finish(ctx, signed)
}

// finish verifies signed inputs, builds the transaction and persists it.
// The spend must be in the signing state.
func (s *spend) finish(ctx context.Context, inputs []models.Input) error {
	if err := s.event(ctx, EventVerify); err != nil {
		return err
	}
	if err := verifyInputs(s.from, inputs); err != nil {
		return err
	}

	if err := s.event(ctx, EventBuild); err != nil {
		return err
	}
	tx, err := buildSpend(s.from, s.to, s.amount, inputs)
	if err != nil {
		return err
	}

	if err := s.l.Persist(ctx, tx); err != nil {
		return err
	}
	if err := s.event(ctx, EventPersist); err != nil {
		return err
	}

	s.tx = tx
	metrics.SpendsTotal.WithLabelValues(metrics.OutcomePersisted).Inc()
	s.l.log.Info().Str("hash", tx.Hash).Str("from", s.from).Str("to", s.to).Stringer("amount", s.amount).Msg("spend persisted")
	return nil
}

// Prepare selects unspent outputs of from covering amount and returns them as
// unsigned inputs for an external signer
func (l *Ledger) Prepare(ctx context.Context, from string, amount models.Amount) (*Quote, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkAddress(from); err != nil {
		return nil, err
	}

	inputs, total, err := l.SelectUnspent(ctx, from, amount)
	if err != nil {
		return nil, err
	}
	if total < amount {
		metrics.SpendsTotal.WithLabelValues(metrics.OutcomeInsufficientBalance).Inc()
		return nil, errors.Wrapf(ErrInsufficientBalance, "%s has %s, needs %s", from, total, amount)
	}
	return &Quote{From: from, Amount: amount, Inputs: inputs, Total: total}, nil
}

// Submit completes a two-phase spend with inputs signed outside the ledger.
// Every input is verified again and the total is recomputed from the inputs.
// Submit does not retry: the inputs of a lost race cannot be re-signed here.
func (l *Ledger) Submit(ctx context.Context, req SubmitRequest) (*models.Transaction, error) {
	if err := checkSpend(req.From, req.To, req.Amount); err != nil {
		return nil, err
	}

	s := l.newSpend(req.From, req.To, req.Amount)
	if err := checkInputs(req.Inputs, req.Amount); err != nil {
		return nil, s.abort(ctx, err)
	}

	// signing happened outside
	if err := s.event(ctx, EventSign); err != nil {
		return nil, s.abort(ctx, err)
	}
	if err := s.finish(ctx, req.Inputs); err != nil {
		return nil, s.abort(ctx, err)
	}
	return s.tx, nil
}

// CreateCoinbase persists a transaction without inputs paying amount to to.
// It is the only way value enters the ledger.
func (l *Ledger) CreateCoinbase(ctx context.Context, to string, amount models.Amount) (*models.Transaction, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkAddress(to); err != nil {
		return nil, err
	}

	// keep the recipient's balance representable; selection still fails closed
	// if concurrent coinbases race past this check
	balance, err := l.GetBalance(ctx, to)
	if err != nil {
		return nil, err
	}
	if _, err := balance.Add(amount); err != nil {
		return nil, errors.Wrapf(err, "balance of %s", to)
	}

	tx := models.NewTransaction()
	tx.AddOutput(amount, to)
	tx.ComputeHash()

	if err := l.Persist(ctx, tx); err != nil {
		return nil, err
	}

	metrics.CoinbaseTotal.Inc()
	l.log.Info().Str("hash", tx.Hash).Str("to", to).Stringer("amount", amount).Msg("coinbase persisted")
	return tx, nil
}

// buildSpend creates the spending transaction: a payment output and, when the
// inputs exceed amount, a change output back to from
func buildSpend(from, to string, amount models.Amount, inputs []models.Input) (*models.Transaction, error) {
	tx := models.NewTransaction()
	tx.SetInputs(inputs)

	total, err := tx.InputTotal()
	if err != nil {
		return nil, err
	}
	tx.AddOutput(amount, to)
	if change := total - amount; change != 0 {
		tx.AddOutput(change, from)
	}
	tx.ComputeHash()
	return tx, nil
}

// verifyInputs checks the ownership proof of every input: the input belongs to
// from, its public key derives its address, and its signature covers prev_tx
func verifyInputs(from string, inputs []models.Input) error {
	if len(inputs) == 0 {
		return errors.Wrap(ErrInvalidSignature, "no inputs")
	}
	for _, in := range inputs {
		if err := verifyInput(from, in); err != nil {
			return err
		}
	}
	return nil
}

func verifyInput(from string, in models.Input) error {
	op := in.Outpoint()
	if !in.IsSigned() {
		return errors.Wrapf(ErrInvalidSignature, "input %s is not signed", op)
	}
	if in.Address != from {
		return errors.Wrapf(ErrInvalidSignature, "input %s belongs to %s, not %s", op, in.Address, from)
	}

	pub, err := hex.DecodeString(in.PublicKey)
	if err != nil {
		return errors.Wrapf(ErrInvalidSignature, "input %s: malformed public key", op)
	}
	if crypto.DeriveAddress(pub) != in.Address {
		return errors.Wrapf(ErrInvalidSignature, "input %s: public key does not match address %s", op, in.Address)
	}
	if !crypto.VerifyHex(in.PublicKey, in.Signature, []byte(in.PrevTx)) {
		return errors.Wrapf(ErrInvalidSignature, "input %s: signature does not verify", op)
	}
	return nil
}

// checkInputs rejects empty, duplicated or insufficient externally supplied inputs
func checkInputs(inputs []models.Input, amount models.Amount) error {
	if len(inputs) == 0 {
		return errors.Wrap(ErrInsufficientBalance, "no inputs")
	}

	seen := make(map[models.Outpoint]bool, len(inputs))
	var total models.Amount
	var err error
	for _, in := range inputs {
		if seen[in.Outpoint()] {
			return errors.Wrapf(ErrDuplicateInput, "%s", in.Outpoint())
		}
		seen[in.Outpoint()] = true

		if in.Value <= 0 {
			return errors.Wrapf(ErrInvalidAmount, "input %s has value %s", in.Outpoint(), in.Value)
		}
		if total, err = total.Add(in.Value); err != nil {
			return err
		}
	}
	if total < amount {
		return errors.Wrapf(ErrInsufficientBalance, "inputs total %s, needs %s", total, amount)
	}
	return nil
}

func checkSpend(from, to string, amount models.Amount) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := checkAddress(from); err != nil {
		return err
	}
	return checkAddress(to)
}

func checkAmount(amount models.Amount) error {
	if amount <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount must be positive, got %s", amount)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return metrics.OutcomeInsufficientBalance
	case errors.Is(err, ErrInvalidSignature):
		return metrics.OutcomeInvalidSignature
	case errors.Is(err, ErrOutputSpent), errors.Is(err, ErrOutputMismatch), errors.Is(err, ErrOutputNotFound):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
