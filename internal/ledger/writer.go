package ledger

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/thanhnp/utxo-graph/internal/metrics"
	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

// Persist writes tx, its outputs and the spending of its inputs in one atomic
// write. tx must carry a valid hash chain and every input must be signed.
//
// Every input must spend from a stored transaction that passes validation
// (ErrHashMismatch, ErrMalformedRecord otherwise).
//
// The write fails as a whole, leaving the store untouched, if any input refers to
// an output that is missing (ErrOutputNotFound), differs from the input's claimed
// value or address (ErrOutputMismatch), or already has a spender (ErrOutputSpent),
// or if tx itself is already stored (ErrDuplicateTransaction).
func (l *Ledger) Persist(ctx context.Context, tx *models.Transaction) error {
	if !tx.Validate() {
		return errors.Wrapf(ErrHashMismatch, "refusing to persist transaction %q", tx.Hash)
	}
	for _, in := range tx.Vin {
		if !in.IsSigned() {
			return errors.Wrapf(ErrUnsignedInput, "input %s", in.Outpoint())
		}
	}
	if err := l.checkSources(ctx, tx.Vin); err != nil {
		return err
	}

	if _, err := l.graph.Apply(ctx, buildWrite(tx)); err != nil {
		return classifyWriteError(errors.Wrapf(err, "failed to persist transaction %s", tx.Hash))
	}

	metrics.PersistedTxsTotal.Inc()
	metrics.PersistedOutputs.Add(float64(len(tx.Vout)))
	l.log.Debug().
		Str("hash", tx.Hash).
		Int("inputs", len(tx.Vin)).
		Int("outputs", len(tx.Vout)).
		Msg("transaction persisted")

	if l.notifier != nil {
		l.notifier.Publish(tx.Clone())
	}
	return nil
}

// checkSources loads the transaction each input spends from and checks that it
// validates and carries the claimed output
func (l *Ledger) checkSources(ctx context.Context, vin []models.Input) error {
	if len(vin) == 0 {
		return nil
	}

	return l.graph.View(ctx, func(r *storage.Reader) error {
		sources := make(map[string]*models.Transaction)
		for _, in := range vin {
			src, ok := sources[in.PrevTx]
			if !ok {
				var err error
				if src, err = loadSource(r, in.PrevTx); err != nil {
					return err
				}
				sources[in.PrevTx] = src
			}

			out, ok := src.Output(in.ID)
			if !ok {
				return errors.Wrapf(ErrOutputNotFound, "%s", in.Outpoint())
			}
			if out.Value != in.Value || out.Address != in.Address {
				return errors.Wrapf(ErrOutputMismatch, "input %s claims %s for %s, stored %s for %s",
					in.Outpoint(), in.Value, in.Address, out.Value, out.Address)
			}
		}
		return nil
	})
}

func loadSource(r *storage.Reader, hash string) (*models.Transaction, error) {
	node, err := r.Lookup(LabelTransaction, models.FieldHash, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(ErrOutputNotFound, "transaction %s", hash)
	}
	if err != nil {
		return nil, err
	}

	src, err := loadTransaction(r, node)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %s", hash)
	}
	if !src.Validate() {
		return nil, errors.Wrapf(ErrHashMismatch, "input spends from transaction %s", hash)
	}
	return src, nil
}

// buildWrite translates tx into graph statements. Every value travels as a
// statement parameter.
func buildWrite(tx *models.Transaction) *storage.Write {
	rec := tx.ToRecord()
	w := storage.NewWrite()

	t := w.Create(LabelTransaction, rec.Node)

	for i, out := range tx.Vout {
		o := w.Create(LabelOutput, rec.Outputs[i])
		u := w.Merge(LabelUser, models.FieldAddress, out.Address)
		w.Relate(t, RelOut, o)
		w.Relate(o, RelOwn, u)
	}

	for i, in := range tx.Vin {
		stamp := rec.Inputs[i]

		prev := w.Match(LabelTransaction, models.FieldHash, in.PrevTx)
		o := w.MatchRelated(prev, storage.Outgoing, RelOut, LabelOutput, storage.Props{
			models.FieldID: strconv.FormatUint(uint64(in.ID), 10),
		})
		w.Expect(o, storage.Props{
			models.FieldValue:   stamp[models.FieldValue],
			models.FieldAddress: stamp[models.FieldAddress],
		})
		w.RequireNone(o, storage.Outgoing, RelIn)
		w.Set(o, storage.Props{
			models.FieldPrevTx:    stamp[models.FieldPrevTx],
			models.FieldPublicKey: stamp[models.FieldPublicKey],
			models.FieldSignature: stamp[models.FieldSignature],
		})
		w.Relate(o, RelIn, t)
	}
	return w
}

// classifyWriteError marks storage failures with the ledger error they mean
func classifyWriteError(err error) error {
	switch {
	case errors.Is(err, storage.ErrRelationshipExists):
		return errors.Mark(err, ErrOutputSpent)
	case errors.Is(err, storage.ErrNotFound):
		return errors.Mark(err, ErrOutputNotFound)
	case errors.Is(err, storage.ErrExpectationFailed):
		return errors.Mark(err, ErrOutputMismatch)
	case errors.Is(err, storage.ErrUniqueViolation):
		return errors.Mark(err, ErrDuplicateTransaction)
	default:
		return err
	}
}
