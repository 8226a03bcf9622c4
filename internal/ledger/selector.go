package ledger

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/thanhnp/utxo-graph/internal/crypto"
	"github.com/thanhnp/utxo-graph/internal/metrics"
	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

// candidate is an unspent output together with its validated parent transaction
type candidate struct {
	tx  *models.Transaction
	out models.Output
}

// SelectUnspent returns unsigned inputs for unspent outputs of address, accumulated
// until their total reaches target. A target <= 0 selects every unspent output.
//
// Candidates whose parent transaction cannot be decoded or fails validation are
// skipped. The result may total less than target; callers decide whether that is
// an error. Candidates are taken in (transaction hash, output id) order. A total
// beyond the Amount range fails with ErrInvalidAmount.
func (l *Ledger) SelectUnspent(ctx context.Context, address string, target models.Amount) ([]models.Input, models.Amount, error) {
	var candidates []candidate
	err := l.graph.View(ctx, func(r *storage.Reader) error {
		var err error
		candidates, err = l.unspentCandidates(r, address)
		return err
	})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to select unspent outputs of %s", address)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].tx.Hash != candidates[j].tx.Hash {
			return candidates[i].tx.Hash < candidates[j].tx.Hash
		}
		return candidates[i].out.ID < candidates[j].out.ID
	})

	var inputs []models.Input
	var total models.Amount
	for _, c := range candidates {
		if target > 0 && total >= target {
			break
		}
		if total, err = total.Add(c.out.Value); err != nil {
			return nil, 0, errors.Wrapf(err, "unspent outputs of %s", address)
		}
		inputs = append(inputs, models.NewInput(c.tx.Hash, c.out))
	}
	return inputs, total, nil
}

// GetBalance returns the sum of the validated unspent outputs of address
func (l *Ledger) GetBalance(ctx context.Context, address string) (models.Amount, error) {
	if err := checkAddress(address); err != nil {
		return 0, err
	}
	_, total, err := l.SelectUnspent(ctx, address, 0)
	return total, err
}

// ListUnspent returns every validated unspent output of address as an unsigned input
func (l *Ledger) ListUnspent(ctx context.Context, address string) ([]models.Input, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	inputs, _, err := l.SelectUnspent(ctx, address, 0)
	if inputs == nil {
		inputs = []models.Input{}
	}
	return inputs, err
}

// GetTransaction loads and validates the transaction with the given hash
func (l *Ledger) GetTransaction(ctx context.Context, hash string) (*models.Transaction, error) {
	var tx *models.Transaction
	err := l.graph.View(ctx, func(r *storage.Reader) error {
		node, err := r.Lookup(LabelTransaction, models.FieldHash, hash)
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrTransactionNotFound, "%s", hash)
		}
		if err != nil {
			return err
		}
		tx, err = loadTransaction(r, node)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !tx.Validate() {
		return nil, errors.Wrapf(ErrHashMismatch, "transaction %s", hash)
	}
	return tx, nil
}

func (l *Ledger) unspentCandidates(r *storage.Reader, address string) ([]candidate, error) {
	user, err := r.Lookup(LabelUser, models.FieldAddress, address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	owned, err := r.Related(user.ID, storage.Incoming, RelOwn, LabelOutput)
	if err != nil {
		return nil, err
	}

	// nil entries mark transactions already rejected
	loaded := make(map[storage.NodeID]*models.Transaction)
	var candidates []candidate
	for _, out := range owned {
		spent, err := r.HasRelated(out.ID, storage.Outgoing, RelIn)
		if err != nil {
			return nil, err
		}
		if spent {
			continue
		}

		parents, err := r.Related(out.ID, storage.Incoming, RelOut, LabelTransaction)
		if err != nil {
			return nil, err
		}
		if len(parents) != 1 {
			l.skip(metrics.ReasonMalformed, errors.Wrapf(ErrMalformedRecord, "output node %s has %d parents", out.ID, len(parents)))
			continue
		}
		parent := parents[0]

		tx, seen := loaded[parent.ID]
		if !seen {
			tx, err = l.validatedTransaction(r, parent)
			if errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			loaded[parent.ID] = tx
		}
		if tx == nil {
			continue
		}

		stored, err := models.OutputFromRecord(out.Props)
		if err != nil {
			l.skip(metrics.ReasonMalformed, err)
			continue
		}
		output, ok := tx.Output(stored.ID)
		if !ok || output != stored || output.Address != address {
			l.skip(metrics.ReasonMalformed, errors.Wrapf(ErrMalformedRecord, "output %s does not belong to %s", models.Outpoint{TxHash: tx.Hash, ID: stored.ID}, address))
			continue
		}
		candidates = append(candidates, candidate{tx: tx, out: output})
	}
	return candidates, nil
}

// validatedTransaction loads the transaction of node, returning nil (and logging)
// if it is malformed or fails validation
func (l *Ledger) validatedTransaction(r *storage.Reader, node *storage.Node) (*models.Transaction, error) {
	tx, err := loadTransaction(r, node)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		l.skip(metrics.ReasonMalformed, err)
		return nil, nil
	}
	if !tx.Validate() {
		l.skip(metrics.ReasonHashMismatch, errors.Wrapf(ErrHashMismatch, "transaction %s", tx.Hash))
		return nil, nil
	}
	return tx, nil
}

func (l *Ledger) skip(reason string, err error) {
	metrics.SelectionSkipped.WithLabelValues(reason).Inc()
	l.log.Warn().Err(err).Str("reason", reason).Msg("skipping unspendable candidate")
}

// loadTransaction rebuilds a transaction from its node, its outputs and the spent
// outputs that point at it
func loadTransaction(r *storage.Reader, node *storage.Node) (*models.Transaction, error) {
	outputs, err := r.Related(node.ID, storage.Outgoing, RelOut, LabelOutput)
	if err != nil {
		return nil, err
	}
	inputs, err := r.Related(node.ID, storage.Incoming, RelIn, LabelOutput)
	if err != nil {
		return nil, err
	}

	return models.FromRecord(node.Props, props(outputs), props(inputs))
}

func props(nodes []*storage.Node) []models.Record {
	records := make([]models.Record, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, n.Props)
	}
	return records
}

func checkAddress(address string) error {
	if !crypto.IsAddress(address) {
		return errors.Wrapf(ErrInvalidAddress, "%q", address)
	}
	return nil
}
