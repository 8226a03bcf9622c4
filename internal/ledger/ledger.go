// Package ledger implements the UTXO engine: coin selection, the atomic ledger
// writer and the spend state machine, on top of the graph store.
//
// Graph layout:
//
//	(:Transaction {hash, uuid, date, vin_hash, vout_hash})-[:OUT]->(:Output {id, value, address})
//	(:Output)-[:OWN]->(:User {address})
//	(:Output {..., prev_tx, public_key, signature})-[:IN]->(:Transaction)   spent outputs only
//
// An output is unspent iff it has no outgoing IN relationship.
package ledger

import (
	"github.com/rs/zerolog"

	"github.com/thanhnp/utxo-graph/internal/metrics"
	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/notifier"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

// Node labels and relationship types
const (
	LabelTransaction = "Transaction"
	LabelOutput      = "Output"
	LabelUser        = "User"

	RelOut = "OUT"
	RelOwn = "OWN"
	RelIn  = "IN"
)

// DefaultMaxSpendRetries is how many times Send restarts after losing an output to a concurrent spend
const DefaultMaxSpendRetries = 3

// Indexes are the unique property indexes the ledger needs from its graph
var Indexes = []storage.Index{
	{Label: LabelTransaction, Key: models.FieldHash},
	{Label: LabelUser, Key: models.FieldAddress},
}

// Ledger is the UTXO engine. It is safe for concurrent use.
type Ledger struct {
	graph      *storage.Graph
	log        zerolog.Logger
	maxRetries int
	notifier   *notifier.Notifier
}

// Option configures a Ledger
type Option func(*Ledger)

// WithMaxSpendRetries sets how many times Send retries after a conflicting spend
func WithMaxSpendRetries(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// WithNotifier publishes every persisted transaction to n
func WithNotifier(n *notifier.Notifier) Option {
	return func(l *Ledger) {
		l.notifier = n
	}
}

// New creates a ledger over graph, which must declare Indexes
func New(graph *storage.Graph, log zerolog.Logger, opts ...Option) *Ledger {
	metrics.Init()

	l := &Ledger{
		graph:      graph,
		log:        log.With().Str("component", "ledger").Logger(),
		maxRetries: DefaultMaxSpendRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenGraph opens a graph on db with the indexes the ledger needs
func OpenGraph(db *storage.PebbleDB) (*storage.Graph, error) {
	return storage.NewGraph(db, Indexes...)
}
