// Package metrics holds the prometheus collectors of the ledger.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Spend outcomes
const (
	OutcomePersisted           = "persisted"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeInvalidSignature    = "invalid_signature"
	OutcomeConflict            = "conflict"
	OutcomeError               = "error"
)

// Selection skip reasons
const (
	ReasonMalformed    = "malformed"
	ReasonHashMismatch = "hash_mismatch"
)

var (
	SpendsTotal       *prometheus.CounterVec
	CoinbaseTotal     prometheus.Counter
	SelectionSkipped  *prometheus.CounterVec
	SpendRetries      prometheus.Counter
	PersistedOutputs  prometheus.Counter
	PersistedTxsTotal prometheus.Counter

	// only init the metrics once
	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call repeatedly.
func Init() {
	initOnce.Do(initMetrics)
}

func initMetrics() {
	SpendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_spends_total",
			Help: "Number of spends by outcome",
		},
		[]string{
			"outcome", // persisted, insufficient_balance, invalid_signature, conflict, error
		},
	)
	CoinbaseTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_coinbase_total",
			Help: "Number of coinbase transactions persisted",
		},
	)
	SelectionSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_selection_skipped_total",
			Help: "Number of candidate transactions skipped during coin selection",
		},
		[]string{
			"reason", // malformed, hash_mismatch
		},
	)
	SpendRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_spend_retries_total",
			Help: "Number of spends restarted after losing a race for an output",
		},
	)
	PersistedOutputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_persisted_outputs_total",
			Help: "Number of outputs written",
		},
	)
	PersistedTxsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_persisted_transactions_total",
			Help: "Number of transactions written",
		},
	)
}
