// Package notifier fans persisted transactions out to in-process subscribers.
package notifier

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/thanhnp/utxo-graph/internal/models"
)

// TransactionHandler is called for every persisted transaction
type TransactionHandler func(tx *models.Transaction)

// Notifier queues persisted transactions and delivers them to the registered
// handlers on its own goroutine, in publish order
type Notifier struct {
	log      zerolog.Logger
	anyQ     chan *models.Transaction
	handlers []TransactionHandler
	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a notifier whose queue holds up to size pending transactions
func New(log zerolog.Logger, size int) *Notifier {
	if size <= 0 {
		size = 1024
	}
	return &Notifier{
		log:  log.With().Str("component", "notifier").Logger(),
		anyQ: make(chan *models.Transaction, size),
	}
}

// OnTransactionPersisted registers a handler
func (n *Notifier) OnTransactionPersisted(handler TransactionHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// Start starts delivering queued transactions
func (n *Notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	n.running = true

	go n.superQueue(ctx, n.done)
	return nil
}

// Stop stops delivery after the queue has been drained
func (n *Notifier) Stop() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.cancel()
	n.running = false
	done := n.done
	n.mu.Unlock()

	<-done
	n.log.Debug().Msg("notifier stopped")
	return nil
}

// Publish queues tx for delivery. It never blocks: when the queue is full the
// transaction is dropped and logged.
func (n *Notifier) Publish(tx *models.Transaction) {
	select {
	case n.anyQ <- tx:
	default:
		n.log.Warn().Str("hash", tx.Hash).Msg("notification queue full, dropping transaction")
	}
}

// superQueue processes notifications from the queue
func (n *Notifier) superQueue(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case tx := <-n.anyQ:
			n.dispatch(tx)
		case <-ctx.Done():
			for {
				select {
				case tx := <-n.anyQ:
					n.dispatch(tx)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) dispatch(tx *models.Transaction) {
	n.mu.RLock()
	handlers := n.handlers
	n.mu.RUnlock()

	for _, handler := range handlers {
		handler(tx)
	}
}
