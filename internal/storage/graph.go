package storage

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Graph is a labelled property graph over a PebbleDB.
//
// Reads run against a snapshot and never block writers. Writes are serialized:
// each Write is applied on an indexed batch that observes its own pending changes
// and is committed atomically, so a condition checked inside a Write still holds
// when it commits.
type Graph struct {
	db      *PebbleDB
	indexes map[Index]bool

	mu     sync.RWMutex // guards closed
	closed bool

	writeMu sync.Mutex
}

// NewGraph opens a graph on db with the given unique property indexes
func NewGraph(db *PebbleDB, indexes ...Index) (*Graph, error) {
	if err := NewMetaStore(db).EnsureSchema(); err != nil {
		return nil, err
	}

	declared := make(map[Index]bool, len(indexes))
	for _, idx := range indexes {
		declared[idx] = true
	}
	return &Graph{db: db, indexes: declared}, nil
}

// View runs fn against a consistent snapshot of the committed graph
func (g *Graph) View(ctx context.Context, fn func(r *Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return errors.Mark(ErrClosed, ErrUnavailable)
	}

	snap := g.db.NewSnapshot()
	defer snap.Close()

	return fn(newReader(snap, g.indexes))
}

// Apply runs every statement of w in order and commits them atomically.
// If any statement fails nothing is written.
func (g *Graph) Apply(ctx context.Context, w *Write) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, errors.Mark(ErrClosed, ErrUnavailable)
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := g.db.NewBatch()
	defer batch.Destroy()

	tx := newWriteTxn(batch, g.indexes)
	for i, stmt := range w.stmts {
		if err := stmt(tx); err != nil {
			return nil, errors.Wrapf(err, "statement %d", i)
		}
	}

	if err := g.db.WriteBatch(batch); err != nil {
		return nil, errors.Wrap(err, "failed to commit write")
	}
	return tx.result(), nil
}

// Ping reports whether the graph can serve reads
func (g *Graph) Ping(ctx context.Context) error {
	return g.View(ctx, func(r *Reader) error {
		_, err := r.nodes.kv.Get(CFMetadata, schemaKey)
		return err
	})
}

// Close closes the graph and the underlying database
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}
