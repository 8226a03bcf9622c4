package storage

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testIndexes = []Index{
	{Label: "Account", Key: "name"},
	{Label: "Item", Key: "sku"},
}

func newTestGraph(t *testing.T) *Graph {
	t.Helper()

	db, err := NewMemPebbleDB()
	require.NoError(t, err)

	g, err := NewGraph(db, testIndexes...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGraphCreateAndRead(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	acc := w.Create("Account", Props{"name": "alice"})
	item := w.Create("Item", Props{"sku": "a-1", "colour": "red"})
	w.Relate(acc, "HOLDS", item)

	res, err := g.Apply(ctx, w)
	require.NoError(t, err)
	assert.NotEqual(t, res.ID(acc), res.ID(item))

	err = g.View(ctx, func(r *Reader) error {
		node, err := r.Lookup("Account", "name", "alice")
		require.NoError(t, err)
		assert.Equal(t, res.ID(acc), node.ID)

		held, err := r.Related(node.ID, Outgoing, "HOLDS", "Item")
		require.NoError(t, err)
		require.Len(t, held, 1)
		assert.Equal(t, "red", held[0].Props["colour"])

		holders, err := r.Related(held[0].ID, Incoming, "HOLDS", "")
		require.NoError(t, err)
		require.Len(t, holders, 1)
		assert.Equal(t, "alice", holders[0].Props["name"])

		has, err := r.HasRelated(held[0].ID, Outgoing, "HOLDS")
		require.NoError(t, err)
		assert.False(t, has)
		return nil
	})
	require.NoError(t, err)
}

func TestGraphLookupErrors(t *testing.T) {
	g := newTestGraph(t)

	err := g.View(context.Background(), func(r *Reader) error {
		_, err := r.Lookup("Account", "name", "nobody")
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = r.Lookup("Account", "colour", "red")
		assert.True(t, errors.Is(err, ErrNoIndex))

		_, err = r.Node(NodeID(42))
		assert.True(t, errors.Is(err, ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestGraphUniqueIndex(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	w.Create("Account", Props{"name": "alice"})
	_, err := g.Apply(ctx, w)
	require.NoError(t, err)

	w = NewWrite()
	w.Create("Item", Props{"sku": "x"})
	w.Create("Account", Props{"name": "alice"})
	_, err = g.Apply(ctx, w)
	assert.True(t, errors.Is(err, ErrUniqueViolation))

	// the failed write left nothing behind
	err = g.View(ctx, func(r *Reader) error {
		_, err := r.Lookup("Item", "sku", "x")
		assert.True(t, errors.Is(err, ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestGraphMerge(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	first := w.Merge("Account", "name", "bob")
	second := w.Merge("Account", "name", "bob")
	res, err := g.Apply(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, res.ID(first), res.ID(second))

	w = NewWrite()
	again := w.Merge("Account", "name", "bob")
	res2, err := g.Apply(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, res.ID(first), res2.ID(again))
}

func TestGraphConditionalWrite(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	acc := w.Create("Account", Props{"name": "alice"})
	for _, sku := range []string{"a", "b"} {
		item := w.Create("Item", Props{"sku": sku, "qty": "1"})
		w.Relate(acc, "HOLDS", item)
	}
	_, err := g.Apply(ctx, w)
	require.NoError(t, err)

	claim := func(sku, qty string) *Write {
		w := NewWrite()
		a := w.Match("Account", "name", "alice")
		item := w.MatchRelated(a, Outgoing, "HOLDS", "Item", Props{"sku": sku})
		w.Expect(item, Props{"qty": qty})
		w.RequireNone(item, Outgoing, "CLAIMED")
		w.Set(item, Props{"claimed_by": "carol"})
		c := w.Merge("Account", "name", "carol")
		w.Relate(item, "CLAIMED", c)
		return w
	}

	_, err = g.Apply(ctx, claim("a", "2"))
	assert.True(t, errors.Is(err, ErrExpectationFailed))

	_, err = g.Apply(ctx, claim("zzz", "1"))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = g.Apply(ctx, claim("a", "1"))
	require.NoError(t, err)

	_, err = g.Apply(ctx, claim("a", "1"))
	assert.True(t, errors.Is(err, ErrRelationshipExists))

	err = g.View(ctx, func(r *Reader) error {
		carol, err := r.Lookup("Account", "name", "carol")
		require.NoError(t, err)

		claimed, err := r.Related(carol.ID, Incoming, "CLAIMED", "Item")
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, Props{"sku": "a", "qty": "1", "claimed_by": "carol"}, claimed[0].Props)
		return nil
	})
	require.NoError(t, err)
}

func TestGraphRequireNoneSeesPendingWrites(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	w.Create("Item", Props{"sku": "a"})
	_, err := g.Apply(ctx, w)
	require.NoError(t, err)

	w = NewWrite()
	item := w.Match("Item", "sku", "a")
	owner := w.Create("Account", Props{"name": "dave"})
	w.Relate(item, "CLAIMED", owner)
	w.RequireNone(item, Outgoing, "CLAIMED")
	_, err = g.Apply(ctx, w)
	assert.True(t, errors.Is(err, ErrRelationshipExists))
}

func TestGraphSetMovesIndexEntry(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	w.Create("Item", Props{"sku": "old"})
	_, err := g.Apply(ctx, w)
	require.NoError(t, err)

	w = NewWrite()
	item := w.Match("Item", "sku", "old")
	w.Set(item, Props{"sku": "new"})
	_, err = g.Apply(ctx, w)
	require.NoError(t, err)

	err = g.View(ctx, func(r *Reader) error {
		_, err := r.Lookup("Item", "sku", "old")
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = r.Lookup("Item", "sku", "new")
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestGraphConcurrentClaimsCommitOnce(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	w := NewWrite()
	w.Create("Item", Props{"sku": "contested"})
	_, err := g.Apply(ctx, w)
	require.NoError(t, err)

	var committed, rejected int32
	var eg errgroup.Group
	for i := 0; i < 16; i++ {
		eg.Go(func() error {
			w := NewWrite()
			item := w.Match("Item", "sku", "contested")
			w.RequireNone(item, Outgoing, "CLAIMED")
			claimer := w.Create("Account", Props{})
			w.Relate(item, "CLAIMED", claimer)

			_, err := g.Apply(ctx, w)
			switch {
			case err == nil:
				atomic.AddInt32(&committed, 1)
			case errors.Is(err, ErrRelationshipExists):
				atomic.AddInt32(&rejected, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(1), committed)
	assert.Equal(t, int32(15), rejected)
}

func TestGraphSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	err := g.View(ctx, func(r *Reader) error {
		w := NewWrite()
		w.Create("Account", Props{"name": "late"})
		_, err := g.Apply(ctx, w)
		require.NoError(t, err)

		_, err = r.Lookup("Account", "name", "late")
		assert.True(t, errors.Is(err, ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestGraphClosed(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	require.NoError(t, g.Ping(ctx))
	require.NoError(t, g.Close())
	assert.True(t, errors.Is(g.Ping(ctx), ErrUnavailable))

	err := g.View(ctx, func(*Reader) error { return nil })
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = g.Apply(ctx, NewWrite())
	assert.True(t, errors.Is(err, ErrUnavailable))

	assert.NoError(t, g.Close())
}

func TestGraphCanceledContext(t *testing.T) {
	g := newTestGraph(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Apply(ctx, NewWrite())
	assert.ErrorIs(t, err, context.Canceled)
}
