package storage

import (
	"github.com/cockroachdb/errors"
)

// Ref names a node bound by an earlier statement of the same Write
type Ref int

type statement func(tx *writeTxn) error

// Write is an ordered list of statements applied atomically by Graph.Apply.
// Statements that bind a node return a Ref later statements can use.
type Write struct {
	stmts []statement
	refs  int
}

// NewWrite creates an empty Write
func NewWrite() *Write {
	return &Write{}
}

// Len returns the number of statements
func (w *Write) Len() int {
	return len(w.stmts)
}

func (w *Write) bind() Ref {
	ref := Ref(w.refs)
	w.refs++
	return ref
}

// Create adds a new node with label and props
func (w *Write) Create(label string, props Props) Ref {
	ref := w.bind()
	props = copyProps(props)
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		node, err := tx.create(label, props)
		if err != nil {
			return err
		}
		tx.bound[ref] = node
		return nil
	})
	return ref
}

// Merge binds the node whose indexed property key equals value, creating it
// with that single property if it does not exist
func (w *Write) Merge(label, key, value string) Ref {
	ref := w.bind()
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		id, found, err := tx.index.Lookup(label, key, value)
		if err != nil {
			return err
		}

		var node *Node
		if found {
			node, err = tx.get(id)
		} else {
			node, err = tx.create(label, Props{key: value})
		}
		if err != nil {
			return err
		}
		tx.bound[ref] = node
		return nil
	})
	return ref
}

// Match binds the node whose indexed property key equals value; fails with
// ErrNotFound if there is none
func (w *Write) Match(label, key, value string) Ref {
	ref := w.bind()
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		id, found, err := tx.index.Lookup(label, key, value)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "%s{%s: %q}", label, key, value)
		}
		node, err := tx.get(id)
		if err != nil {
			return err
		}
		tx.bound[ref] = node
		return nil
	})
	return ref
}

// MatchRelated binds the first node related to from by relType in direction dir
// that has label and carries every property in where; fails with ErrNotFound if
// there is none
func (w *Write) MatchRelated(from Ref, dir Direction, relType, label string, where Props) Ref {
	ref := w.bind()
	where = copyProps(where)
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		origin := tx.bound[from]
		ids, err := tx.rels.Related(origin.ID, dir, relType)
		if err != nil {
			return err
		}
		for _, id := range ids {
			node, err := tx.get(id)
			if err != nil {
				return err
			}
			if node.Matches(label, where) {
				tx.bound[ref] = node
				return nil
			}
		}
		return errors.Wrapf(ErrNotFound, "%s-[%s]-%s%v", origin.ID, relType, label, where)
	})
	return ref
}

// Expect fails with ErrExpectationFailed unless the node carries every property in props
func (w *Write) Expect(ref Ref, props Props) {
	props = copyProps(props)
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		node := tx.bound[ref]
		for k, want := range props {
			if got := node.Props[k]; got != want {
				return errors.Wrapf(ErrExpectationFailed, "node %s: %s is %q, expected %q", node.ID, k, got, want)
			}
		}
		return nil
	})
}

// RequireNone fails with ErrRelationshipExists if the node has any relType
// relationship in direction dir, including ones added earlier in this Write
func (w *Write) RequireNone(ref Ref, dir Direction, relType string) {
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		node := tx.bound[ref]
		has, err := tx.rels.Has(node.ID, dir, relType)
		if err != nil {
			return err
		}
		if has {
			return errors.Wrapf(ErrRelationshipExists, "node %s has %s", node.ID, relType)
		}
		return nil
	})
}

// Set writes props onto the node, keeping its other properties
func (w *Write) Set(ref Ref, props Props) {
	props = copyProps(props)
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		node := tx.bound[ref]
		if err := tx.index.Update(node, props); err != nil {
			return err
		}
		for k, v := range props {
			node.Props[k] = v
		}
		return tx.nodes.Save(node)
	})
}

// Relate adds the relationship (from)-[relType]->(to)
func (w *Write) Relate(from Ref, relType string, to Ref) {
	w.stmts = append(w.stmts, func(tx *writeTxn) error {
		return tx.rels.Add(tx.bound[from].ID, relType, tx.bound[to].ID)
	})
}

// Result reports the nodes bound by an applied Write
type Result struct {
	ids map[Ref]NodeID
}

// ID returns the id of the node bound to ref
func (r *Result) ID(ref Ref) NodeID {
	return r.ids[ref]
}

// writeTxn is the state of one Write being applied on a batch
type writeTxn struct {
	nodes *NodeStore
	index *IndexStore
	rels  *RelationshipStore
	bound map[Ref]*Node

	// loaded keeps one copy per node so every Ref to it sees earlier Sets
	loaded map[NodeID]*Node
}

func newWriteTxn(batch *WriteBatch, indexes map[Index]bool) *writeTxn {
	return &writeTxn{
		nodes:  NewNodeStore(batch),
		index:  NewIndexStore(batch, indexes),
		rels:   NewRelationshipStore(batch),
		bound:  make(map[Ref]*Node),
		loaded: make(map[NodeID]*Node),
	}
}

func (tx *writeTxn) create(label string, props Props) (*Node, error) {
	id, err := tx.nodes.NextID()
	if err != nil {
		return nil, err
	}

	node := &Node{ID: id, Label: label, Props: copyProps(props)}
	if err := tx.index.Add(node); err != nil {
		return nil, err
	}
	if err := tx.nodes.Save(node); err != nil {
		return nil, err
	}
	tx.loaded[id] = node
	return node, nil
}

func (tx *writeTxn) get(id NodeID) (*Node, error) {
	if node, ok := tx.loaded[id]; ok {
		return node, nil
	}

	node, err := tx.nodes.Get(id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errors.Wrapf(ErrNotFound, "node %s", id)
	}
	tx.loaded[id] = node
	return node, nil
}

func (tx *writeTxn) result() *Result {
	ids := make(map[Ref]NodeID, len(tx.bound))
	for ref, node := range tx.bound {
		ids[ref] = node.ID
	}
	return &Result{ids: ids}
}

func copyProps(props Props) Props {
	out := make(Props, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
