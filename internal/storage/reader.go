package storage

import "github.com/cockroachdb/errors"

// Reader answers pattern queries against a snapshot
type Reader struct {
	nodes *NodeStore
	index *IndexStore
	rels  *RelationshipStore
}

func newReader(kv KV, indexes map[Index]bool) *Reader {
	return &Reader{
		nodes: NewNodeStore(kv),
		index: NewIndexStore(kv, indexes),
		rels:  NewRelationshipStore(kv),
	}
}

// Node returns the node with the given id
func (r *Reader) Node(id NodeID) (*Node, error) {
	node, err := r.nodes.Get(id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errors.Wrapf(ErrNotFound, "node %s", id)
	}
	return node, nil
}

// Lookup returns the node whose indexed property label.key equals value
func (r *Reader) Lookup(label, key, value string) (*Node, error) {
	id, found, err := r.index.Lookup(label, key, value)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "%s{%s: %q}", label, key, value)
	}
	return r.Node(id)
}

// Related returns the nodes at the other end of id's relType relationships in
// direction dir. If label is not empty only nodes with that label are returned.
func (r *Reader) Related(id NodeID, dir Direction, relType, label string) ([]*Node, error) {
	ids, err := r.rels.Related(id, dir, relType)
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(ids))
	for _, other := range ids {
		node, err := r.Node(other)
		if err != nil {
			return nil, err
		}
		if node.Matches(label, nil) {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// HasRelated reports whether id has any relType relationship in direction dir
func (r *Reader) HasRelated(id NodeID, dir Direction, relType string) (bool, error) {
	return r.rels.Has(id, dir, relType)
}
