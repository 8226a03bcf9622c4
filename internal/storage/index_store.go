package storage

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Index declares a unique property index on a node label
type Index struct {
	Label string
	Key   string
}

// IndexStore handles unique property index operations
type IndexStore struct {
	kv      KV
	indexes map[Index]bool
}

// NewIndexStore creates a new IndexStore for the declared indexes
func NewIndexStore(kv KV, indexes map[Index]bool) *IndexStore {
	return &IndexStore{kv: kv, indexes: indexes}
}

// indexKey creates a key for the index column family; the value comes last so
// arbitrary text cannot collide with another label or key
func indexKey(label, key, value string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", label, key, value))
}

// Indexed reports whether label.key is declared as an index
func (s *IndexStore) Indexed(label, key string) bool {
	return s.indexes[Index{Label: label, Key: key}]
}

// Lookup returns the node holding value under label.key
func (s *IndexStore) Lookup(label, key, value string) (NodeID, bool, error) {
	if !s.Indexed(label, key) {
		return 0, false, errors.Wrapf(ErrNoIndex, "%s.%s", label, key)
	}

	data, err := s.kv.Get(CFIndex, indexKey(label, key, value))
	if err != nil || data == nil {
		return 0, false, err
	}

	id, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to parse index entry")
	}
	return NodeID(id), true, nil
}

// Add indexes every declared property of node, failing if a value is taken
func (s *IndexStore) Add(node *Node) error {
	for key, value := range node.Props {
		if err := s.add(node.Label, key, value, node.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *IndexStore) add(label, key, value string, id NodeID) error {
	if !s.Indexed(label, key) {
		return nil
	}

	existing, found, err := s.Lookup(label, key, value)
	if err != nil {
		return err
	}
	if found && existing != id {
		return errors.Wrapf(ErrUniqueViolation, "%s.%s = %q", label, key, value)
	}
	return s.kv.Put(CFIndex, indexKey(label, key, value), []byte(strconv.FormatUint(uint64(id), 10)))
}

// Update moves index entries of node from the old property values to the new ones
func (s *IndexStore) Update(node *Node, changes Props) error {
	for key, value := range changes {
		if !s.Indexed(node.Label, key) {
			continue
		}
		if old, ok := node.Props[key]; ok && old != value {
			if err := s.kv.Delete(CFIndex, indexKey(node.Label, key, old)); err != nil {
				return err
			}
		}
		if err := s.add(node.Label, key, value, node.ID); err != nil {
			return err
		}
	}
	return nil
}
