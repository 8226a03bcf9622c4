package storage

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Direction selects which end of a relationship a node sits on
type Direction int

const (
	// Outgoing follows (node)-[rel]->(other)
	Outgoing Direction = iota
	// Incoming follows (other)-[rel]->(node)
	Incoming
)

// RelationshipStore handles relationship storage operations.
// Every relationship is written twice, once per direction, so both ends can be scanned.
type RelationshipStore struct {
	kv KV
}

// NewRelationshipStore creates a new RelationshipStore
func NewRelationshipStore(kv KV) *RelationshipStore {
	return &RelationshipStore{kv: kv}
}

// relKey creates a key for a relationship column family
func relKey(node NodeID, relType string, other NodeID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", node, relType, other))
}

// relPrefix creates a prefix for all relationships of a type on one node
func relPrefix(node NodeID, relType string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", node, relType))
}

func relCF(dir Direction) string {
	if dir == Incoming {
		return CFRelsIn
	}
	return CFRelsOut
}

// Add stores the relationship (from)-[relType]->(to)
func (s *RelationshipStore) Add(from NodeID, relType string, to NodeID) error {
	if err := s.kv.Put(CFRelsOut, relKey(from, relType, to), nil); err != nil {
		return err
	}
	return s.kv.Put(CFRelsIn, relKey(to, relType, from), nil)
}

// Related returns the ids at the other end of node's relationships of relType, in key order
func (s *RelationshipStore) Related(node NodeID, dir Direction, relType string) ([]NodeID, error) {
	prefix := relPrefix(node, relType)
	iter, err := s.kv.NewPrefixIterator(relCF(dir), prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []NodeID
	for ; iter.Valid(); iter.Next() {
		other := iter.Key()[len(prefix):]
		id, err := strconv.ParseUint(string(other), 16, 64)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse relationship key")
		}
		ids = append(ids, NodeID(id))
	}
	return ids, nil
}

// Has reports whether node has at least one relationship of relType in direction dir
func (s *RelationshipStore) Has(node NodeID, dir Direction, relType string) (bool, error) {
	iter, err := s.kv.NewPrefixIterator(relCF(dir), relPrefix(node, relType))
	if err != nil {
		return false, err
	}
	defer iter.Close()

	return iter.Valid(), nil
}
