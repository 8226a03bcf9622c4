package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// NodeID identifies a node within the graph
type NodeID uint64

func (id NodeID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Props holds node properties; every value is text
type Props = map[string]string

// Node is a labelled property node
type Node struct {
	ID    NodeID `json:"id"`
	Label string `json:"label"`
	Props Props  `json:"props"`
}

// Matches reports whether the node carries every property in where
func (n *Node) Matches(label string, where Props) bool {
	if label != "" && n.Label != label {
		return false
	}
	for k, v := range where {
		if n.Props[k] != v {
			return false
		}
	}
	return true
}

// NodeStore handles node storage operations
type NodeStore struct {
	kv KV
}

// NewNodeStore creates a new NodeStore
func NewNodeStore(kv KV) *NodeStore {
	return &NodeStore{kv: kv}
}

// nodeKey creates a key for the nodes column family
func nodeKey(id NodeID) []byte {
	return []byte(id.String())
}

// sequenceKey holds the last allocated node id
var sequenceKey = []byte("sequence")

// Save stores a node in the database
func (s *NodeStore) Save(node *Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return errors.Wrap(err, "failed to marshal node")
	}
	return s.kv.Put(CFNodes, nodeKey(node.ID), data)
}

// Get retrieves a node by its id
func (s *NodeStore) Get(id NodeID) (*Node, error) {
	data, err := s.kv.Get(CFNodes, nodeKey(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal node")
	}
	if node.Props == nil {
		node.Props = Props{}
	}
	return &node, nil
}

// NextID allocates a fresh node id
func (s *NodeStore) NextID() (NodeID, error) {
	data, err := s.kv.Get(CFMetadata, sequenceKey)
	if err != nil {
		return 0, err
	}

	var last uint64
	if data != nil {
		if last, err = strconv.ParseUint(string(data), 10, 64); err != nil {
			return 0, errors.Wrap(err, "failed to parse node sequence")
		}
	}

	next := last + 1
	if err := s.kv.Put(CFMetadata, sequenceKey, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return NodeID(next), nil
}
