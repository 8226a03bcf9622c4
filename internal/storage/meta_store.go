package storage

import (
	"github.com/cockroachdb/errors"

	"github.com/thanhnp/utxo-graph/pkg/semver"
)

// SchemaVersion is the layout version written into new stores
const SchemaVersion = "1.0.0"

var schemaKey = []byte("schema")

// MetaStore handles store metadata operations
type MetaStore struct {
	kv KV
}

// NewMetaStore creates a new MetaStore
func NewMetaStore(kv KV) *MetaStore {
	return &MetaStore{kv: kv}
}

// GetSchemaVersion retrieves the schema version the store was created with, nil if unset
func (s *MetaStore) GetSchemaVersion() (*semver.Version, error) {
	data, err := s.kv.Get(CFMetadata, schemaKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	v, err := semver.Parse(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse schema version")
	}
	return v, nil
}

// SetSchemaVersion records the schema version
func (s *MetaStore) SetSchemaVersion(v *semver.Version) error {
	return s.kv.Put(CFMetadata, schemaKey, []byte(v.String()))
}

// EnsureSchema stamps a fresh store with SchemaVersion and rejects stores written
// with a different major version. A store stamped with an older compatible version
// is restamped; a newer compatible stamp is kept.
func (s *MetaStore) EnsureSchema() error {
	current, err := semver.Parse(SchemaVersion)
	if err != nil {
		return err
	}

	stored, err := s.GetSchemaVersion()
	if err != nil {
		return err
	}
	if stored == nil {
		return s.SetSchemaVersion(current)
	}
	if !stored.Compatible(current) {
		return errors.Wrapf(ErrIncompatibleSchema, "store has schema %s, expected %s", stored, current)
	}
	if stored.Compare(current) < 0 {
		return s.SetSchemaVersion(current)
	}
	return nil
}
