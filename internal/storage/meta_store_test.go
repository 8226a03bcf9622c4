package storage

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/utxo-graph/pkg/semver"
)

func TestEnsureSchema(t *testing.T) {
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	defer db.Close()

	meta := NewMetaStore(db)

	v, err := meta.GetSchemaVersion()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, meta.EnsureSchema())
	v, err = meta.GetSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v.String())

	// same major is accepted, a newer stamp is kept
	require.NoError(t, meta.SetSchemaVersion(&semver.Version{Major: 1, Minor: 3}))
	require.NoError(t, meta.EnsureSchema())
	v, err = meta.GetSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", v.String())

	// an older compatible stamp is upgraded
	require.NoError(t, meta.SetSchemaVersion(&semver.Version{Major: 1, Prerelease: "rc.1"}))
	require.NoError(t, meta.EnsureSchema())
	v, err = meta.GetSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v.String())

	require.NoError(t, meta.SetSchemaVersion(&semver.Version{Major: 2}))
	err = meta.EnsureSchema()
	assert.True(t, errors.Is(err, ErrIncompatibleSchema))
}

func TestNodeSequence(t *testing.T) {
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	defer db.Close()

	nodes := NewNodeStore(db)
	first, err := nodes.NextID()
	require.NoError(t, err)
	second, err := nodes.NextID()
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.Equal(t, "0000000000000002", second.String())
}

func TestSnapshotIsReadOnly(t *testing.T) {
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	defer db.Close()

	snap := db.NewSnapshot()
	defer snap.Close()

	assert.ErrorIs(t, snap.Put(CFNodes, []byte("k"), []byte("v")), ErrReadOnly)
	assert.ErrorIs(t, snap.Delete(CFNodes, []byte("k")), ErrReadOnly)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("ab"), prefixUpperBound([]byte("aa")))
	assert.Equal(t, []byte("b"), prefixUpperBound([]byte{'a', 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
	assert.Nil(t, prefixUpperBound(nil))
}
