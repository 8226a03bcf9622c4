package storage

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Key prefixes (simulating column families)
const (
	PrefixNodes    = "nod:"
	PrefixIndex    = "idx:"
	PrefixRelsOut  = "rlo:"
	PrefixRelsIn   = "rli:"
	PrefixMetadata = "met:"
)

// Column family names
const (
	CFNodes    = "nodes"
	CFIndex    = "index"
	CFRelsOut  = "relationships_out"
	CFRelsIn   = "relationships_in"
	CFMetadata = "metadata"
)

// Column family name to prefix mapping
var cfPrefixes = map[string]string{
	CFNodes:    PrefixNodes,
	CFIndex:    PrefixIndex,
	CFRelsOut:  PrefixRelsOut,
	CFRelsIn:   PrefixRelsIn,
	CFMetadata: PrefixMetadata,
}

// ErrReadOnly is returned when writing through a snapshot
var ErrReadOnly = errors.New("read-only view")

// KVReader is the read side shared by the database, snapshots and write batches
type KVReader interface {
	Get(cf string, key []byte) ([]byte, error)
	NewPrefixIterator(cf string, prefix []byte) (*Iterator, error)
}

// KV is a KVReader that also accepts writes
type KV interface {
	KVReader
	Put(cf string, key, value []byte) error
	Delete(cf string, key []byte) error
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db *pebble.DB
}

// WriteBatch wraps Pebble's indexed batch for atomic writes.
// Reads through the batch observe its own pending writes.
type WriteBatch struct {
	batch *pebble.Batch
	db    *PebbleDB
}

// Snapshot is a consistent read-only view of the database
type Snapshot struct {
	snap *pebble.Snapshot
}

// Iterator wraps Pebble's iterator
type Iterator struct {
	iter     *pebble.Iterator
	prefix   []byte // full prefix (cf + user prefix) for bounds checking
	cfPrefix []byte // just the column family prefix (to strip from keys)
}

// NewPebbleDB opens (or creates) a PebbleDB at path
func NewPebbleDB(path string) (*PebbleDB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MaxOpenFiles: 500,
	}
	defer opts.Cache.Unref()

	return openPebble(path, opts)
}

// NewMemPebbleDB opens a PebbleDB backed by an in-memory filesystem
func NewMemPebbleDB() (*PebbleDB, error) {
	return openPebble("ledger", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(path string, opts *pebble.Options) (*PebbleDB, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to open database"), ErrUnavailable)
	}
	return &PebbleDB{db: db}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// prefixKey creates a prefixed key for the given column family
func prefixKey(cf string, key []byte) ([]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, errors.Newf("column family not found: %s", cf)
	}
	return append([]byte(prefix), key...), nil
}

// Get retrieves a committed value from the specified column family
func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	return get(p.db, cf, key)
}

// Put stores a key-value pair in the specified column family
func (p *PebbleDB) Put(cf string, key, value []byte) error {
	prefixedKey, err := prefixKey(cf, key)
	if err != nil {
		return err
	}
	return unavailable(p.db.Set(prefixedKey, value, pebble.Sync))
}

// Delete removes a key from the specified column family
func (p *PebbleDB) Delete(cf string, key []byte) error {
	prefixedKey, err := prefixKey(cf, key)
	if err != nil {
		return err
	}
	return unavailable(p.db.Delete(prefixedKey, pebble.Sync))
}

// NewPrefixIterator creates an iterator over committed keys with the given prefix
func (p *PebbleDB) NewPrefixIterator(cf string, prefix []byte) (*Iterator, error) {
	return newPrefixIterator(p.db, cf, prefix)
}

// NewBatch creates a new indexed write batch
func (p *PebbleDB) NewBatch() *WriteBatch {
	return &WriteBatch{
		batch: p.db.NewIndexedBatch(),
		db:    p,
	}
}

// WriteBatch commits a batch to the database atomically
func (p *PebbleDB) WriteBatch(batch *WriteBatch) error {
	return unavailable(batch.batch.Commit(pebble.Sync))
}

// NewSnapshot returns a consistent read-only view of the committed state
func (p *PebbleDB) NewSnapshot() *Snapshot {
	return &Snapshot{snap: p.db.NewSnapshot()}
}

// Get reads through the batch, observing its pending writes
func (b *WriteBatch) Get(cf string, key []byte) ([]byte, error) {
	return get(b.batch, cf, key)
}

// Put adds a put operation to the batch
func (b *WriteBatch) Put(cf string, key, value []byte) error {
	prefixedKey, err := prefixKey(cf, key)
	if err != nil {
		return err
	}
	return b.batch.Set(prefixedKey, value, nil)
}

// Delete adds a delete operation to the batch
func (b *WriteBatch) Delete(cf string, key []byte) error {
	prefixedKey, err := prefixKey(cf, key)
	if err != nil {
		return err
	}
	return b.batch.Delete(prefixedKey, nil)
}

// NewPrefixIterator iterates committed and pending keys with the given prefix
func (b *WriteBatch) NewPrefixIterator(cf string, prefix []byte) (*Iterator, error) {
	return newPrefixIterator(b.batch, cf, prefix)
}

// Destroy closes the batch and releases resources
func (b *WriteBatch) Destroy() {
	b.batch.Close()
}

// Get retrieves a value as of the snapshot
func (s *Snapshot) Get(cf string, key []byte) ([]byte, error) {
	return get(s.snap, cf, key)
}

// Put always fails on a snapshot
func (s *Snapshot) Put(string, []byte, []byte) error {
	return ErrReadOnly
}

// Delete always fails on a snapshot
func (s *Snapshot) Delete(string, []byte) error {
	return ErrReadOnly
}

// NewPrefixIterator iterates keys with the given prefix as of the snapshot
func (s *Snapshot) NewPrefixIterator(cf string, prefix []byte) (*Iterator, error) {
	return newPrefixIterator(s.snap, cf, prefix)
}

// Close releases the snapshot
func (s *Snapshot) Close() error {
	return s.snap.Close()
}

func get(r pebble.Reader, cf string, key []byte) ([]byte, error) {
	prefixedKey, err := prefixKey(cf, key)
	if err != nil {
		return nil, err
	}

	value, closer, err := r.Get(prefixedKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	defer closer.Close()

	// Copy the value since it's only valid until closer.Close()
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func newPrefixIterator(r pebble.Reader, cf string, prefix []byte) (*Iterator, error) {
	cfPrefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, errors.Newf("column family not found: %s", cf)
	}

	cfPrefixBytes := []byte(cfPrefix)
	fullPrefix := append(append([]byte{}, cfPrefixBytes...), prefix...)
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: fullPrefix,
		UpperBound: prefixUpperBound(fullPrefix),
	})
	if err != nil {
		return nil, unavailable(err)
	}

	iter.First()
	return &Iterator{iter: iter, prefix: fullPrefix, cfPrefix: cfPrefixBytes}, nil
}

// prefixUpperBound returns the upper bound for prefix iteration
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// unavailable marks storage engine failures so callers can classify them
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrUnavailable)
}

// Iterator methods

// Valid returns true if the iterator is positioned at a valid key
func (i *Iterator) Valid() bool {
	return i.iter.Valid()
}

// Next advances the iterator to the next key
func (i *Iterator) Next() bool {
	return i.iter.Next()
}

// Key returns the current key (without the column family prefix)
func (i *Iterator) Key() []byte {
	key := i.iter.Key()
	// Strip only the column family prefix, keep the user prefix
	if len(key) > len(i.cfPrefix) && bytes.HasPrefix(key, i.cfPrefix) {
		return key[len(i.cfPrefix):]
	}
	return key
}

// Value returns the current value
func (i *Iterator) Value() []byte {
	return i.iter.Value()
}

// Close closes the iterator
func (i *Iterator) Close() error {
	return i.iter.Close()
}
