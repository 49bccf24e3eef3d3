package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Column families share one keyspace, separated by a key prefix
const (
	CFBlocks         = "blocks"
	CFBlocksByHeight = "blocks_by_height"
	CFPending        = "pending"
	CFPeers          = "peers"
	CFSyncState      = "sync_state"
)

var cfPrefixes = map[string][]byte{
	CFBlocks:         []byte("blk:"),
	CFBlocksByHeight: []byte("bht:"),
	CFPending:        []byte("pnd:"),
	CFPeers:          []byte("per:"),
	CFSyncState:      []byte("syn:"),
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db *pebble.DB
}

// NewPebbleDB opens (or creates) a database at path
func NewPebbleDB(path string) (*PebbleDB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := pebble.Open(path, &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MaxOpenFiles: 500,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &PebbleDB{db: db}, nil
}

// NewMemPebbleDB opens a database backed by an in-memory filesystem
func NewMemPebbleDB() (*PebbleDB, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return &PebbleDB{db: db}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

func cfKey(cf string, key []byte) ([]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}
	return append(append(make([]byte, 0, len(prefix)+len(key)), prefix...), key...), nil
}

// Get reads a key. A missing key yields a nil value and no error.
func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	k, err := cfKey(cf, key)
	if err != nil {
		return nil, err
	}

	value, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// value is only valid until closer.Close()
	return append([]byte(nil), value...), nil
}

// WriteBatch collects writes that are committed atomically
type WriteBatch struct {
	batch *pebble.Batch
}

// NewBatch creates a new write batch
func (p *PebbleDB) NewBatch() *WriteBatch {
	return &WriteBatch{batch: p.db.NewBatch()}
}

// Put adds a write of key to the batch
func (b *WriteBatch) Put(cf string, key, value []byte) error {
	k, err := cfKey(cf, key)
	if err != nil {
		return err
	}
	return b.batch.Set(k, value, nil)
}

// Delete adds a deletion of key to the batch
func (b *WriteBatch) Delete(cf string, key []byte) error {
	k, err := cfKey(cf, key)
	if err != nil {
		return err
	}
	return b.batch.Delete(k, nil)
}

// DeleteCF adds a deletion of every key of a column family to the batch
func (b *WriteBatch) DeleteCF(cf string) error {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return fmt.Errorf("column family not found: %s", cf)
	}
	return b.batch.DeleteRange(prefix, prefixUpperBound(prefix), nil)
}

// Commit writes the batch durably
func (b *WriteBatch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Destroy releases the batch
func (b *WriteBatch) Destroy() {
	b.batch.Close()
}

// Iterator walks the values of one column family in key order
type Iterator struct {
	iter *pebble.Iterator
}

// NewIterator creates an iterator positioned at the first key of cf
func (p *PebbleDB) NewIterator(cf string) (*Iterator, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	iter.First()
	return &Iterator{iter: iter}, nil
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Valid returns true if the iterator is positioned at a key
func (i *Iterator) Valid() bool {
	return i.iter.Valid()
}

// Next advances the iterator
func (i *Iterator) Next() bool {
	return i.iter.Next()
}

// Value returns the current value, valid until the next call to Next
func (i *Iterator) Value() []byte {
	return i.iter.Value()
}

// Close closes the iterator
func (i *Iterator) Close() error {
	return i.iter.Close()
}
