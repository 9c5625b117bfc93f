// Package btreedb is an in-memory kvstore backend over a copy-on-write
// B-tree. Readers see the tree as of the start of their View; an Update
// works on a clone that replaces the tree only when the update succeeds.
package btreedb

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/hanpama/graphcache/internal/kvstore"
)

const Name = "btreedb"

const degree = 32

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

type DB struct {
	wmu    sync.Mutex // serializes writers
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	closed bool
}

var _ kvstore.Store = (*DB)(nil)

func New() *DB {
	return &DB{tree: btree.NewG[item](degree, less)}
}

// snapshot returns a clone readers can use without holding the lock.
func (db *DB) snapshot() (*btree.BTreeG[item], error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, kvstore.ErrClosed
	}
	return db.tree.Clone(), nil
}

func (db *DB) View(fn func(kvstore.Reader) error) error {
	tree, err := db.snapshot()
	if err != nil {
		return err
	}
	return fn(&tx{tree: tree})
}

func (db *DB) Update(fn func(kvstore.Txn) error) error {
	db.wmu.Lock()
	defer db.wmu.Unlock()

	tree, err := db.snapshot()
	if err != nil {
		return err
	}
	if err := fn(&tx{tree: tree, writable: true}); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return kvstore.ErrClosed
	}
	db.tree = tree
	return nil
}

func (db *DB) Clear() error {
	db.wmu.Lock()
	defer db.wmu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return kvstore.ErrClosed
	}
	db.tree = btree.NewG[item](degree, less)
	return nil
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return kvstore.ErrClosed
	}
	db.closed = true
	db.tree = nil
	return nil
}

// Len returns the number of keys.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.tree == nil {
		return 0
	}
	return db.tree.Len()
}

type tx struct {
	tree     *btree.BTreeG[item]
	writable bool
}

func (t *tx) Get(key []byte) ([]byte, error) {
	it, ok := t.tree.Get(item{key: key})
	if !ok {
		return nil, nil
	}
	return bytes.Clone(it.value), nil
}

func (t *tx) Scan(prefix []byte, fn func(key, value []byte) error) error {
	var err error
	t.tree.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		err = fn(bytes.Clone(it.key), bytes.Clone(it.value))
		return err == nil
	})
	return err
}

func (t *tx) Put(key, value []byte) error {
	t.tree.ReplaceOrInsert(item{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (t *tx) Delete(key []byte) error {
	t.tree.Delete(item{key: key})
	return nil
}
