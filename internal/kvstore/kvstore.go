// Package kvstore defines the ordered byte key/value store the persistent
// record cache writes to. Backends live in subpackages.
package kvstore

import "errors"

var ErrClosed = errors.New("kvstore: closed")

// Reader reads a consistent snapshot. Returned slices are owned by the
// caller.
type Reader interface {
	// Get returns nil when key is absent.
	Get(key []byte) ([]byte, error)
	// Scan calls fn for every key with prefix, in key order.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// Txn is a read-write transaction. Its writes are visible to its own reads
// and to other readers only once the transaction commits.
type Txn interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

type Store interface {
	// View runs fn against a read snapshot.
	View(fn func(Reader) error) error
	// Update runs fn in a transaction, committing when fn returns nil and
	// discarding every write otherwise.
	Update(fn func(Txn) error) error
	// Clear deletes every key.
	Clear() error
	Close() error
}
