// Package badgerdb is a kvstore backend over Badger.
package badgerdb

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	"github.com/hanpama/graphcache/internal/kvstore"
)

const Name = "badgerdb"

type Config struct {
	// Path is the database directory. Empty with InMemory set keeps the
	// database in memory.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     logr.Logger
}

type Store struct {
	db *badger.DB
}

var _ kvstore.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badgerdb: must specify path")
	}
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(logAdapter{cfg.Logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerdb: open %s: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) View(fn func(kvstore.Reader) error) error {
	return s.db.View(func(tx *badger.Txn) error { return fn(&txn{tx: tx}) })
}

func (s *Store) Update(fn func(kvstore.Txn) error) error {
	return s.db.Update(func(tx *badger.Txn) error { return fn(&txn{tx: tx}) })
}

func (s *Store) Clear() error { return s.db.DropAll() }

func (s *Store) Close() error { return s.db.Close() }

type txn struct {
	tx *badger.Txn
}

func (t *txn) Get(key []byte) ([]byte, error) {
	item, err := t.tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *txn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.tx.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), v); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Put(key, value []byte) error { return t.tx.Set(key, value) }

func (t *txn) Delete(key []byte) error { return t.tx.Delete(key) }

// logAdapter routes Badger's leveled logging into logr. Badger's info
// and debug chatter goes to V(1) and V(2).
type logAdapter struct {
	log logr.Logger
}

func (l logAdapter) Errorf(format string, args ...any) {
	l.log.Error(nil, fmt.Sprintf(format, args...))
}

func (l logAdapter) Warningf(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...), "level", "warning")
}

func (l logAdapter) Infof(format string, args ...any) {
	l.log.V(1).Info(fmt.Sprintf(format, args...))
}

func (l logAdapter) Debugf(format string, args ...any) {
	l.log.V(2).Info(fmt.Sprintf(format, args...))
}
