// Package boltdb is a kvstore backend over a bbolt file.
package boltdb

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hanpama/graphcache/internal/kvstore"
)

const Name = "boltdb"

var defaultBucket = []byte("records")

type Config struct {
	Path    string
	Bucket  string
	NoSync  bool
	Timeout time.Duration
}

type Store struct {
	db     *bolt.DB
	bucket []byte
}

var _ kvstore.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("boltdb: must specify path")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout, NoSync: cfg.NoSync})
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %s: %w", cfg.Path, err)
	}
	bucket := defaultBucket
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltdb: create bucket: %w", err)
	}
	return &Store{db: db, bucket: bucket}, nil
}

func (s *Store) View(fn func(kvstore.Reader) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&txn{b: tx.Bucket(s.bucket)})
	})
}

func (s *Store) Update(fn func(kvstore.Txn) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&txn{b: tx.Bucket(s.bucket)})
	})
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

func (s *Store) Close() error { return s.db.Close() }

type txn struct {
	b *bolt.Bucket
}

func (t *txn) Get(key []byte) ([]byte, error) {
	v := t.b.Get(key)
	if v == nil {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (t *txn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	c := t.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(bytes.Clone(k), bytes.Clone(v)); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Put(key, value []byte) error { return t.b.Put(key, value) }

func (t *txn) Delete(key []byte) error { return t.b.Delete(key) }
