// Package kvstoretest holds conformance tests every kvstore backend runs.
package kvstoretest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/kvstore"
)

// Run runs the conformance suite. open returns a new empty store; the
// suite closes it.
func Run(t *testing.T, open func(t *testing.T) kvstore.Store) {
	t.Run("crud", func(t *testing.T) { testCrud(t, open(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("prefix scan", func(t *testing.T) { testPrefixScan(t, open(t)) })
	t.Run("reader owns bytes", func(t *testing.T) { testReaderOwnsBytes(t, open(t)) })
	t.Run("clear", func(t *testing.T) { testClear(t, open(t)) })
}

func get(t *testing.T, s kvstore.Store, key string) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, s.View(func(r kvstore.Reader) error {
		v, err := r.Get([]byte(key))
		out = v
		return err
	}))
	return out
}

func put(t *testing.T, s kvstore.Store, kv ...string) {
	t.Helper()
	require.NoError(t, s.Update(func(tx kvstore.Txn) error {
		for i := 0; i+1 < len(kv); i += 2 {
			if err := tx.Put([]byte(kv[i]), []byte(kv[i+1])); err != nil {
				return err
			}
		}
		return nil
	}))
}

func testCrud(t *testing.T, s kvstore.Store) {
	defer s.Close()

	require.Nil(t, get(t, s, "a"))
	put(t, s, "a", "1", "b", "2")
	require.Equal(t, []byte("1"), get(t, s, "a"))

	require.NoError(t, s.Update(func(tx kvstore.Txn) error {
		if err := tx.Put([]byte("a"), []byte("3")); err != nil {
			return err
		}
		v, err := tx.Get([]byte("a"))
		require.Equal(t, []byte("3"), v)
		if err != nil {
			return err
		}
		return tx.Delete([]byte("b"))
	}))
	require.Equal(t, []byte("3"), get(t, s, "a"))
	require.Nil(t, get(t, s, "b"))
}

func testRollback(t *testing.T, s kvstore.Store) {
	defer s.Close()

	put(t, s, "a", "1")
	boom := errors.New("boom")
	err := s.Update(func(tx kvstore.Txn) error {
		if err := tx.Put([]byte("a"), []byte("2")); err != nil {
			return err
		}
		if err := tx.Put([]byte("c"), []byte("3")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []byte("1"), get(t, s, "a"))
	require.Nil(t, get(t, s, "c"))
}

func testPrefixScan(t *testing.T, s kvstore.Store) {
	defer s.Close()

	put(t, s, "b", "0", "a.2", "2", "a.1", "1", "a", "x", "ab", "y")
	var got []string
	require.NoError(t, s.View(func(r kvstore.Reader) error {
		return r.Scan([]byte("a."), func(k, v []byte) error {
			got = append(got, string(k)+"="+string(v))
			return nil
		})
	}))
	if diff := cmp.Diff([]string{"a.1=1", "a.2=2"}, got); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}

	stop := errors.New("stop")
	count := 0
	err := s.View(func(r kvstore.Reader) error {
		return r.Scan(nil, func(k, v []byte) error {
			count++
			return stop
		})
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, count)
}

func testReaderOwnsBytes(t *testing.T, s kvstore.Store) {
	defer s.Close()

	put(t, s, "k", "value")
	v := get(t, s, "k")
	v[0] = 'X'
	require.Equal(t, []byte("value"), get(t, s, "k"))
}

func testClear(t *testing.T, s kvstore.Store) {
	defer s.Close()

	put(t, s, "a", "1", "b", "2")
	require.NoError(t, s.Clear())
	require.Nil(t, get(t, s, "a"))
	put(t, s, "c", "3")
	require.Equal(t, []byte("3"), get(t, s, "c"))
}
