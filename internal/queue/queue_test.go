package queue_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/queue"
)

func TestSerialPreservesOrder(t *testing.T) {
	q := queue.NewSerial()
	var got []int
	for i := 0; i < 100; i++ {
		q.Async(func() { got = append(got, i) })
	}
	require.NoError(t, q.Sync(func() {}))
	q.Close()

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSerialRunsOneAtATime(t *testing.T) {
	q := queue.NewSerial()
	defer q.Close()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go q.Async(func() {
			defer wg.Done()
			mu.Lock()
			running++
			maxSeen = max(maxSeen, running)
			mu.Unlock()

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	q := queue.NewSerial()
	ran := 0
	for i := 0; i < 5; i++ {
		q.Async(func() { ran++ })
	}
	q.Close()
	require.Equal(t, 5, ran)

	require.ErrorIs(t, q.Sync(func() {}), queue.ErrClosed)
	q.Async(func() { ran++ })
	require.Equal(t, 5, ran)
}
