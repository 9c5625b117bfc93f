package future_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/future"
)

func TestResolveIsMonotonic(t *testing.T) {
	f := future.New[int]()
	require.True(t, f.Resolve(1))
	require.False(t, f.Resolve(2))
	require.False(t, f.Reject(errors.New("late")))

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestThenBeforeAndAfterSettle(t *testing.T) {
	f := future.New[string]()
	var got []string
	f.Then(func(v string, err error) { got = append(got, "before:"+v) })
	f.Resolve("x")
	f.Then(func(v string, err error) { got = append(got, "after:"+v) })
	f.Resolve("y")

	if diff := cmp.Diff([]string{"before:x", "after:x"}, got); diff != "" {
		t.Fatalf("continuations mismatch (-want +got):\n%s", diff)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	f := future.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.False(t, f.Settled())
}

func TestConcurrentSettleRunsContinuationOnce(t *testing.T) {
	f := future.New[int]()
	var (
		mu    sync.Mutex
		calls int
	)
	f.Then(func(int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.Resolve(i)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, calls)
}

func TestMap(t *testing.T) {
	f := future.Go(func() (int, error) { return 21, nil })
	doubled := future.Map(f, func(v int) (int, error) { return v * 2, nil })
	v, err := doubled.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)

	boom := errors.New("boom")
	failed := future.Map(future.Rejected[int](boom), func(v int) (string, error) {
		t.Fatal("map function called on rejected future")
		return "", nil
	})
	_, err = failed.Wait(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestAll(t *testing.T) {
	a, b := future.New[int](), future.New[int]()
	all := future.All(a, b)
	b.Resolve(2)
	a.Resolve(1)
	got, err := all.Wait(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	boom := errors.New("boom")
	_, err = future.All(future.Resolved(1), future.Rejected[int](boom)).Wait(context.Background())
	require.ErrorIs(t, err, boom)

	empty, err := future.All[int]().Wait(context.Background())
	require.NoError(t, err)
	require.Empty(t, empty)
}
