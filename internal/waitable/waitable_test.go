package waitable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewStartsPending verifies a fresh Waitable is pending and keeps its payload.
func TestNewStartsPending(t *testing.T) {
	t.Parallel()

	w := New[int]("page-1")
	require.Equal(t, StatePending, w.State())
	require.False(t, w.Settled())
	require.Equal(t, "page-1", w.Payload())
	require.Zero(t, w.Seq())
	require.NotZero(t, w.ID())

	select {
	case <-w.Done():
		t.Fatal("pending waitable must not be done")
	default:
	}
}

// TestResolveStoresValue ensures Resolve fulfils the Waitable and signals completion.
func TestResolveStoresValue(t *testing.T) {
	t.Parallel()

	w := New[string](nil)
	require.NoError(t, w.Resolve("ok"))
	require.Equal(t, StateFulfilled, w.State())
	require.Equal(t, "ok", w.Value())
	require.NoError(t, w.Reason())
	require.NotZero(t, w.Seq())

	select {
	case <-w.Done():
	default:
		t.Fatal("resolved waitable must be done")
	}
}

// TestRejectStoresReason ensures Reject records the reason and a default for nil.
func TestRejectStoresReason(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w := New[int](nil)
	require.NoError(t, w.Reject(boom))
	require.Equal(t, StateRejected, w.State())
	require.ErrorIs(t, w.Reason(), boom)

	anon := New[int](nil)
	require.NoError(t, anon.Reject(nil))
	require.ErrorIs(t, anon.Reason(), ErrRejected)
}

// TestSecondSettleFailsWithInvalidState covers every double-settle combination.
func TestSecondSettleFailsWithInvalidState(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	second := errors.New("second")

	tests := []struct {
		name   string
		settle func(w *Waitable[int]) error
		again  func(w *Waitable[int]) error
		value  int
		reason error
	}{
		{
			name:   "resolve then resolve",
			settle: func(w *Waitable[int]) error { return w.Resolve(1) },
			again:  func(w *Waitable[int]) error { return w.Resolve(2) },
			value:  1,
		},
		{
			name:   "resolve then reject",
			settle: func(w *Waitable[int]) error { return w.Resolve(1) },
			again:  func(w *Waitable[int]) error { return w.Reject(second) },
			value:  1,
		},
		{
			name:   "reject then resolve",
			settle: func(w *Waitable[int]) error { return w.Reject(first) },
			again:  func(w *Waitable[int]) error { return w.Resolve(2) },
			reason: first,
		},
		{
			name:   "reject then reject",
			settle: func(w *Waitable[int]) error { return w.Reject(first) },
			again:  func(w *Waitable[int]) error { return w.Reject(second) },
			reason: first,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := New[int](nil)
			require.NoError(t, tc.settle(w))
			seq := w.Seq()
			state := w.State()

			err := tc.again(w)
			require.ErrorIs(t, err, ErrInvalidState)
			require.Equal(t, state, w.State())
			require.Equal(t, seq, w.Seq())
			require.Equal(t, tc.value, w.Value())
			if tc.reason == nil {
				require.NoError(t, w.Reason())
			} else {
				require.ErrorIs(t, w.Reason(), tc.reason)
				require.NotErrorIs(t, w.Reason(), second)
			}
		})
	}
}

// TestConcurrentSettleHasSingleWinner races many settlers; exactly one must succeed.
func TestConcurrentSettleHasSingleWinner(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	const settlers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < settlers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var err error
			if n%2 == 0 {
				err = w.Resolve(n)
			} else {
				err = w.Reject(errors.New("lost"))
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

// TestManyObserversSeeCompletion checks Done can be observed by several waiters.
func TestManyObserversSeeCompletion(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := w.Wait(context.Background())
			if err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			results[idx] = v
		}(i)
	}
	require.NoError(t, w.Resolve(7))
	wg.Wait()
	require.Equal(t, []int{7, 7, 7, 7, 7}, results)
}

// TestWaitHonorsContext ensures Wait returns when the context ends first.
func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	w := New[int](nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := w.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StatePending, w.State())
}

// TestGoSettlesFromFunction covers success, failure and panic outcomes.
func TestGoSettlesFromFunction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ok := Go(ctx, 1, func(context.Context) (string, error) { return "done", nil })
	failed := Go(ctx, 2, func(context.Context) (string, error) { return "", errors.New("nope") })
	panicked := Go(ctx, 3, func(context.Context) (string, error) { panic("kaboom") })

	v, err := ok.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "done", v)
	require.Equal(t, 1, ok.Payload())

	_, err = failed.Wait(ctx)
	require.EqualError(t, err, "nope")
	require.Equal(t, StateRejected, failed.State())

	_, err = panicked.Wait(ctx)
	require.ErrorIs(t, err, ErrPanicked)
	require.Contains(t, err.Error(), "kaboom")
}

// TestSeqOrdersSettlement ensures settle sequence numbers follow settle order.
func TestSeqOrdersSettlement(t *testing.T) {
	t.Parallel()

	a := New[int](nil)
	b := New[int](nil)
	require.NoError(t, b.Resolve(1))
	require.NoError(t, a.Reject(errors.New("late")))
	require.Less(t, b.Seq(), a.Seq())
}

// TestStateString covers the textual state names used in errors and logs.
func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pending", StatePending.String())
	require.Equal(t, "fulfilled", StateFulfilled.String())
	require.Equal(t, "rejected", StateRejected.String())
	require.Equal(t, "state(9)", State(9).String())
}
