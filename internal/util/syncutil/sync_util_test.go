package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGuardedAcquire(t *testing.T) {
	ctx := context.Background()

	guard := NewGuarded("value")

	value, release, err := guard.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, "value", value)

	// While held, another acquisition times out instead of succeeding.
	{
		shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, _, err := guard.Acquire(shortCtx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	release()

	// After release, acquisition succeeds again.
	{
		_, release, err := guard.Acquire(ctx)
		require.NoError(t, err)
		release()
	}
}

func TestGuardedAcquireCanceled(t *testing.T) {
	guard := NewGuarded("value")

	// Even with the guard free, a canceled context never acquires.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := guard.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The failed attempt didn't consume the slot.
	_, release, err := guard.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestGuardedReleaseIdempotent(t *testing.T) {
	guard := NewGuarded("value")

	_, release, err := guard.Acquire(context.Background())
	require.NoError(t, err)

	release()
	release() // second call is a no-op rather than corrupting the semaphore

	_, release, err = guard.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestGuardedMutualExclusion(t *testing.T) {
	counter := 0
	guard := NewGuarded(&counter)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			value, release, err := guard.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			*value++
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
}
