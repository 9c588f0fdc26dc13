package iconic_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iconic "github.com/sellerkit/iconic-go"
)

// fakeClock is a mutex-guarded movable time source for bucket tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// canceledCtx returns an already-cancelled context, making Acquire
// non-blocking: it succeeds only when capacity is available right now.
func canceledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestBucket_LevelBounds(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := iconic.NewBucket(5, 1, iconic.WithBucketNowFunc(clock.Now))

	// Starts full.
	assert.InDelta(t, 5.0, b.Level(), 1e-9)
	assert.InDelta(t, 5.0, b.Capacity(), 1e-9)

	// Draining to zero.
	for range 5 {
		require.NoError(t, b.Acquire(context.Background()))
	}
	assert.InDelta(t, 0.0, b.Level(), 1e-9)

	// Refill accrues from elapsed time.
	clock.Advance(2 * time.Second)
	assert.InDelta(t, 2.0, b.Level(), 1e-9)

	// Refill clamps at capacity.
	clock.Advance(time.Hour)
	assert.InDelta(t, 5.0, b.Level(), 1e-9)

	// Weighted acquires debit their cost.
	require.NoError(t, b.AcquireN(context.Background(), 2))
	assert.InDelta(t, 3.0, b.Level(), 1e-9)
}

func TestBucket_CostExceedsCapacity(t *testing.T) {
	t.Parallel()

	b := iconic.NewBucket(2, 1)
	err := b.AcquireN(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds bucket capacity")
}

func TestBucket_AdmissionWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := iconic.NewBucket(3, 1, iconic.WithBucketNowFunc(clock.Now))

	// Drain the initial burst.
	for range 3 {
		require.NoError(t, b.Acquire(canceledCtx()))
	}

	// Over a 2-second window only rate*window more tokens accrue.
	clock.Advance(2 * time.Second)
	admitted := 0
	for {
		if err := b.Acquire(canceledCtx()); err != nil {
			var rlErr *iconic.RateLimitError
			require.ErrorAs(t, err, &rlErr)
			break
		}
		admitted++
	}
	assert.Equal(t, 2, admitted)
}

func TestBucket_FIFOAdmission(t *testing.T) {
	t.Parallel()

	// One token per 100ms; waiters queued 30ms apart must be served in
	// arrival order.
	b := iconic.NewBucket(1, 10)
	require.NoError(t, b.Acquire(context.Background()))

	order := make(chan int, 3)
	var wg sync.WaitGroup
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Acquire(context.Background()))
			order <- i
		}()
		time.Sleep(30 * time.Millisecond)
	}
	wg.Wait()
	close(order)

	var got []int
	for i := range order {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestBucket_ConcurrentNoOverAdmission(t *testing.T) {
	t.Parallel()

	// Refill is negligible over the test window, so exactly capacity
	// acquisitions may succeed no matter how many race for them.
	b := iconic.NewBucket(5, 0.01)

	const callers = 20
	var ok, limited int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			err := b.Acquire(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var rlErr *iconic.RateLimitError
				assert.ErrorAs(t, err, &rlErr)
				limited++
				return
			}
			ok++
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), ok)
	assert.Equal(t, int64(callers-5), limited)
}

func TestBucket_CancelWhileWaitingReleasesNothing(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := iconic.NewBucket(2, 1, iconic.WithBucketNowFunc(clock.Now))

	require.NoError(t, b.AcquireN(context.Background(), 2))
	assert.InDelta(t, 0.0, b.Level(), 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Acquire(ctx)
	}()

	// Let the waiter enqueue, then abandon it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-errCh
	var rlErr *iconic.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned waiter held no debit: the level is untouched and the
	// full capacity comes back with time.
	assert.InDelta(t, 0.0, b.Level(), 1e-9)
	clock.Advance(2 * time.Second)
	require.NoError(t, b.AcquireN(canceledCtx(), 2))
}

func TestBucket_DefaultsApplied(t *testing.T) {
	t.Parallel()

	b := iconic.NewBucket(0, -1)
	assert.InDelta(t, float64(iconic.DefaultRateCapacity), b.Capacity(), 1e-9)
	assert.InDelta(t, float64(iconic.DefaultRateCapacity), b.Level(), 1e-9)
}
