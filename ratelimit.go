package iconic

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultRateCapacity and DefaultRateRefill correspond to the
	// platform's published default of 25 requests per second.
	DefaultRateCapacity = 25
	DefaultRateRefill   = 25
)

// Bucket is a leaky-bucket admission gate shared by all calls issued
// through one client. Capacity refills lazily from elapsed wall-clock time
// at each Acquire, so it is inert under no load and exact under load.
// Waiters are admitted in arrival order; the debit is taken only at the
// moment of admission, so the level stays within [0, capacity] and a
// cancelled waiter never leaks capacity.
type Bucket struct {
	mu       sync.Mutex
	capacity float64
	refill   float64 // tokens per second
	level    float64
	last     time.Time
	waiters  []*bucketWaiter
	timer    *time.Timer
	nowFunc  func() time.Time
}

type bucketWaiter struct {
	cost  float64
	ready chan struct{} // closed when the debit is granted
}

// BucketOption configures the Bucket.
type BucketOption func(*Bucket)

// WithBucketNowFunc overrides the time function for testing.
func WithBucketNowFunc(f func() time.Time) BucketOption {
	return func(b *Bucket) {
		b.nowFunc = f
	}
}

// NewBucket creates a leaky bucket with the given capacity and refill rate
// in tokens per second. Non-positive values fall back to the platform
// defaults.
func NewBucket(capacity, refillPerSecond float64, opts ...BucketOption) *Bucket {
	if capacity <= 0 {
		capacity = DefaultRateCapacity
	}
	if refillPerSecond <= 0 {
		refillPerSecond = DefaultRateRefill
	}
	b := &Bucket{
		capacity: capacity,
		refill:   refillPerSecond,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.level = capacity
	b.last = b.nowFunc()
	return b
}

// Acquire admits one request, waiting until a token is available.
func (b *Bucket) Acquire(ctx context.Context) error {
	return b.AcquireN(ctx, 1)
}

// AcquireN admits a request of the given cost. It blocks until the bucket
// holds at least cost tokens and every earlier waiter has been served, then
// debits them. It fails only when the wait is cancelled or cost can never
// be satisfied.
func (b *Bucket) AcquireN(ctx context.Context, cost float64) error {
	if cost <= 0 {
		cost = 1
	}
	if cost > b.capacity {
		return fmt.Errorf("iconic: acquire cost %.2f exceeds bucket capacity %.2f", cost, b.capacity)
	}

	b.mu.Lock()
	b.advanceLocked()
	if len(b.waiters) == 0 && b.level >= cost {
		b.level -= cost
		b.mu.Unlock()
		return nil
	}

	w := &bucketWaiter{cost: cost, ready: make(chan struct{})}
	b.waiters = append(b.waiters, w)
	b.scheduleLocked()
	b.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		select {
		case <-w.ready:
			// Granted while cancelling: return the debit.
			b.advanceLocked()
			b.level = min(b.capacity, b.level+cost)
			b.dispatchLocked()
		default:
			b.removeLocked(w)
		}
		b.mu.Unlock()
		return &RateLimitError{Err: ctx.Err()}
	}
}

// Level reports the current token level after applying lazy refill.
func (b *Bucket) Level() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.level
}

// Capacity returns the configured bucket capacity.
func (b *Bucket) Capacity() float64 {
	return b.capacity
}

func (b *Bucket) advanceLocked() {
	now := b.nowFunc()
	if now.After(b.last) {
		b.level = min(b.capacity, b.level+now.Sub(b.last).Seconds()*b.refill)
		b.last = now
	}
}

// dispatchLocked serves waiters in arrival order while capacity lasts.
func (b *Bucket) dispatchLocked() {
	b.advanceLocked()
	for len(b.waiters) > 0 && b.level >= b.waiters[0].cost {
		w := b.waiters[0]
		b.waiters = b.waiters[1:]
		b.level -= w.cost
		close(w.ready)
	}
	b.scheduleLocked()
}

// scheduleLocked arms the refill timer for the head waiter.
func (b *Bucket) scheduleLocked() {
	if len(b.waiters) == 0 {
		return
	}
	need := b.waiters[0].cost - b.level
	d := time.Duration(need / b.refill * float64(time.Second))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(d, b.dispatch)
	} else {
		b.timer.Reset(d)
	}
}

func (b *Bucket) dispatch() {
	b.mu.Lock()
	b.dispatchLocked()
	b.mu.Unlock()
}

func (b *Bucket) removeLocked(target *bucketWaiter) {
	for i, w := range b.waiters {
		if w == target {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			break
		}
	}
	b.scheduleLocked()
}
