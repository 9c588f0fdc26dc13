package iconic

import "context"

// Future is the non-blocking form of a client operation. The blocking
// methods are the single implementation; Go only drives one of them on its
// own goroutine, so both calling conventions share semantics exactly.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on its own goroutine and returns a Future for its result.
//
//	fut := iconic.Go(func() (*iconic.Handle[iconic.Order], error) {
//		return client.Orders.Get(ctx, 42)
//	})
//	order, err := fut.Wait(ctx)
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx is cancelled.
// Cancellation abandons the wait, not the underlying operation; pass the
// same context to the operation itself to cancel it.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
