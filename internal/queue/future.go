package queue

import "context"

// Future is the completion handle of a submitted operation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) settle(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Done is closed once the operation has settled.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation settles or ctx ends. When ctx ends first
// the operation keeps running; only the wait is abandoned.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
