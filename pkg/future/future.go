// Package future provides a small task/future abstraction with a completion-ordered join.
//
// A Future is started with Go and resolves exactly once. AsCompleted yields a batch of
// futures in the order they resolve, not the order they were started.
package future

import (
	"context"
	"sync"
)

type (

	// Future is the eventual result of a call started with Go.
	Future[T any] struct {
		done chan struct{}
		once sync.Once
		val  T
		err  error
	}

	// Completion is one resolved future as yielded by AsCompleted.
	Completion[T any] struct {
		Index int // Position of the future in the slice passed to AsCompleted
		Value T
		Err   error
	}
)

// Go starts fn on its own goroutine and returns a Future for its result.
// The context is passed to fn unchanged; the future itself never cancels.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		v, err := fn(ctx)
		f.resolve(v, err)
	}()
	return f
}

// Resolved returns a future that is already complete with v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.resolve(v, nil)
	return f
}

// Failed returns a future that is already complete with err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	var zero T
	f.resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves and returns its result.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.val, f.err
}

// AsCompleted returns a channel that yields every future in fs once, in the order the
// futures resolve. The channel is closed after the last one. Callers that stop reading
// early leak nothing: the channel is buffered for the whole batch.
func AsCompleted[T any](fs []*Future[T]) <-chan Completion[T] {
	out := make(chan Completion[T], len(fs))
	if len(fs) == 0 {
		close(out)
		return out
	}

	var wg sync.WaitGroup
	wg.Add(len(fs))
	for i, f := range fs {
		go func(i int, f *Future[T]) {
			defer wg.Done()
			v, err := f.Await()
			out <- Completion[T]{Index: i, Value: v, Err: err}
		}(i, f)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// AwaitAll blocks until every future resolves and returns the values in submission
// order together with the first error in submission order.
func AwaitAll[T any](fs []*Future[T]) ([]T, error) {
	vals := make([]T, len(fs))
	var firstErr error
	for i, f := range fs {
		v, err := f.Await()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		vals[i] = v
	}
	return vals, firstErr
}
