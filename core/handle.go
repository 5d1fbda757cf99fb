package core

import (
	"context"
	"sync"
)

// Handle carries the eventual result of a submitted task.
//
// A Handle resolves exactly once, either with the value returned by the task or with its
// failure (returned error or *TaskPanicError). It is safe to inspect from any goroutine.
type Handle[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newHandle[T any]() *Handle[T] {
	return &Handle[T]{done: make(chan struct{})}
}

func (h *Handle[T]) resolve(value T, err error) {
	h.once.Do(func() {
		h.value = value
		h.err = err
		close(h.done)
	})
}

// Done is closed once the handle has resolved.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task finished or ctx is done.
// A ctx error does not cancel the task; it keeps running and resolves the handle later.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks until the task finished.
func (h *Handle[T]) Get() (T, error) {
	<-h.done
	return h.value, h.err
}

// IsDone reports whether the handle has resolved.
func (h *Handle[T]) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
