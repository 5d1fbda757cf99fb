package core

import (
	"context"

	"github.com/sharnoff/chord"
)

// TaskFunc is a task producing a value of type T.
type TaskFunc[T any] func(ctx context.Context) (T, error)

// =============================================================================
// Task submission
// =============================================================================

// Enqueue pushes task to the worker queue and returns a handle that resolves with the
// task's error (nil on success). It fails with ErrQueueClosed once shutdown has begun.
func (o *Orchestrator) Enqueue(task Task) (*Handle[struct{}], error) {
	return o.EnqueueNamed(resolveTaskName(task, ""), task)
}

// EnqueueNamed is Enqueue with an explicit name for logs and RecentTasks.
func (o *Orchestrator) EnqueueNamed(name string, task Task) (*Handle[struct{}], error) {
	if task == nil {
		return nil, NewConfigurationError("task", "must not be nil")
	}
	return submit(o, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
}

// Submit pushes fn to the worker queue of o and returns a handle for its result.
// A panic inside fn resolves the handle with a *TaskPanicError; the worker survives.
func Submit[T any](o *Orchestrator, fn TaskFunc[T]) (*Handle[T], error) {
	if fn == nil {
		return nil, NewConfigurationError("task", "must not be nil")
	}
	return submit(o, resolveTaskName(fn, ""), fn)
}

// SubmitNamed is Submit with an explicit task name.
func SubmitNamed[T any](o *Orchestrator, name string, fn TaskFunc[T]) (*Handle[T], error) {
	if fn == nil {
		return nil, NewConfigurationError("task", "must not be nil")
	}
	return submit(o, name, fn)
}

// SubmitWith binds arg at submission time and runs fn(ctx, arg) on a worker.
func SubmitWith[A, T any](o *Orchestrator, fn func(ctx context.Context, arg A) (T, error), arg A) (*Handle[T], error) {
	if fn == nil {
		return nil, NewConfigurationError("task", "must not be nil")
	}
	return submit(o, resolveTaskName(fn, ""), func(ctx context.Context) (T, error) {
		return fn(ctx, arg)
	})
}

func submit[T any](o *Orchestrator, name string, fn TaskFunc[T]) (*Handle[T], error) {
	h := newHandle[T]()

	task := func(ctx context.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				panicErr := &TaskPanicError{Value: rec, Stack: chord.GetStackTrace(nil, 1)}
				var zero T
				h.resolve(zero, panicErr)
				err = panicErr
			}
		}()

		value, err := fn(ctx)
		h.resolve(value, err)
		return err
	}

	if err := o.push(name, task); err != nil {
		return nil, err
	}
	return h, nil
}
