package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// Task is the unit of work executed by a worker. A returned error is the task's failure.
type Task func(ctx context.Context) error

// TaskItem is a queued task plus the metadata recorded in its execution history.
type TaskItem struct {
	ID         uuid.UUID
	Name       string
	Task       Task
	EnqueuedAt time.Time
}

// TaskQueue is a blocking FIFO shared by all workers.
//
// Push never blocks. WaitPop blocks until an item is available or the queue is closed;
// after Close it keeps returning items until the queue is empty, so accepted tasks are
// always drained.
type TaskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []TaskItem
	closed bool
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{
		tasks: make([]TaskItem, 0, defaultQueueCap),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item. It fails with ErrQueueClosed once Close was called.
func (q *TaskQueue) Push(item TaskItem) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, item)
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// WaitPop blocks until an item can be returned. ok is false only when the queue is
// closed and empty.
func (q *TaskQueue) WaitPop() (item TaskItem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.tasks) == 0 {
		return TaskItem{}, false
	}
	return q.popLocked(), true
}

// TryPop returns the head item without blocking.
func (q *TaskQueue) TryPop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return TaskItem{}, false
	}
	return q.popLocked(), true
}

func (q *TaskQueue) popLocked() TaskItem {
	item := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = TaskItem{}
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()
	return item
}

// Close sets the stop flag and wakes every waiter. It reports whether this call closed
// the queue.
func (q *TaskQueue) Close() bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
	return true
}

func (q *TaskQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *TaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *TaskQueue) maybeCompactLocked() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]TaskItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]TaskItem, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}
