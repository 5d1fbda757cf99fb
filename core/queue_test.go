package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func queueItem(name string) TaskItem {
	return TaskItem{Name: name, Task: func(context.Context) error { return nil }}
}

// TestTaskQueue_FIFO verifies items come out in push order
// Given: A queue with tasks a, b, c
// When: Items are popped
// Then: They are returned as a, b, c
func TestTaskQueue_FIFO(t *testing.T) {
	// Arrange
	q := NewTaskQueue()
	for _, name := range []string{"a", "b", "c"} {
		if err := q.Push(queueItem(name)); err != nil {
			t.Fatalf("Push(%s) error = %v", name, err)
		}
	}

	// Act & Assert
	for _, want := range []string{"a", "b", "c"} {
		item, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop() ok = false, want %s", want)
		}
		if item.Name != want {
			t.Errorf("TryPop() = %s, want %s", item.Name, want)
		}
	}
	if !q.IsEmpty() {
		t.Errorf("IsEmpty() = false after draining")
	}
}

// TestTaskQueue_CloseDrains verifies a closed queue still hands out accepted items
// Given: A queue with 2 items that is then closed
// When: WaitPop is called three times
// Then: Both items are returned, then ok is false; Push fails with ErrQueueClosed
func TestTaskQueue_CloseDrains(t *testing.T) {
	// Arrange
	q := NewTaskQueue()
	_ = q.Push(queueItem("a"))
	_ = q.Push(queueItem("b"))

	// Act
	if !q.Close() {
		t.Fatal("Close() = false on first call")
	}

	// Assert
	if q.Close() {
		t.Error("Close() = true on second call")
	}
	if err := q.Push(queueItem("c")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Push after Close = %v, want ErrQueueClosed", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (rejected push must not change the queue)", q.Len())
	}
	for _, want := range []string{"a", "b"} {
		item, ok := q.WaitPop()
		if !ok || item.Name != want {
			t.Errorf("WaitPop() = %s, %v; want %s, true", item.Name, ok, want)
		}
	}
	if _, ok := q.WaitPop(); ok {
		t.Error("WaitPop() ok = true on closed empty queue")
	}
	if !q.IsClosed() {
		t.Error("IsClosed() = false")
	}
}

// TestTaskQueue_WaitPopBlocks verifies consumers sleep until work or close
// Given: Two consumers blocked on an empty queue
// When: One item is pushed and then the queue is closed
// Then: Exactly one consumer receives the item and both return
func TestTaskQueue_WaitPopBlocks(t *testing.T) {
	q := NewTaskQueue()
	results := make(chan bool, 2)

	for range 2 {
		go func() {
			_, ok := q.WaitPop()
			results <- ok
		}()
	}

	time.Sleep(10 * time.Millisecond)
	select {
	case <-results:
		t.Fatal("WaitPop returned before any push")
	default:
	}

	_ = q.Push(queueItem("only"))
	first := <-results
	q.Close()
	second := <-results

	if first == second {
		t.Errorf("results = %v, %v; want exactly one true", first, second)
	}
}

// TestTaskQueue_Concurrent verifies nothing is lost or duplicated
// Given: 4 producers pushing 250 items each and 4 consumers
// When: The queue is closed after all pushes
// Then: Every item is consumed exactly once
func TestTaskQueue_Concurrent(t *testing.T) {
	q := NewTaskQueue()
	const producers, perProducer = 4, 250

	var consumed sync.Map
	var consumers sync.WaitGroup
	for range 4 {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				item, ok := q.WaitPop()
				if !ok {
					return
				}
				if _, dup := consumed.LoadOrStore(item.Name, true); dup {
					t.Errorf("item %s consumed twice", item.Name)
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = q.Push(queueItem(fmt.Sprintf("%d-%d", p, i)))
			}
		}()
	}
	wg.Wait()
	q.Close()
	consumers.Wait()

	count := 0
	consumed.Range(func(_, _ any) bool { count++; return true })
	if count != producers*perProducer {
		t.Errorf("consumed %d items, want %d", count, producers*perProducer)
	}
}

// TestTaskQueue_Compaction verifies the backing array shrinks after a burst
func TestTaskQueue_Compaction(t *testing.T) {
	q := NewTaskQueue()
	for range 1000 {
		_ = q.Push(queueItem("x"))
	}
	for range 990 {
		q.TryPop()
	}

	q.mu.Lock()
	c := cap(q.tasks)
	q.mu.Unlock()

	if c >= 1000 {
		t.Errorf("cap = %d after draining 990 of 1000, want compaction", c)
	}
	if q.Len() != 10 {
		t.Errorf("Len() = %d, want 10", q.Len())
	}
}
