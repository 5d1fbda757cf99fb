package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHandle_WaitTimeout(t *testing.T) {
	h := newHandle[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
	if h.IsDone() {
		t.Error("IsDone() = true before resolve")
	}

	h.resolve(3, nil)
	if v, err := h.Wait(context.Background()); v != 3 || err != nil {
		t.Errorf("Wait() = %d, %v", v, err)
	}
}

// TestHandle_ResolvesOnce verifies only the first resolution counts
func TestHandle_ResolvesOnce(t *testing.T) {
	h := newHandle[string]()
	h.resolve("first", nil)
	h.resolve("second", errors.New("late"))

	select {
	case <-h.Done():
	default:
		t.Fatal("Done() not closed")
	}
	if v, err := h.Get(); v != "first" || err != nil {
		t.Errorf("Get() = %q, %v; want first, nil", v, err)
	}
}
