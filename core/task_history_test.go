package core

import (
	"fmt"
	"testing"
)

// TestExecutionHistory_RingBuffer verifies the history keeps the newest records
// Given: A history with capacity 3
// When: Five records are added
// Then: Recent returns the last three, newest first
func TestExecutionHistory_RingBuffer(t *testing.T) {
	h := newExecutionHistory(3)
	for i := range 5 {
		h.Add(TaskExecutionRecord{Name: fmt.Sprintf("task-%d", i)})
	}

	got := h.Recent(0)
	want := []string{"task-4", "task-3", "task-2"}
	if len(got) != len(want) {
		t.Fatalf("Recent(0) returned %d records, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("record %d = %q, want %q", i, got[i].Name, name)
		}
	}

	if limited := h.Recent(1); len(limited) != 1 || limited[0].Name != "task-4" {
		t.Errorf("Recent(1) = %+v, want [task-4]", limited)
	}
}

// TestExecutionHistory_Empty verifies an empty history and capacity defaults
// Given: A history created with a non-positive capacity
// When: Recent is called before any Add
// Then: It returns nil and the default capacity is used
func TestExecutionHistory_Empty(t *testing.T) {
	h := newExecutionHistory(0)
	if got := h.Recent(10); got != nil {
		t.Errorf("Recent on empty history = %v, want nil", got)
	}
	if len(h.items) != defaultTaskHistoryCapacity {
		t.Errorf("capacity = %d, want %d", len(h.items), defaultTaskHistoryCapacity)
	}
}

func namedForHistory() {}

func TestResolveTaskName(t *testing.T) {
	if got := resolveTaskName(namedForHistory, "explicit"); got != "explicit" {
		t.Errorf("explicit name = %q", got)
	}
	if got := resolveTaskName(nil, ""); got != "anonymous" {
		t.Errorf("nil fn name = %q, want anonymous", got)
	}
	if got := resolveTaskName(42, ""); got != "anonymous" {
		t.Errorf("non-func name = %q, want anonymous", got)
	}
	want := "github.com/Swind/go-loop-runner/core.namedForHistory"
	if got := resolveTaskName(namedForHistory, ""); got != want {
		t.Errorf("func name = %q, want %q", got, want)
	}
}
