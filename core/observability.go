package core

import (
	"time"

	"github.com/google/uuid"
)

// State is the orchestrator lifecycle state.
//
//	StateCreated → StateRunning → StateStopRequested → StateStopped
//	StateCreated → StateRunning → StateEmergencyStop → StateStopped
//
// Transitions only move forward; StateStopped is terminal.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopRequested
	StateEmergencyStop
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateEmergencyStop:
		return "emergency_stop"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     uuid.UUID
	Name       string
	Worker     int
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Failed     bool
	Panicked   bool
}

// ThreadStats is a snapshot of one managed goroutine.
type ThreadStats struct {
	ID         uuid.UUID
	Name       string
	Role       Role
	Policy     FailurePolicy
	Running    bool
	Iterations uint64
	Failures   uint64
	StartedAt  time.Time
}

// OrchestratorStats represents runtime observability state for an orchestrator.
type OrchestratorStats struct {
	Name      string
	State     State
	Emergency bool
	Workers   int
	Queued    int
	Active    int
	Completed int64
	Failed    int64
	Rejected  int64
	Threads   []ThreadStats
}
