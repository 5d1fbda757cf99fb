package core

import (
	"errors"
	"fmt"

	"github.com/sharnoff/chord"
)

var (
	// ErrConfiguration is wrapped by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrQueueClosed is returned by Enqueue and Submit once shutdown has begun.
	ErrQueueClosed = errors.New("task queue closed")

	// ErrOrchestratorStopped is returned when starting a role loop after shutdown has begun.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")

	// ErrNotStarted is returned when starting a role loop before Start.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrLoopDone may be returned by a LoopBody to end its own loop without a failure.
	ErrLoopDone = errors.New("loop done")
)

// ConfigurationError reports an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError creates a ConfigurationError for field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// RoleLoopFailure describes one failed iteration of a role loop.
type RoleLoopFailure struct {
	Role      Role
	Thread    string
	Iteration uint64
	Cause     error

	// Stack is set when the iteration panicked.
	Stack *chord.StackTrace
}

func (e *RoleLoopFailure) Error() string {
	return fmt.Sprintf("role %s loop %q failed at iteration %d: %v", e.Role, e.Thread, e.Iteration, e.Cause)
}

func (e *RoleLoopFailure) Unwrap() error { return e.Cause }

// EmergencyCondition is the irreversible, system-wide failure recorded by an emergency stop.
type EmergencyCondition struct {
	Reason string
	Cause  error
}

func (e *EmergencyCondition) Error() string {
	if e.Cause == nil {
		return "emergency stop: " + e.Reason
	}
	return fmt.Sprintf("emergency stop: %s: %v", e.Reason, e.Cause)
}

func (e *EmergencyCondition) Unwrap() error { return e.Cause }

// TaskPanicError is delivered through a task handle when the task panicked.
type TaskPanicError struct {
	Value any
	Stack chord.StackTrace
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// panicError converts a recovered value into an error.
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}
