package core

import (
	"context"
	"runtime"
	"time"

	"github.com/sharnoff/chord"
)

// =============================================================================
// PanicHandler: Interface for handling panics in role loops and tasks
// =============================================================================

// PanicHandler is called when a role-loop iteration or a worker task panics.
// The panic has already been recovered; the handler only observes it.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a body panics.
	//
	// Parameters:
	// - ctx: The context the body was running with
	// - thread: The name of the managed goroutine where the panic occurred
	// - role: The role of that goroutine (RoleWorker for pool workers)
	// - panicInfo: The panic value recovered from the body
	// - stack: The stack trace captured at recovery
	HandlePanic(ctx context.Context, thread string, role Role, panicInfo any, stack chord.StackTrace)
}

// LoggingPanicHandler reports panics through a Logger at error level.
type LoggingPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and its stack trace.
func (h *LoggingPanicHandler) HandlePanic(ctx context.Context, thread string, role Role, panicInfo any, stack chord.StackTrace) {
	if h == nil || h.Logger == nil {
		return
	}
	h.Logger.Error("recovered panic",
		F("thread", thread),
		F("role", role.String()),
		F("panic", panicInfo),
		F("stack", stack.String()),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting orchestrator metrics.
// Implementations can send metrics to monitoring systems (Prometheus, tally, etc.).
//
// Methods should be non-blocking and fast; they are called from role loops and workers.
type Metrics interface {
	// RecordTaskDuration records how long a worker task took to execute.
	RecordTaskDuration(orchestrator string, duration time.Duration)

	// RecordTaskFailure records a task that returned an error or panicked.
	RecordTaskFailure(orchestrator string, panicked bool)

	// RecordTaskRejected records that a task was rejected (e.g., during shutdown).
	RecordTaskRejected(orchestrator string, reason string)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(orchestrator string, depth int)

	// RecordIteration records one role-loop iteration and its duration.
	RecordIteration(role Role, thread string, duration time.Duration)

	// RecordRoleFailure records a failed role-loop iteration.
	RecordRoleFailure(role Role, thread string, policy FailurePolicy)

	// RecordEmergencyStop records the single emergency transition of an orchestrator.
	RecordEmergencyStop(orchestrator string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(orchestrator string, duration time.Duration)   {}
func (m *NilMetrics) RecordTaskFailure(orchestrator string, panicked bool)             {}
func (m *NilMetrics) RecordTaskRejected(orchestrator string, reason string)            {}
func (m *NilMetrics) RecordQueueDepth(orchestrator string, depth int)                  {}
func (m *NilMetrics) RecordIteration(role Role, thread string, duration time.Duration) {}
func (m *NilMetrics) RecordRoleFailure(role Role, thread string, policy FailurePolicy) {}
func (m *NilMetrics) RecordEmergencyStop(orchestrator string)                          {}

// =============================================================================
// OrchestratorConfig: Configuration for Orchestrator
// =============================================================================

const (
	defaultOrchestratorName = "orchestrator"
	fallbackWorkerCount     = 2
)

// OrchestratorConfig holds configuration options for Orchestrator.
// All handlers are optional; if not provided, default implementations will be used.
type OrchestratorConfig struct {
	// Name labels logs and metrics. Defaults to "orchestrator".
	Name string

	// Workers is the size of the task worker pool. Zero selects DefaultWorkerCount().
	Workers int

	// HistoryCapacity bounds the RecentTasks ring buffer. Zero selects the default (100).
	HistoryCapacity int

	// Logger receives lifecycle and failure logs. Defaults to NoOpLogger.
	Logger Logger

	// Metrics records orchestrator metrics. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler observes recovered panics. Defaults to LoggingPanicHandler on Logger.
	PanicHandler PanicHandler
}

// DefaultOrchestratorConfig returns a config with default handlers.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		Name:    defaultOrchestratorName,
		Logger:  NewNoOpLogger(),
		Metrics: &NilMetrics{},
	}
}

// Validate reports the first invalid field as a *ConfigurationError.
func (c *OrchestratorConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.Workers < 0 {
		return NewConfigurationError("Workers", "must not be negative")
	}
	if c.HistoryCapacity < 0 {
		return NewConfigurationError("HistoryCapacity", "must not be negative")
	}
	return nil
}

// DefaultWorkerCount is the number of usable CPUs, or 2 if that cannot be determined.
func DefaultWorkerCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return fallbackWorkerCount
}
