// Package tally reports orchestrator metrics to a uber-go/tally scope.
package tally

import (
	"time"

	"github.com/Swind/go-loop-runner/core"
	tallyv4 "github.com/uber-go/tally/v4"
)

// Metric names, relative to the reporter's scope.
const (
	TaskDuration  = "task_duration"
	TaskFailure   = "task_failure"
	TaskRejected  = "task_rejected"
	QueueDepth    = "queue_depth"
	RoleIteration = "role_iteration"
	RoleFailure   = "role_failure"
	EmergencyStop = "emergency_stop"
)

// Reporter implements core.Metrics on a tally.Scope.
type Reporter struct {
	scope tallyv4.Scope
}

var _ core.Metrics = (*Reporter)(nil)

// NewReporter creates a Reporter emitting into scope. A nil scope discards everything.
func NewReporter(scope tallyv4.Scope) *Reporter {
	if scope == nil {
		scope = tallyv4.NoopScope
	}
	return &Reporter{scope: scope}
}

func (r *Reporter) RecordTaskDuration(orchestrator string, duration time.Duration) {
	r.orchestrator(orchestrator).Timer(TaskDuration).Record(duration)
}

func (r *Reporter) RecordTaskFailure(orchestrator string, panicked bool) {
	kind := "error"
	if panicked {
		kind = "panic"
	}
	r.scope.Tagged(map[string]string{
		"orchestrator": orchestrator,
		"kind":         kind,
	}).Counter(TaskFailure).Inc(1)
}

func (r *Reporter) RecordTaskRejected(orchestrator string, reason string) {
	r.scope.Tagged(map[string]string{
		"orchestrator": orchestrator,
		"reason":       reason,
	}).Counter(TaskRejected).Inc(1)
}

func (r *Reporter) RecordQueueDepth(orchestrator string, depth int) {
	r.orchestrator(orchestrator).Gauge(QueueDepth).Update(float64(depth))
}

func (r *Reporter) RecordIteration(role core.Role, thread string, duration time.Duration) {
	r.scope.Tagged(map[string]string{
		"role":   role.String(),
		"thread": thread,
	}).Timer(RoleIteration).Record(duration)
}

func (r *Reporter) RecordRoleFailure(role core.Role, thread string, policy core.FailurePolicy) {
	r.scope.Tagged(map[string]string{
		"role":   role.String(),
		"thread": thread,
		"policy": policy.String(),
	}).Counter(RoleFailure).Inc(1)
}

func (r *Reporter) RecordEmergencyStop(orchestrator string) {
	r.orchestrator(orchestrator).Counter(EmergencyStop).Inc(1)
}

func (r *Reporter) orchestrator(name string) tallyv4.Scope {
	return r.scope.Tagged(map[string]string{"orchestrator": name})
}
