package core

import (
	"context"
	"fmt"
	"time"
)

// Role is the logical category of a long-running goroutine.
// It selects a default failure policy; it is not a scheduling priority.
type Role int

const (
	RoleMain Role = iota
	RoleSimulation
	RoleIO

	// RoleWorker tags the generic task workers. It is never passed to StartRoleThread.
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleSimulation:
		return "simulation"
	case RoleIO:
		return "io"
	case RoleWorker:
		return "worker"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// FailurePolicy decides what a failed role-loop iteration does.
type FailurePolicy int

const (
	// PolicyLogAndContinue logs the failure and runs the next iteration.
	PolicyLogAndContinue FailurePolicy = iota

	// PolicyEscalate triggers an emergency stop and ends the loop.
	PolicyEscalate
)

func (p FailurePolicy) String() string {
	switch p {
	case PolicyLogAndContinue:
		return "log_and_continue"
	case PolicyEscalate:
		return "escalate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// DefaultFailurePolicy returns Escalate for RoleMain and LogAndContinue otherwise.
func DefaultFailurePolicy(role Role) FailurePolicy {
	if role == RoleMain {
		return PolicyEscalate
	}
	return PolicyLogAndContinue
}

// LoopBody is one iteration of a role loop. A non-nil error other than ErrLoopDone
// is an iteration failure handled according to the loop's FailurePolicy.
type LoopBody func(ctx context.Context) error

// =============================================================================
// Role options
// =============================================================================

type roleOptions struct {
	name     string
	policy   FailurePolicy
	interval time.Duration
}

// RoleOption configures StartRoleThread and RunRoleLoop.
type RoleOption func(*roleOptions)

// WithName sets the thread name used in logs, stats and Pending().
func WithName(name string) RoleOption {
	return func(o *roleOptions) { o.name = name }
}

// WithFailurePolicy overrides DefaultFailurePolicy for this loop.
func WithFailurePolicy(p FailurePolicy) RoleOption {
	return func(o *roleOptions) { o.policy = p }
}

// WithTickInterval paces iterations: the next iteration starts no earlier than d after the
// previous one started. Zero runs iterations back to back.
func WithTickInterval(d time.Duration) RoleOption {
	return func(o *roleOptions) { o.interval = d }
}

func buildRoleOptions(role Role, opts []RoleOption) roleOptions {
	o := roleOptions{
		name:   role.String(),
		policy: DefaultFailurePolicy(role),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
