package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ManagedThread is a goroutine owned by an Orchestrator: a role loop or a pool worker.
// Entries live until the orchestrator's stop sequence has joined them.
type ManagedThread struct {
	id        uuid.UUID
	name      string
	role      Role
	policy    FailurePolicy
	interval  time.Duration
	index     int
	startedAt time.Time

	running    atomic.Bool
	iterations atomic.Uint64
	failures   atomic.Uint64
}

func newManagedThread(name string, role Role, policy FailurePolicy) *ManagedThread {
	return &ManagedThread{
		id:        uuid.New(),
		name:      name,
		role:      role,
		policy:    policy,
		startedAt: time.Now(),
	}
}

func (t *ManagedThread) ID() uuid.UUID         { return t.id }
func (t *ManagedThread) Name() string          { return t.name }
func (t *ManagedThread) Role() Role            { return t.role }
func (t *ManagedThread) Policy() FailurePolicy { return t.policy }
func (t *ManagedThread) Running() bool         { return t.running.Load() }

// Iterations counts loop iterations for role loops and executed tasks for workers.
func (t *ManagedThread) Iterations() uint64 { return t.iterations.Load() }

// Failures counts failed iterations or failed tasks.
func (t *ManagedThread) Failures() uint64 { return t.failures.Load() }

// Stats returns a snapshot of the thread.
func (t *ManagedThread) Stats() ThreadStats {
	return ThreadStats{
		ID:         t.id,
		Name:       t.name,
		Role:       t.role,
		Policy:     t.policy,
		Running:    t.running.Load(),
		Iterations: t.iterations.Load(),
		Failures:   t.failures.Load(),
		StartedAt:  t.startedAt,
	}
}

// =============================================================================
// Context Helper
// =============================================================================

type managedThreadKeyType struct{}

var managedThreadKey managedThreadKeyType

func withThread(ctx context.Context, t *ManagedThread) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, managedThreadKey, t)
}

// CurrentThread returns the managed goroutine running the body or task that received ctx.
func CurrentThread(ctx context.Context) *ManagedThread {
	if v := ctx.Value(managedThreadKey); v != nil {
		return v.(*ManagedThread)
	}
	return nil
}
