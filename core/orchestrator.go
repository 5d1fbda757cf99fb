package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sharnoff/chord"
	"golang.org/x/exp/slices"
)

// Orchestrator owns the role loops and the task worker pool of one process and is the
// single authority deciding when they stop.
//
// Role loops (StartRoleThread, RunRoleLoop) repeat their body while ShouldContinue()
// is true. Workers drain a shared FIFO TaskQueue filled by Enqueue and Submit.
// StopAll and EmergencyStop close the queue, flip the running flag and join every
// managed goroutine; both are idempotent and may be called from any goroutine that is
// not itself managed by the orchestrator. From inside a role body or a task use
// RequestStop or RequestEmergencyStop instead.
type Orchestrator struct {
	name         string
	workers      int
	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler

	state          atomic.Int32
	running        atomic.Bool
	emergency      atomic.Bool
	emergencyCause atomic.Pointer[EmergencyCondition]

	queue     *TaskQueue
	history   *executionHistory
	active    atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	// ctx is canceled when shutdown begins; role bodies observe it.
	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool

	group     *chord.TaskGroup
	roleGroup *chord.TaskGroup
	poolGroup *chord.TaskGroup

	threadsMu sync.Mutex
	threads   []*ManagedThread

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewOrchestrator creates an Orchestrator in StateCreated. A nil config uses
// DefaultOrchestratorConfig().
func NewOrchestrator(config *OrchestratorConfig) (*Orchestrator, error) {
	if config == nil {
		config = DefaultOrchestratorConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		name:         config.Name,
		workers:      config.Workers,
		logger:       config.Logger,
		metrics:      config.Metrics,
		panicHandler: config.PanicHandler,
		queue:        NewTaskQueue(),
		history:      newExecutionHistory(config.HistoryCapacity),
		stopped:      make(chan struct{}),
	}

	// Use defaults if not provided
	if o.name == "" {
		o.name = defaultOrchestratorName
	}
	if o.workers == 0 {
		o.workers = DefaultWorkerCount()
	}
	if o.logger == nil {
		o.logger = NewNoOpLogger()
	}
	if o.metrics == nil {
		o.metrics = &NilMetrics{}
	}
	if o.panicHandler == nil {
		o.panicHandler = &LoggingPanicHandler{Logger: o.logger}
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.group = chord.NewTaskGroup(o.name)
	o.roleGroup = o.group.NewSubgroup("roles")
	o.poolGroup = o.group.NewSubgroup("workers")
	o.state.Store(int32(StateCreated))

	return o, nil
}

// Name returns the orchestrator name
func (o *Orchestrator) Name() string { return o.name }

// WorkerCount returns the size of the worker pool
func (o *Orchestrator) WorkerCount() int { return o.workers }

// State returns the current lifecycle state
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// =============================================================================
// Lifecycle
// =============================================================================

// Start moves the orchestrator to StateRunning and spawns the worker pool.
// When ctx is canceled the orchestrator requests a graceful stop; the joins still happen
// in StopAll or Wait. Calling Start on a running orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		if o.State() == StateRunning {
			return nil
		}
		return ErrOrchestratorStopped
	}
	o.running.Store(true)

	for i := range o.workers {
		t := newManagedThread(fmt.Sprintf("worker-%d", i), RoleWorker, PolicyLogAndContinue)
		if err := o.register(t, o.poolGroup); err != nil {
			// A stop raced with Start; the remaining workers are not needed.
			break
		}
		go o.workerLoop(t)
	}

	if ctx != nil {
		o.threadsMu.Lock()
		o.stopParent = context.AfterFunc(ctx, o.RequestStop)
		o.threadsMu.Unlock()
	}

	o.logger.Info("orchestrator started",
		F("orchestrator", o.name),
		F("workers", o.workers),
	)
	return nil
}

// ShouldContinue reports whether loops should keep iterating: running and no emergency.
// It is lock-free and safe to call from any goroutine at any frequency.
func (o *Orchestrator) ShouldContinue() bool {
	return o.running.Load() && !o.emergency.Load()
}

// Emergency reports whether an emergency stop happened.
func (o *Orchestrator) Emergency() bool {
	return o.emergency.Load()
}

// EmergencyCause returns the condition recorded by the emergency stop, or nil.
func (o *Orchestrator) EmergencyCause() error {
	if cond := o.emergencyCause.Load(); cond != nil {
		return cond
	}
	return nil
}

// RequestStop begins a graceful shutdown without waiting for managed goroutines.
func (o *Orchestrator) RequestStop() {
	for {
		s := o.State()
		if s != StateCreated && s != StateRunning {
			return
		}
		if o.state.CompareAndSwap(int32(s), int32(StateStopRequested)) {
			o.logger.Info("stopping all threads gracefully", F("orchestrator", o.name))
			break
		}
	}
	o.signalStop()
}

// RequestEmergencyStop records an emergency and begins shutdown without waiting for
// managed goroutines. It reports whether this call performed the transition.
func (o *Orchestrator) RequestEmergencyStop(reason string) bool {
	return o.triggerEmergency(&EmergencyCondition{Reason: reason})
}

// StopAll closes the task queue, stops all loops and joins every managed goroutine.
// Queued tasks are drained before the workers exit. Concurrent and repeated calls
// block until the single join sequence has completed.
func (o *Orchestrator) StopAll() {
	o.RequestStop()
	o.join()
}

// EmergencyStop records an irreversible emergency and then behaves like StopAll.
func (o *Orchestrator) EmergencyStop() {
	o.triggerEmergency(&EmergencyCondition{Reason: "emergency stop requested"})
	o.join()
}

// Done is closed once the orchestrator reached StateStopped.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.stopped
}

// Wait blocks until shutdown began and every managed goroutine has been joined.
// It does not request a stop by itself.
func (o *Orchestrator) Wait(ctx context.Context) error {
	select {
	case <-o.ctx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	go o.join()

	select {
	case <-o.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the managed goroutines that have not exited yet.
func (o *Orchestrator) Pending() chord.TaskTree {
	return o.group.TaskTree()
}

func (o *Orchestrator) triggerEmergency(cond *EmergencyCondition) bool {
	for {
		s := o.State()
		if s != StateCreated && s != StateRunning {
			return false
		}
		if o.state.CompareAndSwap(int32(s), int32(StateEmergencyStop)) {
			break
		}
	}

	o.emergencyCause.Store(cond)
	o.emergency.Store(true)
	o.metrics.RecordEmergencyStop(o.name)
	o.logger.Error("emergency stop initiated",
		F("orchestrator", o.name),
		F("reason", cond.Error()),
	)
	o.signalStop()
	return true
}

// signalStop wakes every worker and makes ShouldContinue false.
func (o *Orchestrator) signalStop() {
	o.queue.Close()
	o.running.Store(false)
	o.cancel()
}

func (o *Orchestrator) join() {
	o.stopOnce.Do(func() {
		// Serialize with register: after this point no goroutine can be added.
		o.threadsMu.Lock()
		o.threadsMu.Unlock()

		<-o.group.Wait()

		// Tasks accepted before Start was ever called have no worker to run them.
		for {
			item, ok := o.queue.TryPop()
			if !ok {
				break
			}
			o.execute(nil, item)
		}

		o.threadsMu.Lock()
		o.threads = nil
		stopParent := o.stopParent
		o.threadsMu.Unlock()

		if stopParent != nil {
			stopParent()
		}
		o.state.Store(int32(StateStopped))
		o.logger.Info("all threads joined",
			F("orchestrator", o.name),
			F("emergency", o.emergency.Load()),
		)
		close(o.stopped)
	})
}

// =============================================================================
// Role loops
// =============================================================================

// StartRoleThread spawns a goroutine that calls body while ShouldContinue() is true.
// It returns immediately. The failure policy defaults to DefaultFailurePolicy(role).
func (o *Orchestrator) StartRoleThread(role Role, body LoopBody, opts ...RoleOption) error {
	t, err := o.newRoleThread(role, body, opts)
	if err != nil {
		return err
	}
	go func() {
		_ = o.runRole(o.ctx, t, body)
	}()
	return nil
}

// RunRoleLoop runs a role loop on the calling goroutine and returns when it ends.
// The loop ends when ShouldContinue() turns false, ctx is done, or the body returns
// ErrLoopDone. If the loop escalated a failure the returned error is the
// *EmergencyCondition it raised.
func (o *Orchestrator) RunRoleLoop(ctx context.Context, role Role, body LoopBody, opts ...RoleOption) error {
	t, err := o.newRoleThread(role, body, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	return o.runRole(ctx, t, body)
}

func (o *Orchestrator) newRoleThread(role Role, body LoopBody, opts []RoleOption) (*ManagedThread, error) {
	if body == nil {
		return nil, NewConfigurationError("body", "must not be nil")
	}
	if role == RoleWorker {
		return nil, NewConfigurationError("role", "worker role is reserved for the task pool")
	}
	ro := buildRoleOptions(role, opts)
	if ro.interval < 0 {
		return nil, NewConfigurationError("tick interval", "must not be negative")
	}

	t := newManagedThread(ro.name, role, ro.policy)
	t.interval = ro.interval
	if err := o.register(t, o.roleGroup); err != nil {
		return nil, err
	}
	return t, nil
}

func (o *Orchestrator) runRole(ctx context.Context, t *ManagedThread, body LoopBody) error {
	defer o.unregister(t, o.roleGroup)

	ctx = withThread(ctx, t)
	o.logger.Info("role loop started",
		F("thread", t.name),
		F("role", t.role.String()),
		F("policy", t.policy.String()),
	)

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for o.ShouldContinue() && ctx.Err() == nil {
		iteration := t.iterations.Add(1)
		start := time.Now()
		err := o.runIteration(ctx, t, iteration, body)
		o.metrics.RecordIteration(t.role, t.name, time.Since(start))

		if errors.Is(err, ErrLoopDone) {
			break
		}
		if err != nil {
			if cond := o.handleRoleFailure(t, err); cond != nil {
				return cond
			}
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
			}
		}
	}

	o.logger.Info("role loop exited",
		F("thread", t.name),
		F("role", t.role.String()),
		F("iterations", t.iterations.Load()),
	)
	return nil
}

func (o *Orchestrator) runIteration(ctx context.Context, t *ManagedThread, iteration uint64, body LoopBody) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := chord.GetStackTrace(nil, 1)
			o.panicHandler.HandlePanic(ctx, t.name, t.role, rec, stack)
			err = &RoleLoopFailure{
				Role:      t.role,
				Thread:    t.name,
				Iteration: iteration,
				Cause:     panicError(rec),
				Stack:     &stack,
			}
		}
	}()

	if err := body(ctx); err != nil {
		if errors.Is(err, ErrLoopDone) {
			return err
		}
		return &RoleLoopFailure{
			Role:      t.role,
			Thread:    t.name,
			Iteration: iteration,
			Cause:     err,
		}
	}
	return nil
}

// handleRoleFailure applies the thread's policy. It returns the raised condition when
// the loop must exit.
func (o *Orchestrator) handleRoleFailure(t *ManagedThread, failure error) *EmergencyCondition {
	t.failures.Add(1)
	o.metrics.RecordRoleFailure(t.role, t.name, t.policy)

	if t.policy != PolicyEscalate {
		o.logger.Warn("role loop iteration failed",
			F("thread", t.name),
			F("role", t.role.String()),
			F("error", failure),
		)
		return nil
	}

	o.logger.Error("role loop failed, escalating",
		F("thread", t.name),
		F("role", t.role.String()),
		F("error", failure),
	)
	cond := &EmergencyCondition{
		Reason: fmt.Sprintf("%s loop %q failed", t.role, t.name),
		Cause:  failure,
	}
	if o.triggerEmergency(cond) {
		// The failing loop is still registered; join once it has returned.
		go o.join()
	}
	return cond
}

// =============================================================================
// Worker pool
// =============================================================================

func (o *Orchestrator) workerLoop(t *ManagedThread) {
	defer o.unregister(t, o.poolGroup)

	for {
		item, ok := o.queue.WaitPop()
		if !ok {
			return
		}
		o.metrics.RecordQueueDepth(o.name, o.queue.Len())
		o.execute(t, item)
	}
}

// execute runs one task. t is nil when the stopping goroutine drains leftovers.
func (o *Orchestrator) execute(t *ManagedThread, item TaskItem) {
	threadName := "stopper"
	workerID := -1
	if t != nil {
		threadName = t.name
		workerID = t.index
	}

	o.active.Add(1)
	ctx := withThread(context.WithoutCancel(o.ctx), t)
	startedAt := time.Now()

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = &TaskPanicError{Value: rec, Stack: chord.GetStackTrace(nil, 1)}
			}
		}()
		err = item.Task(ctx)
	}()

	finishedAt := time.Now()
	o.active.Add(-1)

	var panicErr *TaskPanicError
	panicked := errors.As(err, &panicErr)
	if t != nil {
		t.iterations.Add(1)
	}
	if err != nil {
		if t != nil {
			t.failures.Add(1)
		}
		o.failed.Add(1)
		o.metrics.RecordTaskFailure(o.name, panicked)
		if panicked {
			o.panicHandler.HandlePanic(ctx, threadName, RoleWorker, panicErr.Value, panicErr.Stack)
		}
		o.logger.Warn("task failed",
			F("task", item.Name),
			F("thread", threadName),
			F("error", err),
		)
	}
	o.completed.Add(1)
	o.metrics.RecordTaskDuration(o.name, finishedAt.Sub(startedAt))

	o.history.Add(TaskExecutionRecord{
		TaskID:     item.ID,
		Name:       item.Name,
		Worker:     workerID,
		EnqueuedAt: item.EnqueuedAt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Failed:     err != nil,
		Panicked:   panicked,
	})
}

func (o *Orchestrator) push(name string, task Task) error {
	if s := o.State(); s != StateCreated && s != StateRunning {
		return o.reject(name)
	}

	item := TaskItem{
		ID:         uuid.New(),
		Name:       name,
		Task:       task,
		EnqueuedAt: time.Now(),
	}
	if err := o.queue.Push(item); err != nil {
		return o.reject(name)
	}
	o.metrics.RecordQueueDepth(o.name, o.queue.Len())
	return nil
}

func (o *Orchestrator) reject(name string) error {
	o.rejected.Add(1)
	o.metrics.RecordTaskRejected(o.name, "shutdown")
	o.logger.Debug("task rejected", F("task", name), F("state", o.State().String()))
	return ErrQueueClosed
}

// =============================================================================
// Managed goroutine bookkeeping
// =============================================================================

func (o *Orchestrator) register(t *ManagedThread, group *chord.TaskGroup) error {
	o.threadsMu.Lock()
	defer o.threadsMu.Unlock()

	switch o.State() {
	case StateCreated:
		return ErrNotStarted
	case StateRunning:
	default:
		return ErrOrchestratorStopped
	}

	t.index = len(o.threads)
	t.running.Store(true)
	o.threads = append(o.threads, t)
	group.Add(t.name)
	return nil
}

func (o *Orchestrator) unregister(t *ManagedThread, group *chord.TaskGroup) {
	t.running.Store(false)
	group.Done(t.name)
}

// =============================================================================
// Observability
// =============================================================================

// QueuedTaskCount returns the number of tasks waiting in the queue
func (o *Orchestrator) QueuedTaskCount() int { return o.queue.Len() }

// ActiveTaskCount returns the number of tasks currently executing
func (o *Orchestrator) ActiveTaskCount() int { return int(o.active.Load()) }

// Threads returns a snapshot of the managed goroutines in start order.
func (o *Orchestrator) Threads() []ThreadStats {
	o.threadsMu.Lock()
	threads := slices.Clone(o.threads)
	o.threadsMu.Unlock()

	out := make([]ThreadStats, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.Stats())
	}
	return out
}

// Thread returns the snapshot of the first managed goroutine called name.
func (o *Orchestrator) Thread(name string) (ThreadStats, bool) {
	threads := o.Threads()
	idx := slices.IndexFunc(threads, func(ts ThreadStats) bool { return ts.Name == name })
	if idx < 0 {
		return ThreadStats{}, false
	}
	return threads[idx], true
}

// Stats returns a point-in-time snapshot of the orchestrator.
func (o *Orchestrator) Stats() OrchestratorStats {
	return OrchestratorStats{
		Name:      o.name,
		State:     o.State(),
		Emergency: o.emergency.Load(),
		Workers:   o.workers,
		Queued:    o.queue.Len(),
		Active:    int(o.active.Load()),
		Completed: o.completed.Load(),
		Failed:    o.failed.Load(),
		Rejected:  o.rejected.Load(),
		Threads:   o.Threads(),
	}
}

// RecentTasks returns up to limit completed task records, newest first.
func (o *Orchestrator) RecentTasks(limit int) []TaskExecutionRecord {
	return o.history.Recent(limit)
}
