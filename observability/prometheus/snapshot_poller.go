package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-loop-runner/core"
	"github.com/Swind/go-loop-runner/timing"
	prom "github.com/prometheus/client_golang/prometheus"
)

// OrchestratorSnapshotProvider provides current orchestrator stats snapshots.
type OrchestratorSnapshotProvider interface {
	Stats() core.OrchestratorStats
}

// SnapshotPoller periodically exports orchestrator Stats() snapshots and timer readings
// into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	orchestratorsMu sync.RWMutex
	orchestrators   map[string]OrchestratorSnapshotProvider

	timersMu sync.RWMutex
	timers   map[string]timing.TimeSource

	orchState     *prom.GaugeVec
	orchEmergency *prom.GaugeVec
	orchQueued    *prom.GaugeVec
	orchActive    *prom.GaugeVec
	orchCompleted *prom.GaugeVec
	orchFailed    *prom.GaugeVec
	orchRejected  *prom.GaugeVec
	orchWorkers   *prom.GaugeVec

	threadRunning    *prom.GaugeVec
	threadIterations *prom.GaugeVec
	threadFailures   *prom.GaugeVec

	timerElapsed     *prom.GaugeVec
	timerDelta       *prom.GaugeVec
	timerAccumulated *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: defaultNamespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:      interval,
		orchestrators: make(map[string]OrchestratorSnapshotProvider),
		timers:        make(map[string]timing.TimeSource),

		orchState:     gauge("orchestrator_state", "Lifecycle state (0=created, 1=running, 2=stop_requested, 3=emergency_stop, 4=stopped).", "orchestrator"),
		orchEmergency: gauge("orchestrator_emergency", "Emergency flag (1=emergency stop happened).", "orchestrator"),
		orchQueued:    gauge("orchestrator_queued", "Queued tasks per orchestrator.", "orchestrator"),
		orchActive:    gauge("orchestrator_active", "Executing tasks per orchestrator.", "orchestrator"),
		orchCompleted: gauge("orchestrator_completed_total", "Completed task count snapshot.", "orchestrator"),
		orchFailed:    gauge("orchestrator_failed_total", "Failed task count snapshot.", "orchestrator"),
		orchRejected:  gauge("orchestrator_rejected_total", "Rejected task count snapshot.", "orchestrator"),
		orchWorkers:   gauge("orchestrator_workers", "Worker pool size.", "orchestrator"),

		threadRunning:    gauge("thread_running", "Managed goroutine running state (1=running, 0=exited).", "orchestrator", "thread", "role"),
		threadIterations: gauge("thread_iterations_total", "Iterations or tasks executed by a managed goroutine.", "orchestrator", "thread", "role"),
		threadFailures:   gauge("thread_failures_total", "Failed iterations or tasks of a managed goroutine.", "orchestrator", "thread", "role"),

		timerElapsed:     gauge("timer_elapsed_seconds", "Seconds elapsed since the timer was reset.", "timer"),
		timerDelta:       gauge("timer_delta_seconds", "Seconds between the last two frames.", "timer"),
		timerAccumulated: gauge("timer_accumulated_seconds", "Seconds not yet consumed by fixed steps.", "timer"),
	}

	for _, g := range []**prom.GaugeVec{
		&p.orchState, &p.orchEmergency, &p.orchQueued, &p.orchActive,
		&p.orchCompleted, &p.orchFailed, &p.orchRejected, &p.orchWorkers,
		&p.threadRunning, &p.threadIterations, &p.threadFailures,
		&p.timerElapsed, &p.timerDelta, &p.timerAccumulated,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// AddOrchestrator adds or replaces an orchestrator snapshot provider by name.
func (p *SnapshotPoller) AddOrchestrator(name string, provider OrchestratorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "orchestrator")
	p.orchestratorsMu.Lock()
	p.orchestrators[name] = provider
	p.orchestratorsMu.Unlock()
}

// AddTimer adds or replaces a time source by name.
func (p *SnapshotPoller) AddTimer(name string, ts timing.TimeSource) {
	if p == nil || ts == nil {
		return
	}
	name = normalizeLabel(name, "timer")
	p.timersMu.Lock()
	p.timers[name] = ts
	p.timersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling and takes a final snapshot; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	p.collectOnce()

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.orchestratorsMu.RLock()
	for name, provider := range p.orchestrators {
		stats := provider.Stats()
		p.orchState.WithLabelValues(name).Set(float64(stats.State))
		p.orchEmergency.WithLabelValues(name).Set(boolGauge(stats.Emergency))
		p.orchQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.orchActive.WithLabelValues(name).Set(float64(stats.Active))
		p.orchCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.orchFailed.WithLabelValues(name).Set(float64(stats.Failed))
		p.orchRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.orchWorkers.WithLabelValues(name).Set(float64(stats.Workers))

		for _, th := range stats.Threads {
			role := th.Role.String()
			p.threadRunning.WithLabelValues(name, th.Name, role).Set(boolGauge(th.Running))
			p.threadIterations.WithLabelValues(name, th.Name, role).Set(float64(th.Iterations))
			p.threadFailures.WithLabelValues(name, th.Name, role).Set(float64(th.Failures))
		}
	}
	p.orchestratorsMu.RUnlock()

	p.timersMu.RLock()
	for name, ts := range p.timers {
		p.timerElapsed.WithLabelValues(name).Set(ts.ElapsedTime())
		p.timerDelta.WithLabelValues(name).Set(ts.DeltaTime())
		p.timerAccumulated.WithLabelValues(name).Set(ts.AccumulatedTime())
	}
	p.timersMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
