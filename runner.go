package looprunner

import (
	"context"
	"sync"

	"github.com/Swind/go-loop-runner/core"
	"github.com/Swind/go-loop-runner/loop"
	"github.com/Swind/go-loop-runner/timing"
)

// Options configures New. Zero values select defaults.
type Options struct {
	// Name labels logs and metrics. Defaults to "looprunner".
	Name string

	// Workers is the worker pool size. Zero selects core.DefaultWorkerCount().
	Workers int

	// TickRate is the number of fixed simulation steps per second. Defaults to 60.
	TickRate float64

	// MaxStepsPerFrame caps catch-up steps per frame. Zero means unlimited.
	MaxStepsPerFrame int

	// Clock drives the frame timer. Defaults to timing.RealClock.
	Clock timing.Clock

	// Platform defaults to loop.HeadlessPlatform.
	Platform Platform

	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler
}

// Runner wires an Orchestrator, a Timer and a Loop together.
// Register loops with Simulation, IO and Step, then call Run once.
type Runner struct {
	orch    *core.Orchestrator
	timer   *timing.Timer
	options Options

	mu          sync.Mutex
	roles       []loop.RoleSpec
	step        StepFunc
	mainOptions []RoleOption
	ran         bool
}

const defaultRunnerName = "looprunner"

// New creates a Runner. The orchestrator is created but not started.
func New(opts Options) (*Runner, error) {
	if opts.Name == "" {
		opts.Name = defaultRunnerName
	}
	if opts.TickRate == 0 {
		opts.TickRate = 60
	}
	if opts.TickRate < 0 {
		return nil, core.NewConfigurationError("TickRate", "must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = core.NewNoOpLogger()
	}

	orch, err := core.NewOrchestrator(&core.OrchestratorConfig{
		Name:         opts.Name,
		Workers:      opts.Workers,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		PanicHandler: opts.PanicHandler,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		orch:    orch,
		timer:   timing.NewTimer(opts.Clock),
		options: opts,
	}, nil
}

// Orchestrator returns the orchestrator, e.g. to Submit tasks or stop the run.
func (r *Runner) Orchestrator() *Orchestrator { return r.orch }

// Timer returns the frame timer.
func (r *Runner) Timer() *timing.Timer { return r.timer }

// Simulation registers a simulation loop started by Run.
func (r *Runner) Simulation(body LoopBody, opts ...RoleOption) {
	r.addRole(core.RoleSimulation, body, opts)
}

// IO registers an I/O loop started by Run.
func (r *Runner) IO(body LoopBody, opts ...RoleOption) {
	r.addRole(core.RoleIO, body, opts)
}

// Step sets the fixed-step callback of the main loop.
func (r *Runner) Step(fn StepFunc) {
	r.mu.Lock()
	r.step = fn
	r.mu.Unlock()
}

// Main configures the main loop (name, failure policy, pacing).
func (r *Runner) Main(opts ...RoleOption) {
	r.mu.Lock()
	r.mainOptions = append(r.mainOptions, opts...)
	r.mu.Unlock()
}

func (r *Runner) addRole(role Role, body LoopBody, opts []RoleOption) {
	r.mu.Lock()
	r.roles = append(r.roles, loop.RoleSpec{Role: role, Body: body, Options: opts})
	r.mu.Unlock()
}

// Run executes the loops until ctx is done, the platform closes or the orchestrator
// stops. It returns the *core.EmergencyCondition if the run ended in an emergency.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return core.ErrOrchestratorStopped
	}
	r.ran = true
	cfg := loop.Config{
		FixedTimestep:    timing.Hz(r.options.TickRate),
		MaxStepsPerFrame: r.options.MaxStepsPerFrame,
		Roles:            r.roles,
		MainOptions:      r.mainOptions,
		Platform:         r.options.Platform,
		Step:             r.step,
		Logger:           r.options.Logger,
	}
	r.mu.Unlock()

	l, err := loop.New(r.orch, r.timer, cfg)
	if err != nil {
		r.orch.StopAll()
		return err
	}
	return l.Run(ctx)
}
