// Package loop runs a fixed-timestep main loop on top of a core.Orchestrator.
//
// Each frame polls the platform, advances the TimeSource, simulates as many fixed steps
// as the accumulated time allows and presents the result. Simulation and I/O role loops
// started through the orchestrator run at their own cadence meanwhile.
package loop

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/Swind/go-loop-runner/core"
	"github.com/Swind/go-loop-runner/timing"
)

// DefaultFixedTimestep is 60 steps per second.
var DefaultFixedTimestep = timing.Hz(60)

// StepFunc advances the simulation by dt seconds.
type StepFunc func(ctx context.Context, dt float64) error

// RoleSpec describes a role loop started alongside the main loop.
type RoleSpec struct {
	Role    core.Role
	Body    core.LoopBody
	Options []core.RoleOption
}

// Config configures a Loop.
type Config struct {
	// FixedTimestep is the simulation step in seconds. Must be positive.
	FixedTimestep float64

	// MaxStepsPerFrame caps the fixed steps simulated in one frame. Accumulated time
	// beyond the cap is dropped. Zero means unlimited.
	MaxStepsPerFrame int

	// Roles are started through the orchestrator before the main loop begins.
	// RoleMain is not allowed here; the main loop runs on the goroutine calling Run.
	Roles []RoleSpec

	// MainOptions configure the main role loop (name, failure policy, tick interval).
	MainOptions []core.RoleOption

	// Platform defaults to HeadlessPlatform.
	Platform Platform

	// Step is called once per fixed step. Optional.
	Step StepFunc

	// Logger defaults to core.NoOpLogger.
	Logger core.Logger
}

// DefaultConfig returns a headless config stepping at 60 Hz.
func DefaultConfig() Config {
	return Config{
		FixedTimestep: DefaultFixedTimestep,
		Platform:      HeadlessPlatform{},
		Logger:        core.NewNoOpLogger(),
	}
}

// Validate reports the first invalid field as a *core.ConfigurationError.
func (c *Config) Validate() error {
	if !(c.FixedTimestep > 0) || math.IsInf(c.FixedTimestep, 0) {
		return core.NewConfigurationError("FixedTimestep", "must be a positive number of seconds")
	}
	if c.MaxStepsPerFrame < 0 {
		return core.NewConfigurationError("MaxStepsPerFrame", "must not be negative")
	}
	for _, spec := range c.Roles {
		if spec.Role == core.RoleMain {
			return core.NewConfigurationError("Roles", "main role runs on the calling goroutine")
		}
		if spec.Body == nil {
			return core.NewConfigurationError("Roles", "role body must not be nil")
		}
	}
	return nil
}

// Loop is the execution loop. It is not safe to Run more than once.
type Loop struct {
	orch   *core.Orchestrator
	timer  timing.TimeSource
	config Config
	logger core.Logger

	frames  atomic.Uint64
	steps   atomic.Uint64
	dropped atomic.Uint64
}

// New creates a Loop driving orch with timer. A nil timer uses timing.NewTimer(nil).
func New(orch *core.Orchestrator, timer timing.TimeSource, config Config) (*Loop, error) {
	if orch == nil {
		return nil, core.NewConfigurationError("orchestrator", "must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if timer == nil {
		timer = timing.NewTimer(nil)
	}
	if config.Platform == nil {
		config.Platform = HeadlessPlatform{}
	}
	if config.Logger == nil {
		config.Logger = core.NewNoOpLogger()
	}

	return &Loop{
		orch:   orch,
		timer:  timer,
		config: config,
		logger: config.Logger,
	}, nil
}

// Run starts the orchestrator and the configured role loops, then runs the main loop on
// the calling goroutine until the orchestrator stops, ctx is done or the platform asks to
// close. Every managed goroutine is joined before Run returns.
//
// The returned error is the *core.EmergencyCondition when the run ended in an emergency
// stop, or a start-up error.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.orch.Start(ctx); err != nil {
		return err
	}

	l.logger.Info("starting main, simulation and io loops",
		core.F("roles", len(l.config.Roles)),
		core.F("fixed_timestep", l.config.FixedTimestep),
	)

	for _, spec := range l.config.Roles {
		if err := l.orch.StartRoleThread(spec.Role, spec.Body, spec.Options...); err != nil {
			l.orch.StopAll()
			return err
		}
	}

	l.timer.Reset()
	opts := append([]core.RoleOption{core.WithName(core.RoleMain.String())}, l.config.MainOptions...)
	err := l.orch.RunRoleLoop(ctx, core.RoleMain, l.frame, opts...)

	l.orch.StopAll()
	l.logger.Info("all loops joined",
		core.F("frames", l.frames.Load()),
		core.F("steps", l.steps.Load()),
		core.F("dropped_steps", l.dropped.Load()),
	)

	if err != nil {
		return err
	}
	return l.orch.EmergencyCause()
}

// frame is one iteration of the main loop.
func (l *Loop) frame(ctx context.Context) error {
	platform := l.config.Platform
	if err := platform.PollEvents(ctx); err != nil {
		return err
	}
	if platform.ShouldClose() {
		l.logger.Info("platform requested close")
		l.orch.RequestStop()
		return core.ErrLoopDone
	}

	l.timer.Update()
	dt := l.config.FixedTimestep

	steps := 0
	for l.timer.AccumulatedTime() >= dt {
		if limit := l.config.MaxStepsPerFrame; limit > 0 && steps >= limit {
			l.dropExcess(dt)
			break
		}
		l.timer.ConsumeAccumulatedTime(dt)
		if l.config.Step != nil {
			if err := l.config.Step(ctx, dt); err != nil {
				return err
			}
		}
		steps++
		l.steps.Add(1)
	}

	info := FrameInfo{
		Frame:   l.frames.Add(1),
		Delta:   l.timer.DeltaTime(),
		Elapsed: l.timer.ElapsedTime(),
		Steps:   steps,
		Alpha:   math.Min(l.timer.AccumulatedTime()/dt, math.Nextafter(1, 0)),
	}
	return platform.Present(ctx, info)
}

// dropExcess discards whole steps the simulation could not catch up with, keeping the
// fractional remainder.
func (l *Loop) dropExcess(dt float64) {
	acc := l.timer.AccumulatedTime()
	whole := math.Floor(acc / dt)
	if whole < 1 {
		return
	}
	l.timer.ConsumeAccumulatedTime(whole * dt)
	l.dropped.Add(uint64(whole))
	l.logger.Warn("simulation falling behind, dropping steps",
		core.F("dropped", uint64(whole)),
		core.F("max_steps_per_frame", l.config.MaxStepsPerFrame),
	)
}

// Frames returns the number of presented frames.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// Steps returns the number of fixed steps simulated.
func (l *Loop) Steps() uint64 { return l.steps.Load() }

// DroppedSteps returns the number of whole steps discarded by MaxStepsPerFrame.
func (l *Loop) DroppedSteps() uint64 { return l.dropped.Load() }

// Timer returns the TimeSource driving the loop.
func (l *Loop) Timer() timing.TimeSource { return l.timer }
