package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Swind/go-loop-runner/core"
)

// demo holds the workload driven by the run command.
type demo struct {
	orch      *core.Orchestrator
	logger    core.Logger
	failAfter uint64
	reportN   uint64

	steps    atomic.Uint64
	simTicks atomic.Uint64
	ioPolls  atomic.Uint64
	reports  atomic.Uint64
}

// step is the fixed-timestep callback of the main loop.
func (d *demo) step(ctx context.Context, dt float64) error {
	n := d.steps.Add(1)
	if d.failAfter > 0 && n >= d.failAfter {
		return fmt.Errorf("simulated render failure after %d steps", n)
	}
	return nil
}

func (d *demo) simulate(ctx context.Context) error {
	d.simTicks.Add(1)
	return nil
}

// pollIO hands a report task to the worker pool every reportN polls.
func (d *demo) pollIO(ctx context.Context) error {
	n := d.ioPolls.Add(1)
	if d.reportN == 0 || n%d.reportN != 0 {
		return nil
	}

	_, err := core.SubmitNamed(d.orch, "report", func(ctx context.Context) (uint64, error) {
		return d.report(), nil
	})
	if errors.Is(err, core.ErrQueueClosed) {
		return core.ErrLoopDone
	}
	return err
}

func (d *demo) report() uint64 {
	n := d.reports.Add(1)
	stats := d.orch.Stats()
	d.logger.Info("progress",
		core.F("report", n),
		core.F("steps", d.steps.Load()),
		core.F("sim_ticks", d.simTicks.Load()),
		core.F("io_polls", d.ioPolls.Load()),
		core.F("tasks_completed", stats.Completed),
	)
	return n
}
