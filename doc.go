// Package looprunner coordinates a fixed-timestep main loop, independently paced
// simulation and I/O loops, and a pool of task workers under one shutdown authority.
//
// The design separates three concerns:
//
//   - core.Orchestrator owns every long-running goroutine. Role loops repeat their body
//     while ShouldContinue() is true; workers drain a shared FIFO queue. StopAll and
//     EmergencyStop are one-shot transitions that join everything.
//   - timing.Timer measures frame time and accumulates it for fixed-step simulation.
//   - loop.Loop runs the main loop on the calling goroutine: poll events, update the
//     timer, simulate whole steps, present.
//
// # Quick Start
//
//	r, err := looprunner.New(looprunner.Options{TickRate: 60})
//	if err != nil {
//		return err
//	}
//	r.Simulation(func(ctx context.Context) error {
//		world.Advance()
//		return nil
//	}, looprunner.WithTickInterval(16*time.Millisecond))
//	r.IO(pollDevices, looprunner.WithTickInterval(10*time.Millisecond))
//	r.Step(func(ctx context.Context, dt float64) error {
//		return physics.Step(dt)
//	})
//	return r.Run(ctx)
//
// # Failure Handling
//
// A loop body reports a failed iteration by returning an error. Simulation and I/O loops
// log the failure and continue by default; a failing main loop escalates to an emergency
// stop, which ends every loop and makes Run return a *core.EmergencyCondition. Override the
// default per loop with WithFailurePolicy. Task failures, including recovered panics, are
// delivered through the task's Handle and never stop a worker.
//
// # Thread Safety
//
// ShouldContinue and the timer getters are lock-free and may be called from any goroutine.
// StopAll and EmergencyStop block until every managed goroutine has exited, so call them
// from outside the loops; inside a loop body or a task use RequestStop or
// RequestEmergencyStop.
package looprunner
