package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sharnoff/chord"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Swind/go-loop-runner/core"
	"github.com/Swind/go-loop-runner/loop"
	promexporter "github.com/Swind/go-loop-runner/observability/prometheus"
	"github.com/Swind/go-loop-runner/timing"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the headless loop until interrupted, the duration elapses or the main loop fails",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "worker pool size (0 = number of CPUs)",
				EnvVars: []string{"LOOPRUNNER_WORKERS"},
			},
			&cli.Float64Flag{
				Name:    "tick-rate",
				Value:   60,
				Usage:   "fixed simulation steps per second",
				EnvVars: []string{"LOOPRUNNER_TICK_RATE"},
			},
			&cli.IntFlag{
				Name:    "max-steps",
				Value:   5,
				Usage:   "maximum fixed steps per frame (0 = unlimited)",
				EnvVars: []string{"LOOPRUNNER_MAX_STEPS"},
			},
			&cli.DurationFlag{
				Name:    "frame-interval",
				Value:   16 * time.Millisecond,
				Usage:   "main loop pacing",
				EnvVars: []string{"LOOPRUNNER_FRAME_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "sim-interval",
				Value:   16 * time.Millisecond,
				Usage:   "simulation loop pacing",
				EnvVars: []string{"LOOPRUNNER_SIM_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "io-interval",
				Value:   10 * time.Millisecond,
				Usage:   "I/O loop pacing",
				EnvVars: []string{"LOOPRUNNER_IO_INTERVAL"},
			},
			&cli.Uint64Flag{
				Name:    "report-every",
				Value:   100,
				Usage:   "submit a progress report task every N I/O polls (0 = never)",
				EnvVars: []string{"LOOPRUNNER_REPORT_EVERY"},
			},
			&cli.DurationFlag{
				Name:    "duration",
				Usage:   "stop gracefully after this long (0 = run until interrupted)",
				EnvVars: []string{"LOOPRUNNER_DURATION"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "serve Prometheus metrics on this address, e.g. :9090",
				EnvVars: []string{"LOOPRUNNER_METRICS_ADDR"},
			},
			&cli.Uint64Flag{
				Name:    "fail-main-after",
				Usage:   "make the main loop fail after N fixed steps to demonstrate an emergency stop",
				EnvVars: []string{"LOOPRUNNER_FAIL_MAIN_AFTER"},
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	// 1. Logger
	zl, err := newZapLogger(c.String("log-level"), c.String("log-format"), os.Stderr)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = zl.Sync() }()
	logger := core.NewZapLogger(zl)

	// 2. Metrics
	var metrics core.Metrics = &core.NilMetrics{}
	var poller *promexporter.SnapshotPoller
	var server *http.Server
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prom.NewRegistry()
		exporter, err := promexporter.NewMetricsExporter("", reg, promexporter.ExporterOptions{})
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics: %v", err), 1)
		}
		if poller, err = promexporter.NewSnapshotPoller(reg, time.Second); err != nil {
			return cli.Exit(fmt.Sprintf("metrics: %v", err), 1)
		}
		metrics = exporter

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Error("metrics server failed", zap.Error(err))
			}
		}()
		zl.Info("serving metrics", zap.String("addr", addr))
	}

	// 3. Orchestrator, timer, loop
	orch, err := core.NewOrchestrator(&core.OrchestratorConfig{
		Name:    "looprunner",
		Workers: c.Int("workers"),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	timer := timing.NewTimer(nil)

	d := &demo{
		orch:      orch,
		logger:    logger,
		failAfter: c.Uint64("fail-main-after"),
		reportN:   c.Uint64("report-every"),
	}

	l, err := loop.New(orch, timer, loop.Config{
		FixedTimestep:    timing.Hz(c.Float64("tick-rate")),
		MaxStepsPerFrame: c.Int("max-steps"),
		MainOptions:      []core.RoleOption{core.WithTickInterval(c.Duration("frame-interval"))},
		Roles: []loop.RoleSpec{
			{
				Role:    core.RoleSimulation,
				Body:    d.simulate,
				Options: []core.RoleOption{core.WithTickInterval(c.Duration("sim-interval"))},
			},
			{
				Role:    core.RoleIO,
				Body:    d.pollIO,
				Options: []core.RoleOption{core.WithTickInterval(c.Duration("io-interval"))},
			},
		},
		Platform: loop.HeadlessPlatform{},
		Step:     d.step,
		Logger:   logger,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if poller != nil {
		poller.AddOrchestrator(orch.Name(), orch)
		poller.AddTimer("frame", timer)
		poller.Start(c.Context)
	}

	// 4. Signals and deadline
	signals := chord.NewSignalManager()
	defer signals.Stop()
	stop := func(ctx context.Context) error {
		zl.Info("signal received, stopping")
		orch.RequestStop()
		return nil
	}
	_ = signals.On(syscall.SIGINT, context.Background(), stop)
	_ = signals.On(syscall.SIGTERM, context.Background(), stop)

	ctx := c.Context
	if limit := c.Duration("duration"); limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	// 5. Run
	runErr := l.Run(ctx)

	if poller != nil {
		poller.Stop()
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}

	zl.Info("stopped",
		zap.Uint64("frames", l.Frames()),
		zap.Uint64("steps", l.Steps()),
		zap.Uint64("dropped_steps", l.DroppedSteps()),
		zap.Uint64("sim_ticks", d.simTicks.Load()),
		zap.Uint64("io_polls", d.ioPolls.Load()),
		zap.Uint64("reports", d.reports.Load()),
		zap.Float64("elapsed_seconds", timer.ElapsedTime()),
	)

	var cond *core.EmergencyCondition
	if errors.As(runErr, &cond) {
		return cli.Exit(cond.Error(), 2)
	}
	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}
