// Command looprunner runs a headless fixed-timestep loop with simulation and I/O
// role loops, a task worker pool and an optional Prometheus endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "looprunner",
		Usage: "Coordinate main, simulation and I/O loops under one shutdown authority",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "minimum log level (debug, info, warn, error)",
				EnvVars: []string{"LOOPRUNNER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "auto",
				Usage:   "log encoding: auto, console or json (auto picks console on a terminal)",
				EnvVars: []string{"LOOPRUNNER_LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
		},
	}
}
