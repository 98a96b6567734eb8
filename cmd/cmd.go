package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/webitel/actor-runtime/config"
	"github.com/webitel/actor-runtime/internal/domain/env"
)

const (
	ServiceName      = "actor-runtime"
	ServiceNamespace = "webitel"
)

// Run is the process entrypoint: spec.md §6's CLI contract is
// "runtime [config-path]" (default "config"), exit 0 on clean shutdown,
// 1 on configuration/bootstrap failure.
func Run() error {
	app := &cli.App{
		Name:      ServiceName,
		Usage:     "actor runtime node",
		ArgsUsage: "[config-path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "show a live dashboard of scheduler counters",
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return nil
}

func runServer(c *cli.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	flags := pflag.NewFlagSet(ServiceName, pflag.ContinueOnError)
	flags.Bool("standalone", false, "also run the cluster master locally on this node's address")

	cfg, v, err := config.Load(c.Args().First(), flags)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	store := env.New()
	if err := config.PopulateEnv(store, v); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	config.WatchChanges(v, logger)

	app := NewApp(cfg, store, c.Bool("tui"))
	if err := app.Start(c.Context); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("SHUTTING_DOWN")
	return app.Stop(context.Background())
}
