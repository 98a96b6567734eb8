package cmd

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/webitel/actor-runtime/config"
	"github.com/webitel/actor-runtime/internal/adapter/harbor"
	loggeractor "github.com/webitel/actor-runtime/internal/adapter/logger"
	"github.com/webitel/actor-runtime/internal/adapter/socket"
	"github.com/webitel/actor-runtime/internal/admin"
	"github.com/webitel/actor-runtime/internal/domain/env"
	"github.com/webitel/actor-runtime/internal/domain/message"
	"github.com/webitel/actor-runtime/internal/domain/modhost"
	"github.com/webitel/actor-runtime/internal/domain/registry"
	"github.com/webitel/actor-runtime/internal/domain/runqueue"
	"github.com/webitel/actor-runtime/internal/runtime"
)

// NewApp wires one runtime node: run-queue/env/modhost are plain
// fx.Provide constructors (leaf domain packages with no fx.Module of
// their own, the modhost registry seeded with the built-in logger
// service module), alongside the socket reactor, registry.Module,
// runtime.Module, harbor.Module, and (behind --tui) internal/admin's
// dashboard. store is the same *env.Store the caller
// already populated from the config file, not a fresh one, so GETENV
// sees the values the process booted with.
func NewApp(cfg *config.Config, store *env.Store, tui bool) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			provideLogger,
			func() *runqueue.RunQueue { return runqueue.New() },
			func() *env.Store { return store },
			func(cfg *config.Config) registry.Config { return registry.Config{Node: cfg.Harbor} },
			func(cfg *config.Config) runtime.Config {
				return runtime.Config{NodeID: cfg.Harbor, Workers: cfg.Thread}
			},
			func(base *slog.Logger) (*modhost.Registry, error) {
				return modhost.NewRegistry(loggeractor.NewModule(base))
			},
			func(cfg *config.Config) harbor.Config {
				return harbor.Config{Standalone: cfg.Standalone, NodeID: cfg.Harbor, MasterURI: cfg.Master}
			},
			fx.Annotate(
				func(node *runtime.Node, cfg *config.Config, logger *slog.Logger) *socket.Reactor {
					return socket.New(socket.Config{
						Addr: cfg.Address,
						Deliver: func(handle uint32, msg message.Message) bool {
							return node.Send(registry.Handle(handle), msg)
						},
					}, logger)
				},
				fx.As(new(runtime.SocketReactor)),
			),
			func(holder *runtime.SchedulerHolder) admin.SnapshotFunc {
				return func() admin.Snapshot {
					if holder.Scheduler == nil {
						return admin.Snapshot{}
					}
					snap := holder.Scheduler.Snapshot()
					return admin.Snapshot{
						Workers:       snap.Workers,
						Busy:          snap.Busy,
						Sleeping:      snap.Sleeping,
						LiveServices:  snap.LiveServices,
						RunQueueDepth: snap.RunQueueDepth,
					}
				}
			},
		),
		registry.Module,
		runtime.Module,
		harbor.Module,
		admin.NewModule(admin.Config{Enabled: tui}),
		fx.Invoke(func(lc fx.Lifecycle, node *runtime.Node, cfg *config.Config, logger *slog.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					launchStartupServices(node, cfg, logger)
					return nil
				},
			})
		}),
	)
}

// launchStartupServices boots the always-on logger actor and, if
// configured, the node's initial user service. A module-load failure
// here is logged and the process keeps running (spec.md §7), not fatal.
func launchStartupServices(node *runtime.Node, cfg *config.Config, logger *slog.Logger) {
	if _, err := node.ContextNew("logger", cfg.Logger); err != nil {
		logger.Error("LOGGER_LAUNCH_FAILED", slog.Any("err", err))
	}
	if cfg.Start != "" {
		if _, err := node.ContextNew(cfg.Start, ""); err != nil {
			logger.Error("START_LAUNCH_FAILED", slog.String("module", cfg.Start), slog.Any("err", err))
		}
	}
}

func provideLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
