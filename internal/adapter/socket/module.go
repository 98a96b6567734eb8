package socket

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

// NewModule builds the default reactor and starts/stops its HTTP server with
// the fx lifecycle. Callers needing a custom Deliver should construct
// Config and call New directly instead of pulling this module in.
func NewModule(cfg Config) fx.Option {
	return fx.Module("socket",
		fx.Provide(func(logger *slog.Logger) *Reactor { return New(cfg, logger) }),
		fx.Invoke(func(lc fx.Lifecycle, r *Reactor) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					r.Start(runCtx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
