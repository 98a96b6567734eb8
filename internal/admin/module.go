package admin

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

// Config gates the dashboard behind --tui. The snapshot source itself is
// resolved through fx (see NewModule) so it can depend on whatever
// owns the scheduler without admin importing that package directly here.
type Config struct {
	Enabled bool
}

// NewModule starts the dashboard in the background for the lifetime of
// the fx app when cfg.Enabled is set; otherwise it is a no-op. snapshot
// is resolved from the graph so callers can wire it to a scheduler built
// by another module.
func NewModule(cfg Config) fx.Option {
	return fx.Module("admin",
		fx.Invoke(func(lc fx.Lifecycle, logger *slog.Logger, snapshot SnapshotFunc) {
			if !cfg.Enabled || snapshot == nil {
				return
			}
			d := New(snapshot, logger)
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := d.Run(runCtx); err != nil {
							logger.Error("ADMIN_DASHBOARD_FAILED", slog.Any("err", err))
						}
					}()
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
