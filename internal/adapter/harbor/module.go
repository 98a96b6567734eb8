package harbor

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

// Config selects which concrete Transport the module builds.
type Config struct {
	Standalone bool
	NodeID     uint8
	MasterURI  string // AMQP URI of the cluster master, when !Standalone
}

// Module provides a Transport, picking the gochannel adapter for
// --standalone deployments and the AMQP adapter otherwise, and closes
// it on fx shutdown.
var Module = fx.Module("harbor",
	fx.Provide(func(lc fx.Lifecycle, cfg Config, logger *slog.Logger) (Transport, error) {
		ctx, cancel := context.WithCancel(context.Background())

		var (
			t   Transport
			err error
		)
		if cfg.Standalone {
			t, err = NewGoChannelTransport(ctx, logger)
		} else {
			t, err = NewAMQPTransport(ctx, cfg.MasterURI, cfg.NodeID, logger)
		}
		if err != nil {
			cancel()
			return nil, err
		}

		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				cancel()
				return t.Close()
			},
		})
		return t, nil
	}),
)
