package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/webitel/actor-runtime/internal/domain/env"
	"github.com/webitel/actor-runtime/internal/domain/modhost"
	"github.com/webitel/actor-runtime/internal/domain/registry"
	"github.com/webitel/actor-runtime/internal/domain/runqueue"
)

func TestModuleStartsAndStopsSchedulerWithDefaultConfig(t *testing.T) {
	var holder *SchedulerHolder
	app := fxtest.New(t,
		fx.Provide(
			func() Config { return DefaultConfig },
			func() *registry.Registry { return registry.New(registry.WithNode(DefaultConfig.NodeID)) },
			func() *runqueue.RunQueue { return runqueue.New() },
			func() *env.Store { return env.New() },
			func() *modhost.Registry {
				reg, err := modhost.NewRegistry()
				require.NoError(t, err)
				return reg
			},
			discardLogger,
		),
		Module,
		fx.Populate(&holder),
	)
	require.NoError(t, app.Err())

	app.RequireStart()
	require.NotNil(t, holder.Scheduler)
	app.RequireStop()
}
