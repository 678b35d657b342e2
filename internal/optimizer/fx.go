package optimizer

import (
	"context"

	"go.uber.org/fx"

	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
)

var Module = fx.Module("optimizer.monitor",
	fx.Provide(
		NewMonitor,
		func(m *Monitor) revenuedomain.OptimizerTrigger { return m },
	),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, m *Monitor) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				m.Run(ctx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
