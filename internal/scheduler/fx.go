package scheduler

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/nockworks/revenue-engine/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

func ProvideConfig(cfg config.Config) Config {
	sched := DefaultConfig()
	if cfg.SchedulerIntervalSec > 0 {
		sched.RunInterval = time.Duration(cfg.SchedulerIntervalSec) * time.Second
	}
	if jobs := strings.TrimSpace(cfg.SchedulerJobs); jobs != "" {
		for _, name := range strings.Split(jobs, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sched.EnabledJobs = append(sched.EnabledJobs, name)
			}
		}
	}
	return sched
}

func registerHooks(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(ctx)
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
