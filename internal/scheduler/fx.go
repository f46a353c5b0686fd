package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/smallbiznis/quoteflow/internal/config"
)

var Module = fx.Module("scheduler.overdue",
	fx.Provide(provideConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Enabled:      cfg.OverdueSweep.Enabled,
		BatchSize:    cfg.OverdueSweep.BatchSize,
		PollInterval: cfg.OverdueSweep.PollInterval,
	}
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	if !worker.cfg.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
