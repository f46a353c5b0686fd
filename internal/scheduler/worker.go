// Package scheduler runs the background sweep that flips pending invoices
// past their due date to OVERDUE.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	clockpkg "github.com/smallbiznis/quoteflow/internal/clock"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clockpkg.Clock
	Invoices invoicedomain.Service
	Config   Config `optional:"true"`
}

type Worker struct {
	log      *zap.Logger
	clock    clockpkg.Clock
	invoices invoicedomain.Service
	cfg      Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:      p.Log.Named("scheduler.overdue"),
		clock:    p.Clock,
		invoices: p.Invoices,
		cfg:      p.Config.withDefaults(),
	}
}

// RunForever sweeps once per poll interval until ctx is cancelled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("overdue sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single bounded sweep.
func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	flipped, err := w.invoices.SweepOverdue(ctx, w.clock.Now(), w.cfg.BatchSize)
	if flipped > 0 {
		w.log.Info("overdue sweep completed", zap.Int("flipped", flipped))
	}
	return err
}
