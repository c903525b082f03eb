package riskguard

import (
	"context"
	"time"

	"perp_bot/pkg/logger"
)

// Worker — периодический замер эквити для стопа дня.
type Worker struct {
	guard    *Guard
	interval time.Duration
}

func NewWorker(guard *Guard, interval time.Duration) *Worker {
	return &Worker{guard: guard, interval: interval}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.guard.Evaluate(ctx); err != nil {
		logger.Error("risk guard initial evaluate: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.guard.Evaluate(ctx); err != nil {
				logger.Error("risk guard evaluate: %v", err)
			}
		}
	}
}
