package poscache

import (
	"context"
	"time"

	"perp_bot/pkg/logger"
)

// Worker периодически освежает снапшот, чтобы форс-рефреш на горячем пути
// был редкостью.
type Worker struct {
	cache    *Cache
	interval time.Duration
}

func NewWorker(cache *Cache, interval time.Duration) *Worker {
	return &Worker{cache: cache, interval: interval}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.cache.Refresh(ctx); err != nil {
		logger.Error("position cache initial refresh: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cache.Refresh(ctx); err != nil {
				logger.Error("position cache refresh: %v", err)
			}
		}
	}
}
