package runner

import (
	"context"
	"time"

	"perp_bot/internal/confirm"
	"perp_bot/internal/models"
	"perp_bot/pkg/logger"
)

// Router раздаёт закрытые свечи по сессиям символов. Свечи чужих символов
// молча отбрасываются: стрим подписан только на рабочее множество, но при
// смене конфига на лету возможен хвост.
type Router struct {
	sessions map[string]*SymbolSession
	agg      *confirm.Aggregator
}

func NewRouter(sessions map[string]*SymbolSession, agg *confirm.Aggregator) *Router {
	return &Router{sessions: sessions, agg: agg}
}

func (r *Router) Run(ctx context.Context, ticks <-chan models.CandleTick) {
	purge := time.NewTicker(time.Minute)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-purge.C:
			r.agg.PurgeStale()
		case bar, ok := <-ticks:
			if !ok {
				logger.Error("tick channel closed, router stopping")
				return
			}
			s := r.sessions[bar.Symbol]
			if s == nil {
				continue
			}
			if !s.Enqueue(bar) {
				logger.Error("[%s] session queue full, dropping %s bar", bar.Symbol, bar.Timeframe)
			}
		}
	}
}
