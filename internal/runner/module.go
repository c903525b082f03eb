package runner

import (
	"context"
	"time"

	"go.uber.org/fx"

	"perp_bot/internal/confirm"
	"perp_bot/internal/helper"
	"perp_bot/internal/journal"
	"perp_bot/internal/lifecycle"
	"perp_bot/internal/models"
	"perp_bot/internal/modules/binance/service"
	"perp_bot/internal/modules/config"
	strategysvc "perp_bot/internal/modules/strategy/service"
	"perp_bot/internal/poscache"
	"perp_bot/internal/riskguard"
	"perp_bot/internal/sizing"
	"perp_bot/pkg/db"
	"perp_bot/pkg/logger"
)

const guardInterval = time.Minute

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(m *db.PgTxManager) db.TxManager { return m },

			func(cfg *config.Config, client *service.Client) *poscache.Cache {
				return poscache.New(client, cfg.Trading.CacheTTL)
			},
			func(cfg *config.Config, client *service.Client) *sizing.Engine {
				return sizing.New(client, cfg.Trading.MarginUSDT, cfg.Trading.FallbackMargin)
			},
			func(cfg *config.Config) *confirm.Aggregator {
				return confirm.New(cfg.Trading.ConfirmWindow, cfg.Trading.MinConfirmations)
			},
			riskguard.NewPgStore,
			func(client *service.Client, store *riskguard.PgStore, cfg *config.Config) *riskguard.Guard {
				return riskguard.New(client, store, cfg.Trading.MaxDailyDrawdown)
			},
			journal.New,
			newSessions,
			NewRouter,
		),
		fx.Invoke(run),
	)
}

func newSessions(
	cfg *config.Config,
	client *service.Client,
	resolver *service.FilterResolver,
	cache *poscache.Cache,
	guard *riskguard.Guard,
	sizer *sizing.Engine,
	notifier lifecycle.Notifier,
	source strategysvc.DecisionSource,
	atr *strategysvc.ATRTracker,
	agg *confirm.Aggregator,
	jrnl *journal.Journal,
) map[string]*SymbolSession {
	manageTF := helper.NormTF(cfg.Timeframes[0])

	sessions := make(map[string]*SymbolSession, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		machine := lifecycle.NewMachine(symbol, cfg.Trading, client, sizer, cache, guard, resolver, notifier)
		sessions[symbol] = NewSymbolSession(symbol, manageTF, machine, source, atr, agg, jrnl)
	}
	return sessions
}

func run(
	lc fx.Lifecycle,
	ctx context.Context,
	cfg *config.Config,
	client *service.Client,
	cache *poscache.Cache,
	guard *riskguard.Guard,
	sessions map[string]*SymbolSession,
	router *Router,
	ticks chan models.CandleTick,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go poscache.NewWorker(cache, cfg.Trading.CacheRefresh).Run(ctx)
			go riskguard.NewWorker(guard, guardInterval).Run(ctx)
			for _, s := range sessions {
				go s.Run(ctx)
			}
			go router.Run(ctx, ticks)
			logger.Info("runner started: %d symbols, manage tf %s", len(sessions), cfg.Timeframes[0])
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			// висящие лимитки входа на выключенном движке — неуправляемый
			// риск, снимаем перед остановкой
			cancelCtx, cancel := context.WithTimeout(stopCtx, 10*time.Second)
			defer cancel()
			if err := client.CancelOpenEntryOrders(cancelCtx); err != nil {
				logger.Error("cancel entry orders on shutdown: %v", err)
			}
			return nil
		},
	})
}
