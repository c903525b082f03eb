package bootstrap

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"perp_bot/internal/journal"
	binsvc "perp_bot/internal/modules/binance/service"
	"perp_bot/internal/modules/config"
	healthsvc "perp_bot/internal/modules/health/service"
	"perp_bot/internal/riskguard"
	"perp_bot/pkg/logger"
)

// Module — стартовая последовательность. Часы и фильтры обязательны: без них
// подписи и квантование невалидны, поднимать движок бессмысленно.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			client *binsvc.Client,
			resolver *binsvc.FilterResolver,
			store *riskguard.PgStore,
			guard *riskguard.Guard,
			jrnl *journal.Journal,
			state *healthsvc.State,
		) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := client.SyncServerTime(ctx); err != nil {
						return errors.Wrap(err, "server time sync")
					}

					for _, symbol := range cfg.Symbols {
						f, err := resolver.Resolve(ctx, symbol)
						if err != nil {
							return errors.Wrapf(err, "resolve filters for %s", symbol)
						}
						logger.Info("[%s] filters: tick=%s step=%s minNotional=%s maxLev=%d",
							symbol, f.TickSize, f.StepSize, f.MinNotional, f.MaxLeverage)

						if err := client.SetMarginTypeCrossed(ctx, symbol); err != nil {
							return errors.Wrapf(err, "set crossed margin for %s", symbol)
						}
					}

					if err := store.EnsureSchema(ctx); err != nil {
						return err
					}
					if err := jrnl.EnsureSchema(ctx); err != nil {
						return err
					}
					if err := guard.Restore(ctx); err != nil {
						return err
					}

					// осиротевшие с прошлого запуска входные лимитки
					if err := client.CancelOpenEntryOrders(ctx); err != nil {
						logger.Error("cancel stale entry orders: %v", err)
					}

					state.SetReady(true)
					logger.Info("bootstrap done: %d symbols, timeframes %v", len(cfg.Symbols), cfg.Timeframes)
					return nil
				},
			})
		}),
	)
}
