package strategy

import (
	"go.uber.org/fx"

	"perp_bot/internal/modules/config"
	"perp_bot/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config) service.DecisionSource {
				return service.NewEMARSI(cfg.Trading)
			},
			func(cfg *config.Config) *service.ATRTracker {
				return service.NewATRTracker(cfg.Trading.ATRPeriod)
			},
		),
	)
}
