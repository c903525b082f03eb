package binance

import (
	"perp_bot/internal/modules/binance/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("binance",
		fx.Provide(
			service.NewClient,
			service.NewFilterResolver,
		),
	)
}
