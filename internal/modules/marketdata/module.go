package marketdata

import (
	"context"

	"perp_bot/internal/models"
	"perp_bot/internal/modules/marketdata/service"

	"go.uber.org/fx"
)

// Module поднимает стример свечей.
func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			service.NewStream,
			func() chan models.CandleTick {
				// общий буфер для закрытых свечей
				return make(chan models.CandleTick, 1024)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Stream, out chan models.CandleTick, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go s.Start(ctx, out)
					return nil
				},
			})
		}),
	)
}
