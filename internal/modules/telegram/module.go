package telegram

import (
	"context"

	"go.uber.org/fx"

	"perp_bot/internal/lifecycle"
	"perp_bot/internal/modules/config"
	"perp_bot/internal/modules/telegram/service"
	"perp_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(func(lc fx.Lifecycle, cfg *config.Config) (lifecycle.Notifier, error) {
			if cfg.Telegram.Token == "" {
				logger.Info("telegram token empty, notifications go to log only")
				return service.NopNotifier{}, nil
			}

			n, err := service.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
			if err != nil {
				return nil, err
			}

			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go n.Run(runCtx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return n, nil
		}),
	)
}
