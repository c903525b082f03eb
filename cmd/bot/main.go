package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"perp_bot/internal/modules/binance"
	"perp_bot/internal/modules/bootstrap"
	"perp_bot/internal/modules/config"
	"perp_bot/internal/modules/health"
	"perp_bot/internal/modules/marketdata"
	"perp_bot/internal/modules/postgres"
	"perp_bot/internal/modules/strategy"
	"perp_bot/internal/modules/telegram"
	"perp_bot/internal/runner"
	"perp_bot/pkg/logger"
	"perp_bot/pkg/tracing"
)

func main() {
	logger.Init()
	defer logger.Sync()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(cfg *config.Config, lc fx.Lifecycle) error {
			if cfg.Jaeger.Host == "" {
				return nil
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				closeTracer()
				return nil
			}})
			return nil
		}),
		postgres.Module(),
		binance.Module(),
		health.Module(),
		telegram.Module(),
		strategy.Module(),
		marketdata.Module(),
		bootstrap.Module(),
		runner.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
