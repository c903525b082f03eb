package journal

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"perp_bot/pkg/db"
	"perp_bot/pkg/logger"
)

// Journal пишет событийный след сделок в postgres. Поток событий append-only,
// детали — jsonb, чтобы схема не ломалась при изменении состава полей.
type Journal struct {
	tx db.TxManager
}

const (
	EventOpened   = "opened"
	EventClosed   = "closed"
	EventStopMove = "stop_move"
	EventRejected = "rejected"
)

func New(tx db.TxManager) *Journal {
	return &Journal{tx: tx}
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	return j.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS trade_events (
				id      bigserial PRIMARY KEY,
				at      timestamptz NOT NULL,
				symbol  text        NOT NULL,
				event   text        NOT NULL,
				details jsonb       NOT NULL
			)`)
		return err
	})
}

// Record — одно событие. Ошибка журнала не должна ронять торговый путь,
// поэтому наружу только лог.
func (j *Journal) Record(ctx context.Context, symbol, event string, details any) {
	payload, err := sonic.Marshal(details)
	if err != nil {
		logger.Error("[%s] journal marshal %s: %v", symbol, event, err)
		return
	}

	err = j.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO trade_events (at, symbol, event, details) VALUES ($1, $2, $3, $4)`,
			time.Now().UTC(), symbol, event, payload)
		return errors.Wrap(err, "insert trade event")
	})
	if err != nil {
		logger.Error("[%s] journal write %s: %v", symbol, event, err)
	}
}
