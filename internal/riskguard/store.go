package riskguard

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"perp_bot/pkg/db"
)

// PgStore держит ровно одну строку состояния в risk_guard_state.
type PgStore struct {
	tx db.TxManager
}

func NewPgStore(tx db.TxManager) *PgStore {
	return &PgStore{tx: tx}
}

func (s *PgStore) EnsureSchema(ctx context.Context) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS risk_guard_state (
				id       smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
				day      text             NOT NULL,
				baseline double precision NOT NULL,
				tripped  boolean          NOT NULL
			)`)
		return err
	})
}

func (s *PgStore) Load(ctx context.Context) (State, bool, error) {
	var st State
	found := false
	err := s.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT day, baseline, tripped FROM risk_guard_state WHERE id = 1`)
		if err := row.Scan(&st.Day, &st.Baseline, &st.Tripped); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	return st, found, err
}

func (s *PgStore) Save(ctx context.Context, st State) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO risk_guard_state (id, day, baseline, tripped)
			VALUES (1, $1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET day = $1, baseline = $2, tripped = $3`,
			st.Day, st.Baseline, st.Tripped)
		return err
	})
}
