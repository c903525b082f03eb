package riskguard

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"perp_bot/pkg/logger"
)

// EquitySource — текущий баланс кошелька в USDT. Реализует биржевой клиент.
type EquitySource interface {
	AccountEquity(ctx context.Context) (float64, error)
}

// Store — персист состояния, чтобы рестарт не сбрасывал сработавший стоп дня.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, s State) error
}

type State struct {
	Day      string  `json:"day"`
	Baseline float64 `json:"baseline"`
	Tripped  bool    `json:"tripped"`
}

// Guard — дневной стоп по просадке. База — первый замер эквити за UTC-сутки,
// срабатывание — просадка от базы глубже порога. До конца суток новые входы
// запрещены, управление открытыми позициями продолжается.
type Guard struct {
	equity      EquitySource
	store       Store
	maxDrawdown float64

	mu    sync.Mutex
	state State

	now func() time.Time
}

func New(equity EquitySource, store Store, maxDrawdown float64) *Guard {
	return &Guard{
		equity:      equity,
		store:       store,
		maxDrawdown: maxDrawdown,
		now:         time.Now,
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Restore подтягивает сохранённое состояние на старте.
func (g *Guard) Restore(ctx context.Context) error {
	s, ok, err := g.store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load risk guard state")
	}
	if !ok {
		return nil
	}

	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	if s.Tripped {
		logger.Info("risk guard restored TRIPPED for %s (baseline %.2f)", s.Day, s.Baseline)
	}
	return nil
}

// Evaluate замеряет эквити и обновляет состояние. Смена UTC-суток сбрасывает
// базу и взвод.
func (g *Guard) Evaluate(ctx context.Context) error {
	equity, err := g.equity.AccountEquity(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch equity")
	}

	g.mu.Lock()
	day := dayKey(g.now())
	changed := false

	if g.state.Day != day {
		g.state = State{Day: day, Baseline: equity}
		changed = true
		logger.Info("risk guard: new day %s, baseline %.2f USDT", day, equity)
	}

	if !g.state.Tripped && g.state.Baseline > 0 {
		dd := (g.state.Baseline - equity) / g.state.Baseline
		if dd >= g.maxDrawdown {
			g.state.Tripped = true
			changed = true
			logger.Error("risk guard TRIPPED: drawdown %.2f%% (baseline %.2f, equity %.2f)",
				dd*100, g.state.Baseline, equity)
		}
	}
	snapshot := g.state
	g.mu.Unlock()

	if changed {
		if err := g.store.Save(ctx, snapshot); err != nil {
			return errors.Wrap(err, "save risk guard state")
		}
	}
	return nil
}

// Tripped — можно ли открывать новые позиции. Просроченный взвод (вчерашний)
// не блокирует.
func (g *Guard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Tripped && g.state.Day == dayKey(g.now())
}

func (g *Guard) CurrentState() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
