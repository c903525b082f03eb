package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"perp_bot/internal/models"
	"perp_bot/internal/modules/config"
	"perp_bot/internal/sizing"
	"perp_bot/pkg/logger"
)

// Venue — биржевые вызовы лайфцикла.
type Venue interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty string) (int64, error)
	PlaceStopMarket(ctx context.Context, symbol string, side models.Side, stopPrice, qty string, closePosition bool) (int64, error)
	PlaceTakeProfitMarket(ctx context.Context, symbol string, side models.Side, stopPrice, qty string, closePosition bool) (int64, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
}

// Sizer — подбор количества под маржу.
type Sizer interface {
	DecideQtyForMargin(ctx context.Context, f models.SymbolFilters, price decimal.Decimal) (sizing.Result, error)
}

// Gate — кеш позиций: занятость символа, глобальный лимит, резервации.
type Gate interface {
	IsSymbolFree(ctx context.Context, symbol string) (bool, string)
	ActiveCount(ctx context.Context) (int, error)
	HasOpenPosition(ctx context.Context, symbol string) (bool, error)
	Reserve(symbol string) bool
	Release(symbol string)
	MarkOpened(p models.PositionInfo)
	MarkClosed(symbol string)
}

// KillSwitch — дневной стоп по просадке.
type KillSwitch interface {
	Tripped() bool
}

// FilterSource — правила квантования символа.
type FilterSource interface {
	Resolve(ctx context.Context, symbol string) (models.SymbolFilters, error)
}

// Notifier — асинхронные уведомления оператору.
type Notifier interface {
	Notify(text string)
}

// Machine ведёт сделку одного символа от входа до закрытия. Не потокобезопасна:
// все вызовы идут из воркера своей сессии.
type Machine struct {
	symbol  string
	cfg     config.TradingConfig
	venue   Venue
	sizer   Sizer
	gate    Gate
	guard   KillSwitch
	filters FilterSource
	notify  Notifier

	st            models.TradeState
	cooldownUntil time.Time
	met           Metrics

	now func() time.Time
}

// Metrics — счётчики машины. Без локов: машина живёт в одной горутине.
type Metrics struct {
	Opens     int64
	Closes    int64
	StopMoves int64
	Rejects   int64
}

func NewMachine(
	symbol string,
	cfg config.TradingConfig,
	venue Venue,
	sizer Sizer,
	gate Gate,
	guard KillSwitch,
	filters FilterSource,
	notify Notifier,
) *Machine {
	return &Machine{
		symbol:  symbol,
		cfg:     cfg,
		venue:   venue,
		sizer:   sizer,
		gate:    gate,
		guard:   guard,
		filters: filters,
		notify:  notify,
		now:     time.Now,
	}
}

func (m *Machine) State() models.TradeState { return m.st }

func (m *Machine) Snapshot() Metrics { return m.met }

func (m *Machine) cooldown() time.Duration {
	return time.Duration(m.cfg.CooldownMinutes) * time.Minute
}

// OpenTrade — полный вход: гейты, резервация, сайзинг, маркет, SL, тейки.
func (m *Machine) OpenTrade(ctx context.Context, sig models.ConfirmedSignal, atr float64) (Outcome, error) {
	out, err := m.openTrade(ctx, sig, atr)
	switch out {
	case OutcomeOpened:
		m.met.Opens++
	case OutcomeAlreadyActive, OutcomeCooldown:
		// штатный шум при живой сделке, не считаем отказом
	default:
		m.met.Rejects++
	}
	return out, err
}

// Порядок проверок от дешёвых к дорогим, сетевые — последними.
func (m *Machine) openTrade(ctx context.Context, sig models.ConfirmedSignal, atr float64) (Outcome, error) {
	if m.st.Active {
		return OutcomeAlreadyActive, nil
	}
	if now := m.now(); now.Before(m.cooldownUntil) {
		logger.Info("[%s] in cooldown for %s more", m.symbol, m.cooldownUntil.Sub(now).Round(time.Second))
		return OutcomeCooldown, nil
	}
	if m.guard.Tripped() {
		return OutcomeGuardTripped, nil
	}
	if atr <= 0 {
		return OutcomeNoVolatility, nil
	}

	if !m.gate.Reserve(m.symbol) {
		return OutcomeSymbolBusy, nil
	}
	reserved := true
	defer func() {
		if reserved {
			m.gate.Release(m.symbol)
		}
	}()

	if free, reason := m.gate.IsSymbolFree(ctx, m.symbol); !free {
		logger.Info("[%s] entry denied: %s", m.symbol, reason)
		return OutcomeSymbolBusy, nil
	}
	active, err := m.gate.ActiveCount(ctx)
	if err != nil {
		return OutcomeVenueError, err
	}
	if active >= m.cfg.MaxOpenPositions {
		logger.Info("[%s] position cap reached (%d/%d)", m.symbol, active, m.cfg.MaxOpenPositions)
		return OutcomeCapReached, nil
	}

	filters, err := m.filters.Resolve(ctx, m.symbol)
	if err != nil {
		return OutcomeVenueError, err
	}
	price, err := m.venue.LastPrice(ctx, m.symbol)
	if err != nil {
		return OutcomeVenueError, err
	}

	size, err := m.sizer.DecideQtyForMargin(ctx, filters, decimal.NewFromFloat(price))
	if err != nil {
		return OutcomeVenueError, err
	}
	if !size.Viable {
		logger.Info("[%s] not viable at %.8f: %s", m.symbol, price, size.Reason)
		return OutcomeNotViable, nil
	}

	qtyStr := filters.FmtQty(size.Qty)
	qty, _ := size.Qty.Float64()

	// Маркет-вход. Провал здесь — чистый откат: позиции нет, ничего чинить.
	if _, err := m.venue.PlaceMarketOrder(ctx, m.symbol, sig.Side, qtyStr); err != nil {
		logger.Error("[%s] market entry failed: %v", m.symbol, err)
		return OutcomeVenueError, err
	}

	entry := price
	r := m.cfg.StopLossAtrMult * atr
	stopPrice := entry - r
	if sig.Side == models.SideSell {
		stopPrice = entry + r
	}

	m.st = models.TradeState{
		Active:         true,
		Side:           sig.Side,
		Entry:          entry,
		Qty:            qty,
		Leverage:       size.Leverage,
		R:              r,
		LastTrailPrice: stopPrice,
		OpenedAt:       m.now(),
	}
	m.cooldownUntil = m.now().Add(m.cooldown())

	amt := qty
	if sig.Side == models.SideSell {
		amt = -qty
	}
	m.gate.MarkOpened(models.PositionInfo{
		Symbol:      m.symbol,
		PositionAmt: amt,
		EntryPrice:  entry,
		Leverage:    size.Leverage,
	})
	reserved = false
	m.gate.Release(m.symbol)

	// Позиция уже есть: провал SL/TP не откатывает вход, а оставляет сделку
	// в деградированном режиме под присмотром Manage.
	if id, err := m.placeStop(ctx, filters, stopPrice); err != nil {
		logger.Error("[%s] SL placement failed, position UNPROTECTED: %v", m.symbol, err)
		m.notify.Notify(fmt.Sprintf("⚠️ %s: позиция открыта, но стоп НЕ выставлен: %v", m.symbol, err))
	} else {
		m.st.StopOrderID = id
	}

	m.placeTakeProfits(ctx, filters, size.Qty)

	m.notify.Notify(fmt.Sprintf("✅ %s %s qty=%s lev=%dx entry=%s SL=%s (%d TP)",
		m.symbol, sig.Side, qtyStr, size.Leverage,
		filters.FmtPrice(decimal.NewFromFloat(entry)),
		filters.FmtPrice(decimal.NewFromFloat(stopPrice)),
		m.st.PlacedTPs()))
	logger.Info("[%s] opened %s qty=%s lev=%dx entry=%.8f R=%.8f",
		m.symbol, sig.Side, qtyStr, size.Leverage, entry, r)
	return OutcomeOpened, nil
}

func (m *Machine) placeStop(ctx context.Context, f models.SymbolFilters, stopPrice float64) (int64, error) {
	px := decimal.NewFromFloat(stopPrice)
	if m.st.Side == models.SideBuy {
		px = f.FloorPrice(px)
	} else {
		px = f.CeilPrice(px)
	}
	return m.venue.PlaceStopMarket(ctx, m.symbol, m.st.Side.Opposite(), f.FmtPrice(px), "", true)
}

// placeTakeProfits выставляет лестницу тейков. Ноги кроме последней —
// частичные; последняя закрывает остаток closePosition, если лестница
// покрывает почти всю позицию.
func (m *Machine) placeTakeProfits(ctx context.Context, f models.SymbolFilters, qty decimal.Decimal) {
	targets := m.tpTargets()
	allocs := m.cfg.TPAllocation
	n := len(targets)
	if len(allocs) < n {
		n = len(allocs)
	}
	if n == 0 {
		return
	}

	m.st.TPOrderIDs = make([]int64, n)
	allocated := decimal.Zero
	allocSum := 0.0
	for i := 0; i < n; i++ {
		allocSum += allocs[i]
	}

	for i := 0; i < n; i++ {
		last := i == n-1
		px := decimal.NewFromFloat(targets[i])
		if m.st.Side == models.SideBuy {
			px = f.FloorPrice(px)
		} else {
			px = f.CeilPrice(px)
		}

		var legStr string
		closeAll := false
		if last && allocSum >= 0.9 {
			closeAll = true
		} else {
			leg := f.FloorQty(qty.Mul(decimal.NewFromFloat(allocs[i])))
			if leg.LessThan(f.MinQty) {
				leg = f.EnsureMinQty(leg)
			}
			remaining := qty.Sub(allocated)
			if leg.GreaterThan(remaining) {
				leg = f.FloorQty(remaining)
			}
			if leg.LessThanOrEqual(decimal.Zero) {
				logger.Info("[%s] TP leg %d skipped: qty too small", m.symbol, i+1)
				continue
			}
			allocated = allocated.Add(leg)
			legStr = f.FmtQty(leg)
		}

		id, err := m.venue.PlaceTakeProfitMarket(ctx, m.symbol, m.st.Side.Opposite(), f.FmtPrice(px), legStr, closeAll)
		if err != nil {
			logger.Error("[%s] TP leg %d failed: %v", m.symbol, i+1, err)
			continue
		}
		m.st.TPOrderIDs[i] = id
	}
}

// tpTargets — целевые цены лестницы по выбранной схеме.
func (m *Machine) tpTargets() []float64 {
	sign := 1.0
	if m.st.Side == models.SideSell {
		sign = -1.0
	}

	var targets []float64
	switch m.cfg.TPScheme {
	case "r_multiple":
		for _, mult := range m.cfg.TPRMultiples {
			targets = append(targets, m.st.Entry+sign*mult*m.st.R)
		}
	default: // pnl_pct: процент от нотионала позиции, target = entry*(1±pct/100)
		for _, pct := range m.cfg.TPPnlPercentages {
			targets = append(targets, m.st.Entry*(1+sign*pct/100))
		}
	}
	return targets
}
