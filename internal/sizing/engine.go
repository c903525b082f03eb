package sizing

import (
	"context"

	"github.com/shopspring/decimal"

	"perp_bot/internal/models"
	"perp_bot/pkg/logger"
)

// LeverageSetter — биржевой вызов смены плеча. Реализует клиент.
type LeverageSetter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// Result — типизированный исход подбора размера. Viable=false — не ошибка,
// а штатный вердикт "символ не влезает в маржу", с причиной для оператора.
type Result struct {
	Qty      decimal.Decimal
	Leverage int
	Viable   bool
	Reason   string
}

const (
	ReasonBelowMinNotional = "below_min_notional"
	ReasonLeverageCapped   = "leverage_capped"
	ReasonVenueRejected    = "venue_rejected"
)

// Engine подбирает количество под фиксированную маржу: плечо растёт до
// минимума, с которого нотционал проходит биржевые фильтры.
type Engine struct {
	venue          LeverageSetter
	margin         decimal.Decimal
	fallbackMargin decimal.Decimal
}

func New(venue LeverageSetter, marginUSDT, fallbackMargin string) *Engine {
	return &Engine{
		venue:          venue,
		margin:         decimal.RequireFromString(marginUSDT),
		fallbackMargin: decimal.RequireFromString(fallbackMargin),
	}
}

// DecideQtyForMargin: сначала целевая маржа, при нехватке — запасная.
func (e *Engine) DecideQtyForMargin(ctx context.Context, f models.SymbolFilters, price decimal.Decimal) (Result, error) {
	res, err := e.tryMargin(ctx, f, price, e.margin)
	if err != nil || res.Viable {
		return res, err
	}
	if e.fallbackMargin.GreaterThan(e.margin) {
		logger.Info("[%s] margin %s too small, retrying with fallback %s",
			f.Symbol, e.margin, e.fallbackMargin)
		return e.tryMargin(ctx, f, price, e.fallbackMargin)
	}
	return res, nil
}

func (e *Engine) tryMargin(ctx context.Context, f models.SymbolFilters, price, margin decimal.Decimal) (Result, error) {
	if price.LessThanOrEqual(decimal.Zero) || margin.LessThanOrEqual(decimal.Zero) {
		return Result{Viable: false, Reason: ReasonBelowMinNotional}, nil
	}

	// Минимально допустимый нотционал: фильтр биржи либо стоимость одного
	// шага количества, что больше.
	stepNotional := price.Mul(f.StepSize)
	minNotional := f.MinNotional
	if stepNotional.GreaterThan(minNotional) {
		minNotional = stepNotional
	}

	minLev := minNotional.Div(margin).Ceil().IntPart()
	if minLev < 1 {
		minLev = 1
	}
	if f.MaxLeverage > 0 && minLev > int64(f.MaxLeverage) {
		return Result{Viable: false, Reason: ReasonLeverageCapped}, nil
	}
	lev := int(minLev)

	qty := margin.Mul(decimal.NewFromInt(int64(lev))).Div(price)
	qty = f.FloorQty(qty)
	qty = f.EnsureMinQty(qty)
	qty = f.EnsureMinNotional(price, qty)
	if qty.LessThanOrEqual(decimal.Zero) {
		return Result{Viable: false, Reason: ReasonBelowMinNotional}, nil
	}

	// Округления вверх могли раздуть фактическую маржу. Допуск 1%, сверх
	// него — ужимаемся на шаг; если ужатое не проходит фильтры, бюджет
	// на этой марже не сходится и вердикт отрицательный.
	actualMargin := qty.Mul(price).Div(decimal.NewFromInt(int64(lev)))
	tolerance := margin.Mul(decimal.RequireFromString("1.01"))
	if actualMargin.GreaterThan(tolerance) {
		shrunk := f.FloorQty(qty.Sub(f.StepSize))
		if shrunk.LessThan(f.MinQty) ||
			shrunk.Mul(price).LessThan(f.MinNotional) ||
			shrunk.LessThanOrEqual(decimal.Zero) {
			return Result{Viable: false, Reason: ReasonBelowMinNotional}, nil
		}
		qty = shrunk
	}

	if err := e.venue.SetLeverage(ctx, f.Symbol, lev); err != nil {
		logger.Error("[%s] set leverage %dx: %v", f.Symbol, lev, err)
		return Result{Viable: false, Reason: ReasonVenueRejected}, nil
	}

	return Result{Qty: qty, Leverage: lev, Viable: true}, nil
}
