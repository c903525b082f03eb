package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SymbolFilters — правила квантования символа. Резолвятся один раз и
// кешируются навсегда: биржа их практически не меняет.
type SymbolFilters struct {
	Symbol      string
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
	MaxLeverage int

	PriceDecimals int32
	QtyDecimals   int32
}

func (f SymbolFilters) FloorPrice(px decimal.Decimal) decimal.Decimal {
	return floorStep(px, f.TickSize)
}

func (f SymbolFilters) CeilPrice(px decimal.Decimal) decimal.Decimal {
	return ceilStep(px, f.TickSize)
}

func (f SymbolFilters) FloorQty(q decimal.Decimal) decimal.Decimal {
	return floorStep(q, f.StepSize)
}

func (f SymbolFilters) CeilQty(q decimal.Decimal) decimal.Decimal {
	return ceilStep(q, f.StepSize)
}

// EnsureMinQty поднимает qty до минимального размера (потолок к шагу).
func (f SymbolFilters) EnsureMinQty(q decimal.Decimal) decimal.Decimal {
	if f.MinQty.IsPositive() && q.LessThan(f.MinQty) {
		return ceilStep(f.MinQty, f.StepSize)
	}
	return q
}

// EnsureMinNotional поднимает qty так, чтобы price*qty >= minNotional.
func (f SymbolFilters) EnsureMinNotional(price, q decimal.Decimal) decimal.Decimal {
	if f.MinNotional.IsPositive() && price.Mul(q).LessThan(f.MinNotional) {
		return ceilStep(f.MinNotional.Div(price), f.StepSize)
	}
	return q
}

func (f SymbolFilters) FmtPrice(px decimal.Decimal) string {
	return px.StringFixed(f.PriceDecimals)
}

func (f SymbolFilters) FmtQty(q decimal.Decimal) string {
	return q.StringFixed(f.QtyDecimals)
}

func floorStep(x, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return x
	}
	return x.Div(step).Floor().Mul(step)
}

func ceilStep(x, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return x
	}
	return x.Div(step).Ceil().Mul(step)
}

// DecimalsFromStep: "0.01000000" -> 2, "1" -> 0.
func DecimalsFromStep(step string) int32 {
	if i := strings.IndexByte(step, '.'); i >= 0 {
		return int32(len(strings.TrimRight(step[i+1:], "0")))
	}
	return 0
}
