package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func btcFilters() SymbolFilters {
	return SymbolFilters{
		Symbol:        "BTCUSDT",
		TickSize:      decimal.RequireFromString("0.10"),
		StepSize:      decimal.RequireFromString("0.001"),
		MinQty:        decimal.RequireFromString("0.001"),
		MinNotional:   decimal.RequireFromString("100"),
		PriceDecimals: 1,
		QtyDecimals:   3,
	}
}

func TestPriceQuantization(t *testing.T) {
	f := btcFilters()

	assert.Equal(t, "50000.1", f.FmtPrice(f.FloorPrice(decimal.RequireFromString("50000.19"))))
	assert.Equal(t, "50000.2", f.FmtPrice(f.CeilPrice(decimal.RequireFromString("50000.11"))))
}

func TestQtyQuantization(t *testing.T) {
	f := btcFilters()

	assert.Equal(t, "0.123", f.FmtQty(f.FloorQty(decimal.RequireFromString("0.12399"))))
	assert.Equal(t, "0.124", f.FmtQty(f.CeilQty(decimal.RequireFromString("0.12301"))))
}

func TestEnsureMinNotionalRoundsUp(t *testing.T) {
	f := btcFilters()

	// 100 / 50000 = 0.002 ровно на шаге
	q := f.EnsureMinNotional(decimal.RequireFromString("50000"), decimal.RequireFromString("0.001"))
	assert.True(t, q.Equal(decimal.RequireFromString("0.002")), "q=%s", q)

	// уже достаточно — не трогаем
	q = f.EnsureMinNotional(decimal.RequireFromString("50000"), decimal.RequireFromString("0.003"))
	assert.True(t, q.Equal(decimal.RequireFromString("0.003")))
}

func TestDecimalsFromStep(t *testing.T) {
	assert.Equal(t, int32(2), DecimalsFromStep("0.01000000"))
	assert.Equal(t, int32(0), DecimalsFromStep("1"))
	assert.Equal(t, int32(3), DecimalsFromStep("0.001"))
}

func TestPositionSide(t *testing.T) {
	assert.Equal(t, SideBuy, PositionInfo{PositionAmt: 0.5}.Side())
	assert.Equal(t, SideSell, PositionInfo{PositionAmt: -0.5}.Side())
	assert.Equal(t, SideNone, PositionInfo{}.Side())
}
