package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp_bot/internal/models"
	"perp_bot/internal/modules/config"
)

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		EMAShort:      3,
		EMALong:       5,
		RSIPeriod:     3,
		RSIOverbought: 70,
		RSIOSold:      30,
	}
}

func bar(symbol, tf string, high, low, close float64) models.CandleTick {
	return models.CandleTick{Symbol: symbol, Timeframe: tf, High: high, Low: low, Close: close}
}

func TestATRNotReadyBeforeWarmup(t *testing.T) {
	tr := NewATRTracker(3)
	tr.Update(bar("BTCUSDT", "1m", 102, 100, 101))
	tr.Update(bar("BTCUSDT", "1m", 103, 101, 102))

	_, ok := tr.Value("BTCUSDT", "1m")
	assert.False(t, ok)
}

func TestATRConstantRange(t *testing.T) {
	tr := NewATRTracker(3)
	// стабильный диапазон 2 без гэпов: ATR сходится к 2
	px := 100.0
	for i := 0; i < 10; i++ {
		tr.Update(bar("BTCUSDT", "1m", px+2, px, px+1))
		px += 1
	}

	atr, ok := tr.Value("BTCUSDT", "1m")
	require.True(t, ok)
	assert.InDelta(t, 2.0, atr, 0.1)
}

func TestATRKeyedPerTimeframe(t *testing.T) {
	tr := NewATRTracker(2)
	for i := 0; i < 5; i++ {
		tr.Update(bar("BTCUSDT", "1m", 101, 100, 100.5))
	}

	_, ok := tr.Value("BTCUSDT", "5m")
	assert.False(t, ok, "другой таймфрейм не прогрет")

	_, ok = tr.Value("BTCUSDT", "1m")
	assert.True(t, ok)
}

func TestEMARSIWarmupSilent(t *testing.T) {
	e := NewEMARSI(testTradingConfig())

	for i := 0; i < 5; i++ {
		_, ok := e.OnBar(bar("BTCUSDT", "1m", 101, 99, 100))
		assert.False(t, ok, "во время прогрева решений нет")
	}
}

func TestEMARSIRisingMarketNoOversoldBuy(t *testing.T) {
	e := NewEMARSI(testTradingConfig())

	// монотонный рост: EMA в бычьем порядке, но RSI высоко — входа нет
	px := 100.0
	for i := 0; i < 50; i++ {
		d, ok := e.OnBar(bar("BTCUSDT", "1m", px+1, px-1, px))
		if ok {
			assert.NotEqual(t, "BUY", string(d.Side))
		}
		px += 1
	}
}
