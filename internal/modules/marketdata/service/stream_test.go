package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const finalKline = `{
	"stream": "btcusdt@kline_1m",
	"data": {
		"e": "kline",
		"k": {
			"t": 1700000000000,
			"T": 1700000059999,
			"s": "BTCUSDT",
			"i": "1m",
			"o": "50000.10",
			"c": "50100.00",
			"h": "50150.00",
			"l": "49990.00",
			"v": "12.345",
			"x": true
		}
	}
}`

func TestParseKlineFinalBar(t *testing.T) {
	ct, ok, err := parseKline([]byte(finalKline))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "BTCUSDT", ct.Symbol)
	assert.Equal(t, "1m", ct.Timeframe)
	assert.Equal(t, 50000.10, ct.Open)
	assert.Equal(t, 50100.00, ct.Close)
	assert.Equal(t, 50150.00, ct.High)
	assert.Equal(t, 49990.00, ct.Low)
	assert.Equal(t, 12.345, ct.Volume)
	assert.Equal(t, time.UnixMilli(1700000000000), ct.Start)
}

func TestParseKlineSkipsOpenBar(t *testing.T) {
	raw := `{"stream":"btcusdt@kline_1m","data":{"e":"kline","k":{"s":"BTCUSDT","i":"1m","o":"1","c":"1","h":"1","l":"1","v":"1","x":false}}}`

	_, ok, err := parseKline([]byte(raw))
	require.NoError(t, err)
	assert.False(t, ok, "незакрытая свеча не проходит")
}

func TestParseKlineRejectsForeignEvent(t *testing.T) {
	raw := `{"stream":"btcusdt@markPrice","data":{"e":"markPriceUpdate"}}`

	_, _, err := parseKline([]byte(raw))
	assert.Error(t, err)
}

func TestParseKlineRejectsBadNumbers(t *testing.T) {
	raw := `{"stream":"x","data":{"e":"kline","k":{"s":"BTCUSDT","i":"1m","o":"abc","c":"1","h":"1","l":"1","v":"1","x":true}}}`

	_, _, err := parseKline([]byte(raw))
	assert.Error(t, err)
}
