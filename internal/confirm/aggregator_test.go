package confirm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp_bot/internal/models"
)

func decision(tf string, side models.Side, conf, price float64) models.TimeframeDecision {
	return models.TimeframeDecision{
		Symbol:     "BTCUSDT",
		Timeframe:  tf,
		Side:       side,
		Confidence: conf,
		Price:      price,
	}
}

func TestSingleVoteDoesNotConfirm(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	_, ok := agg.Confirm("BTCUSDT")
	assert.False(t, ok)
}

func TestQuorumConfirms(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	agg.Add(decision("5m", models.SideBuy, 0.6, 102))

	sig, ok := agg.Confirm("BTCUSDT")
	require.True(t, ok)

	assert.Equal(t, models.SideBuy, sig.Side)
	assert.Equal(t, 2, sig.Confirmations)
	assert.InDelta(t, 0.7, sig.AvgConfidence, 1e-9)
	assert.InDelta(t, 101, sig.AvgPrice, 1e-9)
	assert.Equal(t, []string{"1m", "5m"}, sig.Timeframes)
}

func TestAllTimeframesCountedOnce(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	agg.Add(decision("3m", models.SideBuy, 0.7, 100))
	agg.Add(decision("5m", models.SideBuy, 0.6, 100))

	sig, ok := agg.Confirm("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 3, sig.Confirmations)

	// ровно одно подтверждение на кворум
	_, ok = agg.Confirm("BTCUSDT")
	assert.False(t, ok)
}

func TestOpposingVotesDoNotConfirm(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	agg.Add(decision("5m", models.SideSell, 0.8, 100))

	_, ok := agg.Confirm("BTCUSDT")
	assert.False(t, ok)
}

func TestDissentersSurviveConfirm(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	agg.Add(decision("3m", models.SideSell, 0.9, 100))
	agg.Add(decision("5m", models.SideBuy, 0.6, 100))

	sig, ok := agg.Confirm("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, models.SideBuy, sig.Side)
	assert.Equal(t, 2, sig.Confirmations)

	// несогласный голос остался и ждёт подкрепления
	agg.Add(decision("1m", models.SideSell, 0.9, 99))
	sig, ok = agg.Confirm("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, models.SideSell, sig.Side)
}

func TestExpiredVoteExcluded(t *testing.T) {
	agg := New(300*time.Second, 2)
	now := time.Unix(1_700_000_000, 0)
	agg.now = func() time.Time { return now }

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))

	// второй голос за пределами окна: первый уже протух
	now = now.Add(301 * time.Second)
	agg.Add(decision("5m", models.SideBuy, 0.8, 100))
	_, ok := agg.Confirm("BTCUSDT")
	require.False(t, ok)

	// третий в окне второго — кворум
	now = now.Add(10 * time.Second)
	agg.Add(decision("3m", models.SideBuy, 0.8, 100))
	sig, ok := agg.Confirm("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 2, sig.Confirmations)
}

func TestRevoteReplacesTimeframe(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	// тот же таймфрейм передумал: один голос на таймфрейм, кворума нет
	agg.Add(decision("1m", models.SideSell, 0.9, 99))
	agg.Add(decision("1m", models.SideBuy, 0.9, 100))

	_, ok := agg.Confirm("BTCUSDT")
	assert.False(t, ok)
}

func TestNeutralRetractsVote(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	// голос отозван
	agg.Add(decision("1m", models.SideNone, 0, 100))
	agg.Add(decision("5m", models.SideBuy, 0.8, 100))

	_, ok := agg.Confirm("BTCUSDT")
	assert.False(t, ok, "после отзыва остаётся один голос")
}

func TestQuorumConsumedAfterConfirm(t *testing.T) {
	agg := New(300*time.Second, 2)

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	agg.Add(decision("5m", models.SideBuy, 0.8, 100))
	_, ok := agg.Confirm("BTCUSDT")
	require.True(t, ok)

	// голоса потрачены: новое подтверждение требует свежего кворума
	agg.Add(decision("3m", models.SideBuy, 0.8, 100))
	_, ok = agg.Confirm("BTCUSDT")
	assert.False(t, ok)
}

func TestPurgeStaleDropsSilentSymbols(t *testing.T) {
	agg := New(300*time.Second, 2)
	now := time.Unix(1_700_000_000, 0)
	agg.now = func() time.Time { return now }

	agg.Add(decision("1m", models.SideBuy, 0.8, 100))
	require.Len(t, agg.votes, 1)

	now = now.Add(601 * time.Second)
	agg.PurgeStale()
	assert.Empty(t, agg.votes)
}
