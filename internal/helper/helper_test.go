package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormTF(t *testing.T) {
	assert.Equal(t, "1h", NormTF("60m"))
	assert.Equal(t, "1h", NormTF(" 1H "))
	assert.Equal(t, "5m", NormTF("5m"))
	assert.Equal(t, "4h", NormTF("240m"))
}

func TestTFDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TFDuration("1m"))
	assert.Equal(t, 15*time.Minute, TFDuration("15m"))
	assert.Equal(t, time.Hour, TFDuration("60m"))
	assert.Equal(t, 24*time.Hour, TFDuration("1d"))
	assert.Equal(t, time.Duration(0), TFDuration("bogus"))
}

func TestBarSlot(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 7, 42, 0, time.UTC)
	slot := BarSlot(at, "5m")
	assert.Equal(t, time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC), slot.UTC())
}
