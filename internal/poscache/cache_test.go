package poscache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp_bot/internal/models"
)

type venueStub struct {
	positions []models.PositionInfo
	orders    []models.OpenOrder
	err       error
	calls     int
}

func (v *venueStub) OpenPositions(context.Context) ([]models.PositionInfo, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.positions, nil
}

func (v *venueStub) OpenOrders(context.Context) ([]models.OpenOrder, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.orders, nil
}

func TestFreeSymbolAllowed(t *testing.T) {
	venue := &venueStub{}
	c := New(venue, time.Minute)

	free, reason := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.True(t, free)
	assert.Empty(t, reason)
}

func TestOpenPositionBlocks(t *testing.T) {
	venue := &venueStub{positions: []models.PositionInfo{{Symbol: "BTCUSDT", PositionAmt: 0.5}}}
	c := New(venue, time.Minute)

	free, reason := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.False(t, free)
	assert.Equal(t, "open position", reason)

	free, _ = c.IsSymbolFree(context.Background(), "ETHUSDT")
	assert.True(t, free)
}

func TestPendingEntryOrderBlocks(t *testing.T) {
	venue := &venueStub{orders: []models.OpenOrder{
		{OrderID: 1, Symbol: "BTCUSDT", Type: "LIMIT", Status: "NEW"},
		{OrderID: 2, Symbol: "ETHUSDT", Type: "STOP_MARKET", Status: "NEW"},
	}}
	c := New(venue, time.Minute)

	free, reason := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.False(t, free)
	assert.Equal(t, "pending entry order", reason)

	// стоп-ордер сопровождения не считается занятостью
	free, _ = c.IsSymbolFree(context.Background(), "ETHUSDT")
	assert.True(t, free)
}

func TestVenueErrorDeniesConservatively(t *testing.T) {
	venue := &venueStub{err: errors.New("timeout")}
	c := New(venue, time.Minute)

	free, reason := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.False(t, free)
	assert.Equal(t, "cache unavailable", reason)
}

func TestTTLForcesRefresh(t *testing.T) {
	venue := &venueStub{}
	c := New(venue, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Refresh(context.Background()))
	calls := venue.calls

	// свежий снапшот — без похода на биржу
	c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.Equal(t, calls, venue.calls)

	// протух — обязан сходить
	now = now.Add(61 * time.Second)
	venue.positions = []models.PositionInfo{{Symbol: "BTCUSDT", PositionAmt: 1}}
	free, _ := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.False(t, free)
	assert.Greater(t, venue.calls, calls)
}

func TestReservationBlocksUntilReleased(t *testing.T) {
	venue := &venueStub{}
	c := New(venue, time.Minute)

	require.True(t, c.Reserve("BTCUSDT"))
	assert.False(t, c.Reserve("BTCUSDT"), "повторная резервация не проходит")

	free, reason := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.False(t, free)
	assert.Equal(t, "reserved", reason)

	c.Release("BTCUSDT")
	free, _ = c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.True(t, free)
}

func TestMarkOpenedAndClosed(t *testing.T) {
	venue := &venueStub{}
	c := New(venue, time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	c.MarkOpened(models.PositionInfo{Symbol: "BTCUSDT", PositionAmt: 0.05})
	free, _ := c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.False(t, free)

	open, err := c.HasOpenPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, open)

	c.MarkClosed("BTCUSDT")
	free, _ = c.IsSymbolFree(context.Background(), "BTCUSDT")
	assert.True(t, free)
}

func TestActiveCountUnionOfPositionsAndEntries(t *testing.T) {
	venue := &venueStub{
		positions: []models.PositionInfo{
			{Symbol: "BTCUSDT", PositionAmt: 1},
			{Symbol: "ETHUSDT", PositionAmt: -2},
		},
		orders: []models.OpenOrder{
			{OrderID: 1, Symbol: "ETHUSDT", Type: "LIMIT", Status: "NEW"},
			{OrderID: 2, Symbol: "SOLUSDT", Type: "LIMIT", Status: "NEW"},
		},
	}
	c := New(venue, time.Minute)

	n, err := c.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n, "ETHUSDT считается один раз")
}
