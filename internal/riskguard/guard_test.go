package riskguard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type equityStub struct {
	value float64
	err   error
}

func (e *equityStub) AccountEquity(context.Context) (float64, error) {
	return e.value, e.err
}

type memStore struct {
	state State
	saved bool
}

func (m *memStore) Load(context.Context) (State, bool, error) {
	return m.state, m.saved, nil
}

func (m *memStore) Save(_ context.Context, s State) error {
	m.state = s
	m.saved = true
	return nil
}

func newTestGuard(equity *equityStub, store *memStore, at time.Time) *Guard {
	g := New(equity, store, 0.03)
	g.now = func() time.Time { return at }
	return g
}

func TestBaselineSetOnFirstEvaluate(t *testing.T) {
	eq := &equityStub{value: 1000}
	store := &memStore{}
	g := newTestGuard(eq, store, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	require.NoError(t, g.Evaluate(context.Background()))

	st := g.CurrentState()
	assert.Equal(t, "2026-08-30", st.Day)
	assert.Equal(t, 1000.0, st.Baseline)
	assert.False(t, g.Tripped())
	assert.True(t, store.saved, "база дня персистится")
}

func TestTripsAtThreeAndHalfPercentDrawdown(t *testing.T) {
	eq := &equityStub{value: 1000}
	store := &memStore{}
	g := newTestGuard(eq, store, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	require.NoError(t, g.Evaluate(context.Background()))

	eq.value = 965 // -3.5%
	require.NoError(t, g.Evaluate(context.Background()))

	assert.True(t, g.Tripped())
	assert.True(t, store.state.Tripped, "взвод персистится")
}

func TestDoesNotTripAtTwoAndHalfPercent(t *testing.T) {
	eq := &equityStub{value: 1000}
	store := &memStore{}
	g := newTestGuard(eq, store, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	require.NoError(t, g.Evaluate(context.Background()))

	eq.value = 975 // -2.5%
	require.NoError(t, g.Evaluate(context.Background()))

	assert.False(t, g.Tripped())
}

func TestDayRolloverResetsTrip(t *testing.T) {
	eq := &equityStub{value: 1000}
	store := &memStore{}
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	g := New(eq, store, 0.03)
	g.now = func() time.Time { return at }

	require.NoError(t, g.Evaluate(context.Background()))
	eq.value = 960
	require.NoError(t, g.Evaluate(context.Background()))
	require.True(t, g.Tripped())

	// новые UTC-сутки: база с текущего эквити, взвод снят
	at = at.Add(24 * time.Hour)
	require.NoError(t, g.Evaluate(context.Background()))

	assert.False(t, g.Tripped())
	st := g.CurrentState()
	assert.Equal(t, "2026-08-31", st.Day)
	assert.Equal(t, 960.0, st.Baseline)
}

func TestRestoreKeepsTodayTrip(t *testing.T) {
	eq := &equityStub{value: 1000}
	store := &memStore{
		state: State{Day: "2026-08-30", Baseline: 1000, Tripped: true},
		saved: true,
	}
	g := newTestGuard(eq, store, time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC))

	require.NoError(t, g.Restore(context.Background()))
	assert.True(t, g.Tripped())
}

func TestRestoredStaleTripDoesNotBlock(t *testing.T) {
	eq := &equityStub{value: 1000}
	store := &memStore{
		state: State{Day: "2026-08-29", Baseline: 1000, Tripped: true},
		saved: true,
	}
	g := newTestGuard(eq, store, time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC))

	require.NoError(t, g.Restore(context.Background()))
	assert.False(t, g.Tripped(), "вчерашний взвод не держит сегодня")
}
