package service

import (
	"math"
	"sync"

	"perp_bot/internal/models"
)

// ATRTracker — волатильность по Уайлдеру на пару символ+таймфрейм.
// До прогрева значения нет, и сайзинг по такому символу не стартует.
type ATRTracker struct {
	mu     sync.Mutex
	period int
	states map[string]*atrState
}

type atrState struct {
	prevClose float64
	atr       float64
	samples   int
	primed    bool
}

func NewATRTracker(period int) *ATRTracker {
	if period < 1 {
		period = 14
	}
	return &ATRTracker{period: period, states: map[string]*atrState{}}
}

func (a *ATRTracker) Update(bar models.CandleTick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := bar.Symbol + "|" + bar.Timeframe
	st := a.states[key]
	if st == nil {
		st = &atrState{}
		a.states[key] = st
	}

	if !st.primed {
		st.prevClose = bar.Close
		st.primed = true
		return
	}

	tr := bar.High - bar.Low
	if d := math.Abs(bar.High - st.prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(bar.Low - st.prevClose); d > tr {
		tr = d
	}
	st.prevClose = bar.Close

	n := float64(a.period)
	if st.samples == 0 {
		st.atr = tr
	} else {
		st.atr = (st.atr*(n-1) + tr) / n
	}
	st.samples++
}

// Value — текущий ATR; ok==false до прогрева.
func (a *ATRTracker) Value(symbol, timeframe string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.states[symbol+"|"+timeframe]
	if st == nil || st.samples < a.period {
		return 0, false
	}
	return st.atr, true
}
