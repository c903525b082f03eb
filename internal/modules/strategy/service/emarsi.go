package service

import (
	"sync"

	"perp_bot/internal/models"
	"perp_bot/internal/modules/config"
)

// EMARSI — откатная логика: тренд по паре EMA, вход на выходе RSI из зоны.
// Состояние ведётся на пару символ+таймфрейм, решения независимы.
type EMARSI struct {
	mu  sync.Mutex
	cfg config.TradingConfig

	states map[string]*emarsiState
}

type emarsiState struct {
	emaShort emaState
	emaLong  emaState
	rsi      rsiState
	lastSide models.Side
}

type rsiState struct {
	period      int
	prev        float64
	avgGain     float64
	avgLoss     float64
	samples     int
	initialized bool
}

func NewEMARSI(cfg config.TradingConfig) *EMARSI {
	return &EMARSI{
		cfg:    cfg,
		states: map[string]*emarsiState{},
	}
}

func (e *EMARSI) Name() string { return "emarsi" }

func (e *EMARSI) OnBar(bar models.CandleTick) (models.TimeframeDecision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := bar.Symbol + "|" + bar.Timeframe
	st := e.states[key]
	if st == nil {
		st = &emarsiState{
			emaShort: newEMA(e.cfg.EMAShort),
			emaLong:  newEMA(e.cfg.EMALong),
			rsi:      rsiState{period: e.cfg.RSIPeriod},
		}
		e.states[key] = st
	}

	price := bar.Close
	st.emaShort.Update(price)
	st.emaLong.Update(price)
	rsi, rsiReady := st.rsi.Update(price)

	if !st.emaLong.Ready() || !rsiReady {
		return models.TimeframeDecision{}, false
	}

	var side models.Side
	if st.emaShort.Value() > st.emaLong.Value() && rsi < e.cfg.RSIOSold {
		side = models.SideBuy
	} else if st.emaShort.Value() < st.emaLong.Value() && rsi > e.cfg.RSIOverbought {
		side = models.SideSell
	}

	d := models.TimeframeDecision{
		Symbol:    bar.Symbol,
		Timeframe: bar.Timeframe,
		Side:      side,
		Price:     price,
		At:        bar.End,
	}

	if side == models.SideNone {
		// сетап распался: отзываем голос таймфрейма и разрешаем повтор
		if st.lastSide != models.SideNone {
			st.lastSide = models.SideNone
			return d, true
		}
		return models.TimeframeDecision{}, false
	}

	// один голос на смену стороны, без повторов на каждом баре
	if side == st.lastSide {
		return models.TimeframeDecision{}, false
	}
	st.lastSide = side

	d.Confidence = confidence(st.emaShort.Value(), st.emaLong.Value(), price, rsi,
		e.cfg.RSIOverbought, e.cfg.RSIOSold, side)
	return d, true
}

// confidence: 0.5 базы + до 0.25 за разведение EMA + до 0.25 за глубину RSI.
func confidence(emaS, emaL, price, rsi, ob, os float64, side models.Side) float64 {
	conf := 0.5

	if price > 0 {
		gap := (emaS - emaL) / price
		if gap < 0 {
			gap = -gap
		}
		ema := gap * 100 // 1% разведения = полный вес
		if ema > 0.25 {
			ema = 0.25
		}
		conf += ema
	}

	var depth float64
	if side == models.SideBuy && os > 0 {
		depth = (os - rsi) / os
	} else if side == models.SideSell && ob < 100 {
		depth = (rsi - ob) / (100 - ob)
	}
	if depth < 0 {
		depth = 0
	}
	conf += depth * 0.25

	if conf > 1 {
		conf = 1
	}
	return conf
}

func (r *rsiState) Update(price float64) (float64, bool) {
	if !r.initialized {
		r.prev = price
		r.initialized = true
		return 0, false
	}

	change := price - r.prev
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	r.prev = price

	alpha := 1.0 / float64(r.period)
	if r.samples == 0 {
		r.avgGain, r.avgLoss = gain, loss
	} else {
		r.avgGain = (1-alpha)*r.avgGain + alpha*gain
		r.avgLoss = (1-alpha)*r.avgLoss + alpha*loss
	}
	r.samples++
	if r.samples < r.period {
		return 0, false
	}

	if r.avgLoss == 0 {
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}
