package confirm

import (
	"sync"
	"time"

	"perp_bot/internal/models"
)

// Aggregator копит голоса таймфреймов по символу. Добавление только
// регистрирует голос; подтверждение спрашивают отдельно (Confirm), чтобы
// одновременно закрывшиеся таймфреймы успели проголосовать до вердикта.
type Aggregator struct {
	window  time.Duration
	minConf int

	mu    sync.Mutex
	votes map[string][]vote // порядок вставки важен для детерминизма

	met Metrics

	now func() time.Time
}

type vote struct {
	tf   string
	side models.Side
	conf float64
	prc  float64
	at   time.Time
}

type Metrics struct {
	VotesAccepted int64
	VotesExpired  int64
	Confirmations int64
	VotesByTF     map[string]int64
}

func New(window time.Duration, minConfirmations int) *Aggregator {
	return &Aggregator{
		window:  window,
		minConf: minConfirmations,
		votes:   make(map[string][]vote),
		now:     time.Now,
	}
}

// Add регистрирует решение таймфрейма. Нейтральное решение отзывает прежний
// голос этого таймфрейма. Один голос на таймфрейм: новый заменяет старый.
func (a *Aggregator) Add(d models.TimeframeDecision) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	votes := a.prune(d.Symbol, now)

	for i, v := range votes {
		if v.tf == d.Timeframe {
			votes = append(votes[:i], votes[i+1:]...)
			break
		}
	}
	if d.Side != models.SideNone {
		votes = append(votes, vote{tf: d.Timeframe, side: d.Side, conf: d.Confidence, prc: d.Price, at: now})
		a.met.VotesAccepted++
		if a.met.VotesByTF == nil {
			a.met.VotesByTF = make(map[string]int64)
		}
		a.met.VotesByTF[d.Timeframe]++
	}
	a.votes[d.Symbol] = votes
}

// Confirm выносит вердикт по накопленным голосам. Кворум собирает сторона
// первого живого голоса (first-quorum-wins в порядке вставки). Согласные
// голоса расходуются: повторное подтверждение требует свежего кворума.
func (a *Aggregator) Confirm(symbol string) (models.ConfirmedSignal, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	votes := a.prune(symbol, now)
	a.votes[symbol] = votes
	if len(votes) == 0 {
		return models.ConfirmedSignal{}, false
	}

	side := votes[0].side
	var agreeing []vote
	for _, v := range votes {
		if v.side == side {
			agreeing = append(agreeing, v)
		}
	}
	if len(agreeing) < a.minConf {
		return models.ConfirmedSignal{}, false
	}

	var sumConf, sumPrc float64
	tfs := make([]string, 0, len(agreeing))
	for _, v := range agreeing {
		sumConf += v.conf
		sumPrc += v.prc
		tfs = append(tfs, v.tf)
	}
	n := float64(len(agreeing))

	remaining := votes[:0]
	for _, v := range votes {
		if v.side != side {
			remaining = append(remaining, v)
		}
	}
	a.votes[symbol] = remaining
	a.met.Confirmations++

	return models.ConfirmedSignal{
		Symbol:        symbol,
		Side:          side,
		Confirmations: len(agreeing),
		AvgConfidence: sumConf / n,
		AvgPrice:      sumPrc / n,
		Timeframes:    tfs,
		At:            now,
	}, true
}

func (a *Aggregator) prune(symbol string, now time.Time) []vote {
	votes := a.votes[symbol]
	kept := votes[:0]
	for _, v := range votes {
		if now.Sub(v.at) <= a.window {
			kept = append(kept, v)
		} else {
			a.met.VotesExpired++
		}
	}
	return kept
}

// PurgeStale выкидывает символы, молчащие дольше двойного окна.
func (a *Aggregator) PurgeStale() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for sym, votes := range a.votes {
		alive := false
		for _, v := range votes {
			if now.Sub(v.at) <= 2*a.window {
				alive = true
				break
			}
		}
		if !alive {
			delete(a.votes, sym)
		}
	}
}

func (a *Aggregator) Snapshot() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.met
	out.VotesByTF = make(map[string]int64, len(a.met.VotesByTF))
	for tf, n := range a.met.VotesByTF {
		out.VotesByTF[tf] = n
	}
	return out
}
