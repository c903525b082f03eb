package runner

import (
	"context"

	"perp_bot/internal/confirm"
	"perp_bot/internal/journal"
	"perp_bot/internal/lifecycle"
	"perp_bot/internal/models"
	strategysvc "perp_bot/internal/modules/strategy/service"
	"perp_bot/pkg/logger"
)

// SymbolSession — воркер одного символа. Все решения и управление сделкой
// идут из одной горутины: машине не нужны локи.
type SymbolSession struct {
	symbol   string
	manageTF string

	bars    chan models.CandleTick
	machine *lifecycle.Machine
	source  strategysvc.DecisionSource
	atr     *strategysvc.ATRTracker
	agg     *confirm.Aggregator
	journal *journal.Journal
}

func NewSymbolSession(
	symbol, manageTF string,
	machine *lifecycle.Machine,
	source strategysvc.DecisionSource,
	atr *strategysvc.ATRTracker,
	agg *confirm.Aggregator,
	jrnl *journal.Journal,
) *SymbolSession {
	return &SymbolSession{
		symbol:   symbol,
		manageTF: manageTF,
		bars:     make(chan models.CandleTick, 256),
		machine:  machine,
		source:   source,
		atr:      atr,
		agg:      agg,
		journal:  jrnl,
	}
}

// Enqueue — неблокирующая подача свечи. Переполнение очереди — потеря бара,
// не затык всего роутера.
func (s *SymbolSession) Enqueue(bar models.CandleTick) bool {
	select {
	case s.bars <- bar:
		return true
	default:
		return false
	}
}

func (s *SymbolSession) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar := <-s.bars:
			s.handle(ctx, bar)
		}
	}
}

func (s *SymbolSession) handle(ctx context.Context, bar models.CandleTick) {
	s.atr.Update(bar)

	if d, ok := s.source.OnBar(bar); ok {
		s.agg.Add(d)
	}

	// Вердикт только на баре рабочего таймфрейма: старшие таймфреймы,
	// закрывшиеся в ту же секунду, к этому моменту уже проголосовали.
	if bar.Timeframe == s.manageTF {
		if sig, confirmed := s.agg.Confirm(s.symbol); confirmed {
			s.tryOpen(ctx, sig, bar)
		}
		s.manage(ctx, bar)
	}
}

func (s *SymbolSession) tryOpen(ctx context.Context, sig models.ConfirmedSignal, bar models.CandleTick) {
	atr, ok := s.atr.Value(bar.Symbol, bar.Timeframe)
	if !ok {
		logger.Info("[%s] confirmed %s, but ATR not warmed up on %s", s.symbol, sig.Side, bar.Timeframe)
		return
	}

	outcome, err := s.machine.OpenTrade(ctx, sig, atr)
	if err != nil {
		logger.Error("[%s] open trade: %v", s.symbol, err)
	}

	switch outcome {
	case lifecycle.OutcomeOpened:
		st := s.machine.State()
		s.journal.Record(ctx, s.symbol, journal.EventOpened, map[string]any{
			"side":     st.Side,
			"entry":    st.Entry,
			"qty":      st.Qty,
			"leverage": st.Leverage,
			"r":        st.R,
			"tfs":      sig.Timeframes,
			"avgConf":  sig.AvgConfidence,
		})
	case lifecycle.OutcomeAlreadyActive, lifecycle.OutcomeCooldown:
		// тихие отказы, бывают на каждом подтверждении при открытой сделке
	default:
		logger.Info("[%s] entry rejected: %s", s.symbol, outcome)
		s.journal.Record(ctx, s.symbol, journal.EventRejected, map[string]any{
			"side":    sig.Side,
			"outcome": outcome,
		})
	}
}

func (s *SymbolSession) manage(ctx context.Context, bar models.CandleTick) {
	before := s.machine.State()
	if !before.Active {
		return
	}

	atr, _ := s.atr.Value(bar.Symbol, s.manageTF)
	if err := s.machine.Manage(ctx, bar.Close, atr); err != nil {
		return
	}

	after := s.machine.State()
	if before.Active && !after.Active {
		s.journal.Record(ctx, s.symbol, journal.EventClosed, map[string]any{
			"side":     before.Side,
			"entry":    before.Entry,
			"exitNear": bar.Close,
			"maxR":     before.MaxFavorableR,
		})
	} else if after.StopOrderID != before.StopOrderID && after.StopOrderID != 0 {
		s.journal.Record(ctx, s.symbol, journal.EventStopMove, map[string]any{
			"stop":      after.LastTrailPrice,
			"breakEven": after.BreakEvenMoved,
			"trailing":  after.TrailingActive,
		})
	}
}
