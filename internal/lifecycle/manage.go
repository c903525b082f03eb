package lifecycle

import (
	"context"
	"fmt"

	"perp_bot/internal/models"
	"perp_bot/pkg/logger"
)

// Manage — один шаг сопровождения на закрытом баре: детект закрытия,
// безубыток, трейлинг. Вызывается даже при взведённом стопе дня: открытую
// позицию бросать нельзя.
func (m *Machine) Manage(ctx context.Context, price, atr float64) error {
	if !m.st.Active {
		return nil
	}

	open, err := m.gate.HasOpenPosition(ctx, m.symbol)
	if err != nil {
		// неизвестное состояние: стопы не трогаем до следующего бара
		logger.Error("[%s] manage: position check failed: %v", m.symbol, err)
		return err
	}
	if !open {
		m.onClosed(ctx, price)
		return nil
	}

	r := m.favorableR(price)
	if r > m.st.MaxFavorableR {
		m.st.MaxFavorableR = r
	}

	if !m.st.BreakEvenMoved && r >= m.cfg.BreakEvenR {
		m.moveToBreakEven(ctx)
	}

	if !m.st.TrailingActive && m.st.MaxFavorableR >= m.cfg.TrailingActivateR {
		m.st.TrailingActive = true
		logger.Info("[%s] trailing activated at %.2fR", m.symbol, m.st.MaxFavorableR)
	}
	if m.st.TrailingActive && atr > 0 {
		m.trail(ctx, price, atr, r)
	}
	return nil
}

// favorableR — текущий ход в пользу позиции, в единицах R.
func (m *Machine) favorableR(price float64) float64 {
	if m.st.R <= 0 {
		return 0
	}
	if m.st.Side == models.SideBuy {
		return (price - m.st.Entry) / m.st.R
	}
	return (m.st.Entry - price) / m.st.R
}

// onClosed — позиция ушла с биржи (стоп, тейк или ручное закрытие).
// Снимаем осиротевшие ордера и начинаем остывание.
func (m *Machine) onClosed(ctx context.Context, price float64) {
	for _, id := range append([]int64{m.st.StopOrderID}, m.st.TPOrderIDs...) {
		if id == 0 {
			continue
		}
		if err := m.venue.CancelOrder(ctx, m.symbol, id); err != nil {
			// ордер мог исполниться или уже сняться вместе с позицией
			logger.Info("[%s] cancel leftover order %d: %v", m.symbol, id, err)
		}
	}

	r := m.favorableR(price)
	m.notify.Notify(fmt.Sprintf("🔚 %s закрыта около %.8f (~%.2fR, max %.2fR)",
		m.symbol, price, r, m.st.MaxFavorableR))
	logger.Info("[%s] position closed near %.8f (~%.2fR)", m.symbol, price, r)

	m.st = models.TradeState{}
	m.cooldownUntil = m.now().Add(m.cooldown())
	m.met.Closes++
	m.gate.MarkClosed(m.symbol)
}

// moveToBreakEven переносит стоп на вход со сдвигом на две комиссии.
// Флаг взводится только после успешной замены на бирже.
func (m *Machine) moveToBreakEven(ctx context.Context) {
	offset := m.st.Entry * m.cfg.CommissionRate * 2
	bePrice := m.st.Entry + offset
	if m.st.Side == models.SideSell {
		bePrice = m.st.Entry - offset
	}

	if !m.replaceStop(ctx, bePrice) {
		return
	}
	m.st.BreakEvenMoved = true
	m.st.LastTrailPrice = bePrice
	m.notify.Notify(fmt.Sprintf("🛡 %s: стоп в безубыток %.8f", m.symbol, bePrice))
	logger.Info("[%s] stop moved to break-even %.8f", m.symbol, bePrice)
}

// trail подтягивает стоп за ценой. Только в сторону профита и только если
// сдвиг заметный, чтобы не дёргать биржу на каждый бар.
func (m *Machine) trail(ctx context.Context, price, atr, r float64) {
	dist := m.cfg.TrailingAtrMult * atr * m.trailFactor(r)
	candidate := price - dist
	if m.st.Side == models.SideSell {
		candidate = price + dist
	}

	minMove := m.cfg.TrailingMinMove * atr
	if m.st.Side == models.SideBuy {
		if candidate-m.st.LastTrailPrice < minMove {
			return
		}
	} else {
		if m.st.LastTrailPrice-candidate < minMove {
			return
		}
	}

	if !m.replaceStop(ctx, candidate) {
		return
	}
	m.st.LastTrailPrice = candidate
	logger.Info("[%s] trail stop -> %.8f (%.2fR max)", m.symbol, candidate, m.st.MaxFavorableR)
}

// trailFactor сжимает дистанцию трейла по текущему ходу бара: чем дальше
// ушли, тем плотнее ведём.
func (m *Machine) trailFactor(r float64) float64 {
	switch {
	case r >= 3:
		return 0.5
	case r >= 2:
		return 0.7
	case r >= 1.5:
		return 0.8
	default:
		return 1.0
	}
}

// replaceStop — снять старый стоп, поставить новый. Провал установки после
// снятия оставляет позицию без стопа: шумим и пробуем на следующем баре.
func (m *Machine) replaceStop(ctx context.Context, stopPrice float64) bool {
	filters, err := m.filters.Resolve(ctx, m.symbol)
	if err != nil {
		logger.Error("[%s] replace stop: filters: %v", m.symbol, err)
		return false
	}

	if m.st.StopOrderID != 0 {
		if err := m.venue.CancelOrder(ctx, m.symbol, m.st.StopOrderID); err != nil {
			logger.Error("[%s] cancel stop %d: %v", m.symbol, m.st.StopOrderID, err)
			return false
		}
		m.st.StopOrderID = 0
	}

	id, err := m.placeStop(ctx, filters, stopPrice)
	if err != nil {
		logger.Error("[%s] place stop %.8f failed, position UNPROTECTED: %v", m.symbol, stopPrice, err)
		m.notify.Notify(fmt.Sprintf("⚠️ %s: стоп снят, новый НЕ выставлен: %v", m.symbol, err))
		return false
	}
	m.st.StopOrderID = id
	m.met.StopMoves++
	return true
}
