package models

import "time"

// PositionInfo — снапшот позиции с биржи. Не мутируем, при рефреше кеша
// заменяется целиком.
type PositionInfo struct {
	Symbol           string
	PositionAmt      float64 // знаковое: >0 long, <0 short
	EntryPrice       float64
	MarkPrice        float64
	UnrealizedProfit float64
	Leverage         int
	LiquidationPrice float64
}

func (p PositionInfo) Side() Side {
	if p.PositionAmt > 0 {
		return SideBuy
	}
	if p.PositionAmt < 0 {
		return SideSell
	}
	return SideNone
}

// TradeState — локальное состояние сделки. Владеет только сессия символа,
// сбрасывается в пустое при закрытии позиции.
type TradeState struct {
	Active   bool
	Side     Side // сторона входа: BUY=long, SELL=short
	Entry    float64
	Qty      float64
	Leverage int
	R        float64 // дистанция entry->начальный SL

	StopOrderID int64
	TPOrderIDs  []int64 // nil на месте невыставленной ноги

	BreakEvenMoved bool
	TrailingActive bool
	LastTrailPrice float64
	MaxFavorableR  float64

	OpenedAt time.Time
}

// PlacedTPs — сколько ног тейк-профита реально стоит на бирже.
func (t *TradeState) PlacedTPs() int {
	n := 0
	for _, id := range t.TPOrderIDs {
		if id != 0 {
			n++
		}
	}
	return n
}
