package models

import "time"

// Side как на бирже: "BUY"/"SELL" или пустая строка (нет сигнала).
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

// TimeframeDecision — голос одного таймфрейма по символу.
type TimeframeDecision struct {
	Symbol     string
	Timeframe  string
	Side       Side // BUY/SELL/"" (нейтральный)
	Confidence float64
	Price      float64
	At         time.Time
}

// ConfirmedSignal — подтверждённый сигнал после кворума таймфреймов.
type ConfirmedSignal struct {
	Symbol        string
	Side          Side
	Confirmations int
	AvgConfidence float64
	AvgPrice      float64
	Timeframes    []string
	At            time.Time
}
