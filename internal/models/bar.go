package models

import "time"

// CandleTick — закрытая свеча. Движок реагирует только на финальные бары,
// промежуточные апдейты отбрасываются на границе (в стримере).
type CandleTick struct {
	Symbol    string
	Timeframe string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Start     time.Time
	End       time.Time
}
