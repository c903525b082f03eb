package service

import "perp_bot/internal/models"

// DecisionSource выносит вердикт таймфрейма по закрытой свече.
// ok==false — свеча не дала решения (прогрев или нет сетапа).
type DecisionSource interface {
	OnBar(bar models.CandleTick) (models.TimeframeDecision, bool)
	Name() string
}
