package lifecycle

// Outcome — типизированный вердикт попытки входа. Отказ по гейту — штатное
// значение, а не ошибка: ошибки остаются за сбоями транспорта и биржи.
type Outcome string

const (
	OutcomeOpened        Outcome = "opened"
	OutcomeAlreadyActive Outcome = "already_active"
	OutcomeCooldown      Outcome = "cooldown"
	OutcomeGuardTripped  Outcome = "guard_tripped"
	OutcomeSymbolBusy    Outcome = "symbol_busy"
	OutcomeCapReached    Outcome = "cap_reached"
	OutcomeNotViable     Outcome = "not_viable"
	OutcomeNoVolatility  Outcome = "no_volatility"
	OutcomeVenueError    Outcome = "venue_error"
)
