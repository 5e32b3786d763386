package domain

import "time"

// Trade is one round trip (or one closed lot of a round trip). It is created
// on the opening fill, mutated exactly once when an opposing fill closes it,
// and immutable afterwards. Commission accumulates the entry and exit charges
// attributable to the lot; RealizedPnl is net of Commission.
type Trade struct {
	ID          string
	Symbol      string
	Direction   Direction
	Quantity    int64 // always positive; Direction carries the side
	EntryPrice  float64
	ExitPrice   float64
	EntryTime   time.Time
	ExitTime    time.Time
	RealizedPnl float64
	Commission  float64
	RuleID      RuleID
	Closed      bool
}

// GrossPnl is the realized result before commissions. Zero for open trades.
func (t *Trade) GrossPnl() float64 {
	if !t.Closed {
		return 0
	}
	return t.RealizedPnl + t.Commission
}
