package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RuleID identifies one signal group and is the idempotency key for the whole
// downstream pipeline: the same group is never sized, ordered or filled twice
// within a run.
type RuleID struct {
	Strategy  string
	Symbol    string
	Direction Direction
	Group     int
}

// String renders the canonical form used as the dedup set key and persisted
// with orders and trades, e.g. "sma_cross:SPY:LONG:3".
func (r RuleID) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", r.Strategy, r.Symbol, r.Direction, r.Group)
}

// ParseRuleID parses the canonical string form back into its parts.
func ParseRuleID(s string) (RuleID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return RuleID{}, fmt.Errorf("domain.ParseRuleID: malformed rule id %q", s)
	}
	group, err := strconv.Atoi(parts[3])
	if err != nil {
		return RuleID{}, fmt.Errorf("domain.ParseRuleID: bad group in %q: %w", s, err)
	}
	var dir Direction
	switch parts[2] {
	case "LONG":
		dir = DirectionLong
	case "SHORT":
		dir = DirectionShort
	case "NONE":
		dir = DirectionNone
	default:
		return RuleID{}, fmt.Errorf("domain.ParseRuleID: bad direction in %q", s)
	}
	return RuleID{Strategy: parts[0], Symbol: parts[1], Direction: dir, Group: group}, nil
}

// Signal is a directional trading signal emitted on a crossover whose
// direction differs from the last accepted one for the symbol.
type Signal struct {
	Symbol      string
	Direction   Direction
	Timestamp   time.Time
	RuleID      RuleID
	SourcePrice float64 // close that triggered the crossover
	FastMA      float64
	SlowMA      float64
}
