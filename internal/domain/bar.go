package domain

import "time"

// Bar is one OHLCV candle for a symbol. Bars are immutable and are fed to the
// engine in non-decreasing timestamp order per symbol.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Direction is the side of a signal, order or trade.
type Direction int8

const (
	DirectionNone  Direction = 0
	DirectionLong  Direction = 1
	DirectionShort Direction = -1
)

// Sign returns +1 for LONG, -1 for SHORT, 0 for NONE.
func (d Direction) Sign() int64 {
	return int64(d)
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// DirectionOf maps a signed quantity to its direction.
func DirectionOf(quantity int64) Direction {
	switch {
	case quantity > 0:
		return DirectionLong
	case quantity < 0:
		return DirectionShort
	default:
		return DirectionNone
	}
}
