package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Position is the net holding for one symbol. Quantity is signed (long > 0,
// short < 0). Positions are owned exclusively by Portfolio and mutated only
// through ApplyFill.
type Position struct {
	Symbol   string
	Quantity int64
	AvgCost  float64
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Cash      float64
	Equity    float64
}

// PnlConsistencyError reports that the sum of realized PnL over closed trades
// diverged from the equity curve delta beyond tolerance. This is a hard error:
// the accounting is the whole point of the engine.
type PnlConsistencyError struct {
	SumRealized float64
	EquityDelta float64
	Tolerance   float64
}

func (e *PnlConsistencyError) Error() string {
	return fmt.Sprintf("portfolio: realized pnl %.6f != equity delta %.6f (tolerance %.6f)",
		e.SumRealized, e.EquityDelta, e.Tolerance)
}

// Portfolio owns cash, positions, the trade ledger and the equity curve for
// one run. It is not safe for concurrent use; a run is single-threaded and
// each run gets its own instance.
type Portfolio struct {
	cash           float64
	initialCapital float64
	positions      map[string]*Position
	lastPrice      map[string]float64
	trades         []*Trade
	open           map[string]*Trade // open lot per symbol
	equity         []EquityPoint
	tradeSeq       int
}

// NewPortfolio creates an empty portfolio holding the initial capital in cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[string]*Position),
		lastPrice:      make(map[string]float64),
		open:           make(map[string]*Trade),
	}
}

// Cash returns the free cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// Equity is cash plus every position marked at its last known price.
func (p *Portfolio) Equity() float64 {
	eq := p.cash
	for sym, pos := range p.positions {
		eq += float64(pos.Quantity) * p.lastPrice[sym]
	}
	return eq
}

// Position returns a copy of the net position for the symbol (zero-quantity
// copy when flat).
func (p *Portfolio) Position(symbol string) Position {
	if pos, ok := p.positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol}
}

// Positions returns copies of all non-flat positions, ordered by symbol.
func (p *Portfolio) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns the full ledger, open lots included, in creation order.
func (p *Portfolio) Trades() []*Trade { return p.trades }

// ClosedTrades returns only the closed lots, in close order.
func (p *Portfolio) ClosedTrades() []*Trade {
	out := make([]*Trade, 0, len(p.trades))
	for _, t := range p.trades {
		if t.Closed {
			out = append(out, t)
		}
	}
	return out
}

// EquityCurve returns the recorded equity samples.
func (p *Portfolio) EquityCurve() []EquityPoint { return p.equity }

// LastPrice returns the last marked price for the symbol (0 if never seen).
func (p *Portfolio) LastPrice(symbol string) float64 { return p.lastPrice[symbol] }

// Mark updates the last known price for the bar's symbol and appends an
// equity point. The engine calls it once per bar before processing fills.
func (p *Portfolio) Mark(bar Bar) {
	p.lastPrice[bar.Symbol] = bar.Close
	p.recordEquity(bar.Timestamp)
}

func (p *Portfolio) recordEquity(ts time.Time) {
	p.equity = append(p.equity, EquityPoint{Timestamp: ts, Cash: p.cash, Equity: p.Equity()})
}

// ApplyFill books one fill against the portfolio and returns the trade it
// affected: the open lot when opening or extending, the closed lot when
// closing or reducing. quantity is signed (positive buys, negative sells).
//
// A fill against an opposite position closes up to min(|existing|, |incoming|)
// units; any remainder opens a new lot in the incoming direction, so a single
// fill may both close and reverse.
func (p *Portfolio) ApplyFill(symbol string, quantity int64, price, commission float64, ts time.Time, ruleID RuleID) (*Trade, error) {
	if quantity == 0 {
		return nil, fmt.Errorf("portfolio.ApplyFill: zero quantity for %s", symbol)
	}
	if price <= 0 {
		return nil, fmt.Errorf("portfolio.ApplyFill: non-positive price %.4f for %s", price, symbol)
	}

	// Cash moves with the full fill regardless of how it splits into lots:
	// buys debit, sells credit, commission always debits.
	p.cash -= price * float64(quantity)
	p.cash -= commission
	p.lastPrice[symbol] = price

	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		p.positions[symbol] = pos
	}

	var affected *Trade
	sameSide := pos.Quantity == 0 || (pos.Quantity > 0) == (quantity > 0)
	if sameSide {
		affected = p.extend(pos, quantity, price, commission, ts, ruleID)
	} else {
		var err error
		affected, err = p.reduce(pos, quantity, price, commission, ts, ruleID)
		if err != nil {
			return nil, err
		}
	}

	if pos.Quantity == 0 {
		delete(p.positions, symbol)
	}
	p.recordEquity(ts)
	return affected, nil
}

// extend opens a new lot or grows the existing one at quantity-weighted
// average cost. Realized PnL for the fill is zero.
func (p *Portfolio) extend(pos *Position, quantity int64, price, commission float64, ts time.Time, ruleID RuleID) *Trade {
	abs := absQty(quantity)
	prevAbs := absQty(pos.Quantity)
	if prevAbs == 0 {
		pos.AvgCost = price
	} else {
		pos.AvgCost = (pos.AvgCost*float64(prevAbs) + price*float64(abs)) / float64(prevAbs+abs)
	}
	pos.Quantity += quantity

	lot, ok := p.open[pos.Symbol]
	if !ok {
		lot = &Trade{
			ID:         p.nextTradeID(),
			Symbol:     pos.Symbol,
			Direction:  DirectionOf(quantity),
			Quantity:   abs,
			EntryPrice: price,
			EntryTime:  ts,
			Commission: commission,
			RuleID:     ruleID,
		}
		p.open[pos.Symbol] = lot
		p.trades = append(p.trades, lot)
		return lot
	}
	lot.Quantity += abs
	lot.EntryPrice = pos.AvgCost
	lot.Commission += commission
	return lot
}

// reduce closes part or all of the opposite position and, when the incoming
// quantity exceeds it, reverses into a new lot with the remainder.
func (p *Portfolio) reduce(pos *Position, quantity int64, price, commission float64, ts time.Time, ruleID RuleID) (*Trade, error) {
	lot, ok := p.open[pos.Symbol]
	if !ok {
		return nil, fmt.Errorf("portfolio.reduce: position without open lot for %s", pos.Symbol)
	}

	incoming := absQty(quantity)
	held := absQty(pos.Quantity)
	closeQty := incoming
	if held < closeQty {
		closeQty = held
	}
	sign := float64(DirectionOf(pos.Quantity).Sign())
	gross := (price*float64(closeQty) - pos.AvgCost*float64(closeQty)) * sign
	exitComm := commission * float64(closeQty) / float64(incoming)

	var closed *Trade
	if closeQty == lot.Quantity {
		lot.ExitPrice = price
		lot.ExitTime = ts
		lot.Commission += exitComm
		lot.RealizedPnl = gross - lot.Commission
		lot.Closed = true
		delete(p.open, pos.Symbol)
		closed = lot
	} else {
		// Partial close: split the lot. The closed part carries its share of
		// the entry commission; the remainder stays open.
		entryShare := lot.Commission * float64(closeQty) / float64(lot.Quantity)
		closed = &Trade{
			ID:          p.nextTradeID(),
			Symbol:      lot.Symbol,
			Direction:   lot.Direction,
			Quantity:    closeQty,
			EntryPrice:  lot.EntryPrice,
			ExitPrice:   price,
			EntryTime:   lot.EntryTime,
			ExitTime:    ts,
			Commission:  entryShare + exitComm,
			RealizedPnl: gross - entryShare - exitComm,
			RuleID:      lot.RuleID,
			Closed:      true,
		}
		lot.Quantity -= closeQty
		lot.Commission -= entryShare
		p.trades = append(p.trades, closed)
	}

	pos.Quantity += quantity
	if pos.Quantity == 0 {
		pos.AvgCost = 0
		return closed, nil
	}
	if (pos.Quantity > 0) == (quantity > 0) {
		// Reversed through zero: the remainder opens a fresh lot.
		remainder := pos.Quantity
		pos.Quantity = 0
		pos.AvgCost = 0
		p.extend(pos, remainder, price, commission-exitComm, ts, ruleID)
	}
	return closed, nil
}

// CheckConsistency validates the core accounting invariant: cumulative
// realized PnL of closed trades must equal the equity delta between the first
// and last equity points. relTol is relative (e.g. 0.01 for 1%); absolute
// 0.01 is used near zero.
func (p *Portfolio) CheckConsistency(relTol float64) error {
	if len(p.equity) < 2 {
		return nil
	}
	var sum float64
	for _, t := range p.trades {
		if t.Closed {
			sum += t.RealizedPnl
		}
	}
	delta := p.equity[len(p.equity)-1].Equity - p.equity[0].Equity
	tol := relTol * math.Abs(delta)
	if tol < 0.01 {
		tol = 0.01
	}
	if diff := math.Abs(sum - delta); diff > tol {
		return &PnlConsistencyError{SumRealized: sum, EquityDelta: delta, Tolerance: tol}
	}
	return nil
}

// nextTradeID returns a run-scoped sequential id. Deterministic ids keep
// replays of identical bar streams byte-identical.
func (p *Portfolio) nextTradeID() string {
	p.tradeSeq++
	return fmt.Sprintf("T%06d", p.tradeSeq)
}

func absQty(q int64) int64 {
	if q < 0 {
		return -q
	}
	return q
}
