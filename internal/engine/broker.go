package engine

import (
	"time"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// Broker simulates executions. Market orders fill immediately at the bar
// close adjusted for slippage: buys fill higher, sells lower. Commission is
// charged on the filled notional.
type Broker struct {
	slippage       float64
	commissionRate float64
}

// NewBroker creates a broker with the given friction parameters.
func NewBroker(slippage, commissionRate float64) *Broker {
	return &Broker{slippage: slippage, commissionRate: commissionRate}
}

// Execute submits and fills the order against the market price, advancing it
// through the state machine. The terminal-state guard lives in Order.Advance;
// an order that already reached a terminal state fails here with
// *domain.InvalidTransitionError before any fill is computed.
func (b *Broker) Execute(order *domain.Order, marketPrice float64, at time.Time) error {
	if err := order.Advance(domain.EventSubmit, at); err != nil {
		return err
	}

	fill := marketPrice * (1 + b.slippage)
	if order.Quantity < 0 {
		fill = marketPrice * (1 - b.slippage)
	}
	order.FillPrice = fill
	order.Commission = fill * float64(absQty(order.Quantity)) * b.commissionRate

	return order.Advance(domain.EventFill, at)
}

func absQty(q int64) int64 {
	if q < 0 {
		return -q
	}
	return q
}
