package ports

import "github.com/alejandrodnm/crossbt/internal/domain"

// Observer receives engine events at well-defined points. Implementations are
// injected at construction; the engine holds no global state.
type Observer interface {
	// SignalEmitted fires when the signal generator produces a new group.
	SignalEmitted(sig domain.Signal)

	// SignalRejected fires when the deduplicator drops a repeated rule id.
	SignalRejected(sig domain.Signal)

	// OrderFilled fires after a fill has been booked into the portfolio.
	OrderFilled(order domain.Order, trade *domain.Trade)

	// InvariantViolation fires when the PnL/equity consistency check fails.
	InvariantViolation(err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) SignalEmitted(domain.Signal)             {}
func (NopObserver) SignalRejected(domain.Signal)            {}
func (NopObserver) OrderFilled(domain.Order, *domain.Trade) {}
func (NopObserver) InvariantViolation(error)                {}
