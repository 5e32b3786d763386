package notify

import (
	"log/slog"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// SlogObserver implements ports.Observer by logging every engine event
// through the process logger. Signals and fills log at debug, invariant
// violations at error.
type SlogObserver struct{}

// NewSlogObserver creates the observer.
func NewSlogObserver() SlogObserver { return SlogObserver{} }

func (SlogObserver) SignalEmitted(sig domain.Signal) {
	slog.Debug("signal emitted",
		"rule", sig.RuleID.String(),
		"price", sig.SourcePrice,
		"fast_ma", sig.FastMA,
		"slow_ma", sig.SlowMA,
	)
}

func (SlogObserver) SignalRejected(sig domain.Signal) {
	slog.Debug("duplicate signal rejected", "rule", sig.RuleID.String())
}

func (SlogObserver) OrderFilled(order domain.Order, trade *domain.Trade) {
	slog.Debug("order filled",
		"order", order.ID,
		"symbol", order.Symbol,
		"quantity", order.Quantity,
		"fill_price", order.FillPrice,
		"commission", order.Commission,
		"trade", trade.ID,
	)
}

func (SlogObserver) InvariantViolation(err error) {
	slog.Error("accounting invariant violated", "err", err)
}
