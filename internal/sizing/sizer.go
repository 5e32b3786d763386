// Package sizing converts accepted signals into order quantities. Five
// policies are available behind one interface, selected by name from a static
// registry populated at startup.
package sizing

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// Policy names accepted in configuration.
const (
	PolicyFixed         = "fixed"
	PolicyPercentEquity = "percent_equity"
	PolicyPercentRisk   = "percent_risk"
	PolicyVolatility    = "volatility"
	PolicyKelly         = "kelly"
)

// Config holds the parameters for every policy; each policy reads only the
// fields it needs.
type Config struct {
	Policy      string
	Quantity    int64 // fixed: constant quantity
	MaxQuantity int64 // cap applied by every policy (0 = uncapped)

	PercentEquity float64 // percent_equity: fraction of equity per position
	RiskPercent   float64 // percent_risk, volatility: fraction of equity risked
	StopLossPct   float64 // percent_risk: stop distance as fraction of price

	ATRWindow   int     // volatility: ATR lookback
	ATRMultiple float64 // volatility: stop distance = ATR * multiple

	KellyFraction     float64 // kelly: scaling (0.5 = half-Kelly)
	KellyWinRate      float64 // kelly: prior until enough trades closed
	KellyWinLossRatio float64 // kelly: prior avg win / avg loss
	KellyMinTrades    int     // kelly: closed trades before using run history
}

// Sizer computes a direction-signed order quantity from a signal and the
// current portfolio state. A result of 0 means "no order", never an error.
type Sizer interface {
	Name() string
	Size(sig domain.Signal, pf *domain.Portfolio) int64
}

// BarConsumer is implemented by sizers that need bar history (e.g. ATR). The
// engine feeds every bar to the sizer before signal processing.
type BarConsumer interface {
	OnBar(bar domain.Bar)
}

var factories = map[string]func(Config) (Sizer, error){
	PolicyFixed:         newFixed,
	PolicyPercentEquity: newPercentEquity,
	PolicyPercentRisk:   newPercentRisk,
	PolicyVolatility:    newVolatility,
	PolicyKelly:         newKelly,
}

// New builds a fresh sizer for one run.
func New(cfg Config) (Sizer, error) {
	f, ok := factories[cfg.Policy]
	if !ok {
		return nil, fmt.Errorf("sizing: unknown policy %q", cfg.Policy)
	}
	return f(cfg)
}

// clamp floors the raw quantity, applies the max cap and the signal's sign.
// Non-finite or negative raw values are a soft sizing error: clamp to 0, log,
// move on.
func clamp(raw float64, cfg Config, sig domain.Signal, policy string) int64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		slog.Warn("sizing: non-finite or negative quantity clamped to 0",
			"policy", policy, "symbol", sig.Symbol, "raw", raw)
		return 0
	}
	qty := int64(math.Floor(raw))
	if cfg.MaxQuantity > 0 && qty > cfg.MaxQuantity {
		qty = cfg.MaxQuantity
	}
	return qty * sig.Direction.Sign()
}
