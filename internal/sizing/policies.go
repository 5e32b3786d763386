package sizing

import (
	"fmt"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// fixed always requests the configured quantity, capped at MaxQuantity.
type fixed struct {
	cfg Config
}

func newFixed(cfg Config) (Sizer, error) {
	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("sizing: fixed policy needs quantity > 0, got %d", cfg.Quantity)
	}
	return &fixed{cfg: cfg}, nil
}

func (s *fixed) Name() string { return PolicyFixed }

func (s *fixed) Size(sig domain.Signal, _ *domain.Portfolio) int64 {
	return clamp(float64(s.cfg.Quantity), s.cfg, sig, PolicyFixed)
}

// percentEquity allocates a fixed fraction of current equity per position.
type percentEquity struct {
	cfg Config
}

func newPercentEquity(cfg Config) (Sizer, error) {
	if cfg.PercentEquity <= 0 || cfg.PercentEquity > 1 {
		return nil, fmt.Errorf("sizing: percent_equity needs 0 < pct <= 1, got %.4f", cfg.PercentEquity)
	}
	return &percentEquity{cfg: cfg}, nil
}

func (s *percentEquity) Name() string { return PolicyPercentEquity }

func (s *percentEquity) Size(sig domain.Signal, pf *domain.Portfolio) int64 {
	if sig.SourcePrice <= 0 {
		return 0
	}
	raw := pf.Equity() * s.cfg.PercentEquity / sig.SourcePrice
	return clamp(raw, s.cfg, sig, PolicyPercentEquity)
}

// percentRisk sizes so that hitting the stop loses RiskPercent of equity.
type percentRisk struct {
	cfg Config
}

func newPercentRisk(cfg Config) (Sizer, error) {
	if cfg.RiskPercent <= 0 || cfg.RiskPercent > 1 {
		return nil, fmt.Errorf("sizing: percent_risk needs 0 < risk <= 1, got %.4f", cfg.RiskPercent)
	}
	return &percentRisk{cfg: cfg}, nil
}

func (s *percentRisk) Name() string { return PolicyPercentRisk }

func (s *percentRisk) Size(sig domain.Signal, pf *domain.Portfolio) int64 {
	raw := riskQuantity(pf.Equity(), s.cfg.RiskPercent, sig.SourcePrice, sig.SourcePrice*s.cfg.StopLossPct)
	return clamp(raw, s.cfg, sig, PolicyPercentRisk)
}

// riskQuantity is the shared risk formula: equity*risk / stopDistance, with a
// floor of 1% of price on the distance to avoid division blow-up.
func riskQuantity(equity, riskPct, price, stopDistance float64) float64 {
	if price <= 0 {
		return 0
	}
	if stopDistance <= 0 {
		stopDistance = price * 0.01
	}
	return equity * riskPct / stopDistance
}
