package sizing

import (
	"fmt"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// volatility is percent_risk with the stop distance derived from the symbol's
// ATR instead of a fixed fraction of price. It keeps its own per-symbol ATR
// state, fed bar-by-bar through the BarConsumer hook.
type volatility struct {
	cfg Config
	atr map[string]*atrTracker
}

func newVolatility(cfg Config) (Sizer, error) {
	if cfg.RiskPercent <= 0 || cfg.RiskPercent > 1 {
		return nil, fmt.Errorf("sizing: volatility needs 0 < risk <= 1, got %.4f", cfg.RiskPercent)
	}
	if cfg.ATRWindow < 1 {
		return nil, fmt.Errorf("sizing: volatility needs atr window >= 1, got %d", cfg.ATRWindow)
	}
	if cfg.ATRMultiple <= 0 {
		return nil, fmt.Errorf("sizing: volatility needs atr multiple > 0, got %.4f", cfg.ATRMultiple)
	}
	return &volatility{cfg: cfg, atr: make(map[string]*atrTracker)}, nil
}

func (s *volatility) Name() string { return PolicyVolatility }

func (s *volatility) OnBar(bar domain.Bar) {
	tr, ok := s.atr[bar.Symbol]
	if !ok {
		tr = &atrTracker{window: s.cfg.ATRWindow}
		s.atr[bar.Symbol] = tr
	}
	tr.update(bar)
}

func (s *volatility) Size(sig domain.Signal, pf *domain.Portfolio) int64 {
	var dist float64
	if tr, ok := s.atr[sig.Symbol]; ok && tr.ready() {
		dist = tr.value * s.cfg.ATRMultiple
	}
	raw := riskQuantity(pf.Equity(), s.cfg.RiskPercent, sig.SourcePrice, dist)
	return clamp(raw, s.cfg, sig, PolicyVolatility)
}

// atrTracker computes Wilder's average true range.
type atrTracker struct {
	window    int
	prevClose float64
	seen      int
	value     float64
}

func (t *atrTracker) ready() bool { return t.seen >= t.window }

func (t *atrTracker) update(bar domain.Bar) {
	tr := bar.High - bar.Low
	if t.seen > 0 {
		if hc := abs(bar.High - t.prevClose); hc > tr {
			tr = hc
		}
		if lc := abs(bar.Low - t.prevClose); lc > tr {
			tr = lc
		}
	}
	t.prevClose = bar.Close
	t.seen++
	if t.seen <= t.window {
		// Simple average until the window fills.
		t.value += (tr - t.value) / float64(t.seen)
		return
	}
	n := float64(t.window)
	t.value = (t.value*(n-1) + tr) / n
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
