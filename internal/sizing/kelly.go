package sizing

import (
	"fmt"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// kelly allocates equity by the Kelly criterion, scaled by a configurable
// fraction (0.5 = half-Kelly). Win rate and win/loss ratio come from the
// run's own closed trades once KellyMinTrades have closed; before that the
// configured priors apply.
type kelly struct {
	cfg Config
}

func newKelly(cfg Config) (Sizer, error) {
	if cfg.KellyFraction <= 0 || cfg.KellyFraction > 1 {
		return nil, fmt.Errorf("sizing: kelly needs 0 < fraction <= 1, got %.4f", cfg.KellyFraction)
	}
	if cfg.KellyWinRate <= 0 || cfg.KellyWinRate >= 1 {
		return nil, fmt.Errorf("sizing: kelly needs 0 < prior win rate < 1, got %.4f", cfg.KellyWinRate)
	}
	if cfg.KellyWinLossRatio <= 0 {
		return nil, fmt.Errorf("sizing: kelly needs prior win/loss ratio > 0, got %.4f", cfg.KellyWinLossRatio)
	}
	return &kelly{cfg: cfg}, nil
}

func (s *kelly) Name() string { return PolicyKelly }

func (s *kelly) Size(sig domain.Signal, pf *domain.Portfolio) int64 {
	if sig.SourcePrice <= 0 {
		return 0
	}
	winRate, winLoss := s.inputs(pf)
	f := winRate - (1-winRate)/winLoss
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	raw := pf.Equity() * f * s.cfg.KellyFraction / sig.SourcePrice
	return clamp(raw, s.cfg, sig, PolicyKelly)
}

// inputs derives win rate and win/loss ratio from the portfolio's closed
// trades, falling back to the configured priors with thin history.
func (s *kelly) inputs(pf *domain.Portfolio) (winRate, winLoss float64) {
	closed := pf.ClosedTrades()
	if len(closed) < s.cfg.KellyMinTrades {
		return s.cfg.KellyWinRate, s.cfg.KellyWinLossRatio
	}
	var wins, losses int
	var winSum, lossSum float64
	for _, t := range closed {
		if t.RealizedPnl >= 0 {
			wins++
			winSum += t.RealizedPnl
		} else {
			losses++
			lossSum += -t.RealizedPnl
		}
	}
	if wins == 0 || losses == 0 || lossSum == 0 {
		return s.cfg.KellyWinRate, s.cfg.KellyWinLossRatio
	}
	winRate = float64(wins) / float64(len(closed))
	winLoss = (winSum / float64(wins)) / (lossSum / float64(losses))
	return winRate, winLoss
}
