package domain

import "math"

// PerfStats are the standard performance statistics derived from a completed
// run's trade list and equity curve.
type PerfStats struct {
	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	Sharpe           float64
	MaxDrawdown      float64
	Calmar           float64
	ProfitFactor     float64
	WinRate          float64
	Expectancy       float64
	GrossProfit      float64
	GrossLoss        float64
	ClosedTrades     int
	WinningTrades    int
}

// ComputeStats rolls up PnL, win-rate, profit factor, drawdown and the
// return-based ratios. periodsPerYear annualizes per-sample returns (252 for
// daily bars).
func ComputeStats(trades []*Trade, equity []EquityPoint, periodsPerYear float64) PerfStats {
	var s PerfStats
	var net float64
	for _, t := range trades {
		if !t.Closed {
			continue
		}
		s.ClosedTrades++
		net += t.RealizedPnl
		if t.RealizedPnl >= 0 {
			s.WinningTrades++
			s.GrossProfit += t.RealizedPnl
		} else {
			s.GrossLoss += -t.RealizedPnl
		}
	}
	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.ClosedTrades)
		s.Expectancy = net / float64(s.ClosedTrades)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	} else if s.GrossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	if len(equity) < 2 {
		return s
	}
	first, last := equity[0].Equity, equity[len(equity)-1].Equity
	if first > 0 {
		s.TotalReturn = (last - first) / first
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if prev := equity[i-1].Equity; prev > 0 {
			returns = append(returns, equity[i].Equity/prev-1)
		}
	}
	mean, std := meanStd(returns)
	s.Volatility = std * math.Sqrt(periodsPerYear)
	if std > 0 {
		s.Sharpe = mean / std * math.Sqrt(periodsPerYear)
	}
	if n := float64(len(returns)); n > 0 && s.TotalReturn > -1 {
		s.AnnualizedReturn = math.Pow(1+s.TotalReturn, periodsPerYear/n) - 1
	}
	s.MaxDrawdown = MaxDrawdown(equity)
	if s.MaxDrawdown > 0 {
		s.Calmar = s.AnnualizedReturn / s.MaxDrawdown
	}
	return s
}

// MaxDrawdown is the largest peak-to-trough equity decline as a fraction of
// the peak.
func MaxDrawdown(equity []EquityPoint) float64 {
	var peak, maxDD float64
	for _, pt := range equity {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func meanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
