// Package montecarlo estimates the robustness of a completed run by
// resampling its per-trade returns into synthetic equity curves and
// aggregating the resulting metric distributions.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// Resampling methods.
const (
	MethodBootstrap      = "bootstrap"
	MethodBlockBootstrap = "block_bootstrap"
	MethodParametric     = "parametric"
)

// Metric names used as keys in Result.Metrics.
const (
	MetricTotalReturn      = "total_return"
	MetricAnnualizedReturn = "annualized_return"
	MetricVolatility       = "volatility"
	MetricSharpe           = "sharpe"
	MetricMaxDrawdown      = "max_drawdown"
	MetricCalmar           = "calmar"
)

// Config controls one simulation batch.
type Config struct {
	Simulations    int
	Method         string
	BlockSize      int     // block_bootstrap: run length preserved per block
	Seed           int64   // deterministic resampling
	InitialCapital float64 // starting equity of each synthetic curve
	PeriodsPerYear float64 // annualization base (252 = daily trading)
}

// Distribution summarizes one metric across all iterations.
type Distribution struct {
	Mean        float64
	Median      float64
	Std         float64
	Percentiles map[int]float64 // 5, 25, 50, 75, 95
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Lower float64
	Upper float64
}

// Result aggregates the simulated metric distributions for one completed
// run's trade list. It is derived and read-only.
type Result struct {
	NumSimulations      int
	Method              string
	Metrics             map[string]Distribution
	ProbabilityOfProfit float64
	ConfidenceIntervals map[string]Interval // 90% (p5..p95) per metric
}

// Simulate resamples the closed trades' returns cfg.Simulations times and
// aggregates the per-iteration metrics. Open trades are ignored; at least one
// closed trade is required.
func Simulate(trades []*domain.Trade, cfg Config) (*Result, error) {
	if cfg.Simulations < 1 {
		return nil, fmt.Errorf("montecarlo: simulations must be >= 1, got %d", cfg.Simulations)
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("montecarlo: initial capital must be positive, got %.2f", cfg.InitialCapital)
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252
	}

	returns := tradeReturns(trades, cfg.InitialCapital)
	if len(returns) == 0 {
		return nil, fmt.Errorf("montecarlo: no closed trades to resample")
	}

	resample, err := newResampler(cfg, returns)
	if err != nil {
		return nil, err
	}

	samples := make(map[string][]float64, 6)
	profitable := 0
	for i := 0; i < cfg.Simulations; i++ {
		seq := resample()
		m := curveMetrics(seq, cfg)
		if m[MetricTotalReturn] > 0 {
			profitable++
		}
		for name, v := range m {
			samples[name] = append(samples[name], v)
		}
	}

	res := &Result{
		NumSimulations:      cfg.Simulations,
		Method:              cfg.Method,
		Metrics:             make(map[string]Distribution, len(samples)),
		ProbabilityOfProfit: float64(profitable) / float64(cfg.Simulations),
		ConfidenceIntervals: make(map[string]Interval, len(samples)),
	}
	for name, xs := range samples {
		d := summarize(xs)
		res.Metrics[name] = d
		res.ConfidenceIntervals[name] = Interval{Lower: d.Percentiles[5], Upper: d.Percentiles[95]}
	}
	return res, nil
}

// tradeReturns converts closed trades into returns relative to the starting
// capital, in close order.
func tradeReturns(trades []*domain.Trade, capital float64) []float64 {
	out := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.Closed {
			out = append(out, t.RealizedPnl/capital)
		}
	}
	return out
}

// newResampler returns a generator producing one synthetic return sequence of
// the original length per call.
func newResampler(cfg Config, returns []float64) (func() []float64, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := len(returns)

	switch cfg.Method {
	case MethodBootstrap, "":
		return func() []float64 {
			seq := make([]float64, n)
			for i := range seq {
				seq[i] = returns[rng.Intn(n)]
			}
			return seq
		}, nil

	case MethodBlockBootstrap:
		block := cfg.BlockSize
		if block < 1 {
			return nil, fmt.Errorf("montecarlo: block size must be >= 1, got %d", block)
		}
		if n < block {
			// Not enough trades for one block: plain bootstrap.
			cfg2 := cfg
			cfg2.Method = MethodBootstrap
			return newResampler(cfg2, returns)
		}
		return func() []float64 {
			seq := make([]float64, 0, n+block)
			for len(seq) < n {
				start := rng.Intn(n - block + 1)
				seq = append(seq, returns[start:start+block]...)
			}
			return seq[:n]
		}, nil

	case MethodParametric:
		mean, std := meanStd(returns)
		return func() []float64 {
			seq := make([]float64, n)
			for i := range seq {
				seq[i] = mean + std*rng.NormFloat64()
			}
			return seq
		}, nil

	default:
		return nil, fmt.Errorf("montecarlo: unknown method %q", cfg.Method)
	}
}

// curveMetrics compounds one return sequence into a synthetic equity curve
// and computes the per-iteration metrics on it.
func curveMetrics(seq []float64, cfg Config) map[string]float64 {
	equity := cfg.InitialCapital
	peak := equity
	var maxDD float64
	for _, r := range seq {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	total := equity/cfg.InitialCapital - 1
	mean, std := meanStd(seq)
	vol := std * math.Sqrt(cfg.PeriodsPerYear)

	var annualized float64
	if total > -1 {
		annualized = math.Pow(1+total, cfg.PeriodsPerYear/float64(len(seq))) - 1
	} else {
		annualized = -1
	}
	var sharpe float64
	if std > 0 {
		sharpe = mean / std * math.Sqrt(cfg.PeriodsPerYear)
	}
	var calmar float64
	if maxDD > 0 {
		calmar = annualized / maxDD
	}

	return map[string]float64{
		MetricTotalReturn:      total,
		MetricAnnualizedReturn: annualized,
		MetricVolatility:       vol,
		MetricSharpe:           sharpe,
		MetricMaxDrawdown:      maxDD,
		MetricCalmar:           calmar,
	}
}

func summarize(xs []float64) Distribution {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	mean, std := meanStd(sorted)
	d := Distribution{
		Mean:        mean,
		Median:      percentile(sorted, 50),
		Std:         std,
		Percentiles: make(map[int]float64, 5),
	}
	for _, p := range []int{5, 25, 50, 75, 95} {
		d.Percentiles[p] = percentile(sorted, p)
	}
	return d
}

// percentile interpolates linearly on an already sorted slice.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := float64(p) / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
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
