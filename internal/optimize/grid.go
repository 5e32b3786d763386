// Package optimize runs grid searches over strategy parameters. Every
// parameter combination (and each side of the train/test split) is evaluated
// against its own fresh RunState, so combinations can run in parallel without
// sharing dedup sets, portfolios or signal history.
package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/crossbt/internal/adapters/feed"
	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/engine"
	"github.com/alejandrodnm/crossbt/internal/strategy"
)

// Grid is the cartesian parameter space to explore. Combinations where the
// fast window does not stay below the slow one are skipped.
type Grid struct {
	FastWindows []int
	SlowWindows []int
}

// Config controls the search itself.
type Config struct {
	Workers       int     // parallel workers; defaults to GOMAXPROCS
	TrainFraction float64 // 0 or 1 disables the split; otherwise bars[:n] train, bars[n:] test
}

// Result is one evaluated combination. Objective is the test Sharpe when a
// split is configured, the train Sharpe otherwise.
type Result struct {
	FastWindow int
	SlowWindow int
	Train      domain.PerfStats
	Test       domain.PerfStats
	Objective  float64
}

// Optimizer evaluates a grid against one bar history.
type Optimizer struct {
	base    engine.Config
	reg     strategy.Registry
	cfg     Config
	limiter *rate.Limiter // throttles progress logging from workers
}

// New creates an optimizer around a base engine configuration; only the MA
// windows vary per combination.
func New(base engine.Config, reg strategy.Registry, cfg Config) *Optimizer {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Optimizer{
		base:    base,
		reg:     reg,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Run evaluates every valid combination and returns results sorted by
// objective, best first (ties broken by windows for a deterministic order).
func (o *Optimizer) Run(ctx context.Context, bars []domain.Bar, grid Grid) ([]Result, error) {
	train, test := o.split(bars)
	if len(train) == 0 {
		return nil, fmt.Errorf("optimize.Run: no training bars")
	}

	type combo struct{ fast, slow int }
	var combos []combo
	for _, f := range grid.FastWindows {
		for _, s := range grid.SlowWindows {
			if f >= 1 && s > f {
				combos = append(combos, combo{fast: f, slow: s})
			}
		}
	}
	if len(combos) == 0 {
		return nil, fmt.Errorf("optimize.Run: empty grid")
	}

	jobs := make(chan combo, len(combos))
	for _, c := range combos {
		jobs <- c
	}
	close(jobs)

	out := make(chan Result, len(combos))
	errs := make(chan error, o.cfg.Workers)
	var done int64

	var wg sync.WaitGroup
	for w := 0; w < o.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				res, err := o.evaluate(ctx, c.fast, c.slow, train, test)
				if err != nil {
					errs <- err
					return
				}
				out <- res
				n := atomic.AddInt64(&done, 1)
				if o.limiter.Allow() {
					slog.Info("optimize: progress", "done", n, "total", len(combos))
				}
			}
		}()
	}
	wg.Wait()
	close(out)
	close(errs)

	if err := <-errs; err != nil {
		return nil, fmt.Errorf("optimize.Run: %w", err)
	}

	results := make([]Result, 0, len(combos))
	for r := range out {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Objective != results[j].Objective {
			return results[i].Objective > results[j].Objective
		}
		if results[i].FastWindow != results[j].FastWindow {
			return results[i].FastWindow < results[j].FastWindow
		}
		return results[i].SlowWindow < results[j].SlowWindow
	})
	return results, nil
}

// evaluate backtests one combination on the train bars and, when present, on
// the test bars, each against its own fresh state.
func (o *Optimizer) evaluate(ctx context.Context, fast, slow int, train, test []domain.Bar) (Result, error) {
	cfg := o.base
	cfg.FastWindow = fast
	cfg.SlowWindow = slow

	eng, err := engine.New(cfg, o.reg, nil)
	if err != nil {
		return Result{}, err
	}

	trainRes, err := eng.Run(ctx, feed.NewMemory(train))
	if err != nil {
		return Result{}, fmt.Errorf("train fast=%d slow=%d: %w", fast, slow, err)
	}
	r := Result{FastWindow: fast, SlowWindow: slow, Train: trainRes.Stats, Objective: trainRes.Stats.Sharpe}

	if len(test) > 0 {
		testRes, err := eng.Run(ctx, feed.NewMemory(test))
		if err != nil {
			return Result{}, fmt.Errorf("test fast=%d slow=%d: %w", fast, slow, err)
		}
		r.Test = testRes.Stats
		r.Objective = testRes.Stats.Sharpe
	}
	return r, nil
}

// split partitions bars chronologically into train and test.
func (o *Optimizer) split(bars []domain.Bar) (train, test []domain.Bar) {
	f := o.cfg.TrainFraction
	if f <= 0 || f >= 1 {
		return bars, nil
	}
	n := int(f * float64(len(bars)))
	return bars[:n], bars[n:]
}
