// Package engine drives the signal→order→trade pipeline bar by bar. A run is
// single-threaded and synchronous: each bar is fully processed before the
// next one is considered. The only sanctioned parallelism is across
// independent RunStates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/ports"
	"github.com/alejandrodnm/crossbt/internal/sizing"
	"github.com/alejandrodnm/crossbt/internal/strategy"
)

// ConsistencyTolerance is the relative tolerance for the PnL/equity check.
const ConsistencyTolerance = 0.01

// Config holds all parameters for one backtest run.
type Config struct {
	Strategy       string
	FastWindow     int
	SlowWindow     int
	InitialCapital float64
	Slippage       float64 // fraction, e.g. 0.001
	CommissionRate float64 // fraction of filled notional
	PeriodsPerYear float64 // annualization base, 252 for daily bars
	Sizing         sizing.Config
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Strategy == "" {
		return errors.New("engine: strategy name is empty")
	}
	if c.FastWindow < 1 || c.SlowWindow <= c.FastWindow {
		return fmt.Errorf("engine: invalid windows fast=%d slow=%d", c.FastWindow, c.SlowWindow)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("engine: initial capital must be positive, got %.2f", c.InitialCapital)
	}
	if c.Slippage < 0 || c.CommissionRate < 0 {
		return errors.New("engine: slippage and commission must be non-negative")
	}
	return nil
}

// Engine runs backtests. It is stateless across runs: every Run builds a
// fresh RunState, so one Engine can serve sequential runs without leakage.
type Engine struct {
	cfg Config
	reg strategy.Registry
	obs ports.Observer
}

// New creates an engine. A nil observer defaults to a no-op.
func New(cfg Config, reg strategy.Registry, obs ports.Observer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = ports.NopObserver{}
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252
	}
	return &Engine{cfg: cfg, reg: reg, obs: obs}, nil
}

// Run replays the feed through a fresh RunState and returns the completed
// result. Soft failures (insufficient history, duplicate signals, zero-sized
// orders) become no-ops; hard failures (invalid order transitions, broken
// accounting) abort the run.
func (e *Engine) Run(ctx context.Context, feed ports.BarFeed) (*domain.RunResult, error) {
	state, err := NewRunState(e.cfg, e.reg)
	if err != nil {
		return nil, err
	}

	res := &domain.RunResult{
		ID:             uuid.New().String(),
		Strategy:       e.cfg.Strategy,
		StartedAt:      time.Now().UTC(),
		InitialCapital: e.cfg.InitialCapital,
	}

	var lastTS time.Time
	for {
		bar, err := feed.Next(ctx)
		if errors.Is(err, ports.ErrEndOfData) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("engine.Run: feed: %w", err)
		}
		lastTS = bar.Timestamp

		if err := e.processBar(state, res, bar); err != nil {
			return nil, err
		}
	}

	if err := e.closeAll(state, lastTS); err != nil {
		return nil, err
	}

	if err := state.Portfolio.CheckConsistency(ConsistencyTolerance); err != nil {
		e.obs.InvariantViolation(err)
		return nil, fmt.Errorf("engine.Run: %w", err)
	}

	res.FinishedAt = time.Now().UTC()
	res.FinalEquity = state.Portfolio.Equity()
	res.Trades = state.Portfolio.Trades()
	res.EquityCurve = state.Portfolio.EquityCurve()
	res.Positions = state.Portfolio.Positions()
	res.Stats = domain.ComputeStats(res.Trades, res.EquityCurve, e.cfg.PeriodsPerYear)

	slog.Info("engine: run complete",
		"run", res.ID,
		"strategy", res.Strategy,
		"signals", res.SignalsEmitted,
		"duplicates", res.DuplicatesRejected,
		"fills", res.OrdersFilled,
		"final_equity", res.FinalEquity,
	)
	return res, nil
}

// processBar walks one bar through the whole pipeline: mark → signal → dedup
// → size → order → fill → portfolio.
func (e *Engine) processBar(state *RunState, res *domain.RunResult, bar domain.Bar) error {
	state.Portfolio.Mark(bar)
	if state.sizerBars != nil {
		state.sizerBars.OnBar(bar)
	}

	sig, ok := state.Signals.OnBar(bar)
	if !ok {
		return nil
	}
	res.SignalsEmitted++
	e.obs.SignalEmitted(sig)

	// Dedup before any side effect: a repeated rule id is counted and dropped.
	if !state.Dedup.Accept(sig.RuleID) {
		res.DuplicatesRejected++
		e.obs.SignalRejected(sig)
		slog.Debug("engine: duplicate rule id rejected", "rule", sig.RuleID.String())
		return nil
	}

	// Reversal model: an opposite signal both closes the current position and
	// opens the new one, so the order quantity is sized target plus whatever
	// is currently held against it.
	qty := state.Sizer.Size(sig, state.Portfolio)
	if qty == 0 {
		res.OrdersSkipped++
		slog.Debug("engine: signal sized to zero", "rule", sig.RuleID.String())
		return nil
	}
	if held := state.Portfolio.Position(sig.Symbol).Quantity; held != 0 && (held > 0) != (qty > 0) {
		qty -= held
	}

	order := domain.Order{
		ID:             uuid.New().String(),
		Symbol:         sig.Symbol,
		Direction:      sig.Direction,
		Quantity:       qty,
		RequestedPrice: sig.SourcePrice,
		RuleID:         sig.RuleID,
		State:          domain.OrderCreated,
		CreatedAt:      bar.Timestamp,
	}
	if err := state.Broker.Execute(&order, bar.Close, bar.Timestamp); err != nil {
		return fmt.Errorf("engine.processBar: %w", err)
	}

	trade, err := state.Portfolio.ApplyFill(order.Symbol, order.Quantity, order.FillPrice, order.Commission, bar.Timestamp, order.RuleID)
	if err != nil {
		return fmt.Errorf("engine.processBar: %w", err)
	}
	res.OrdersFilled++
	e.obs.OrderFilled(order, trade)
	return nil
}

// closeAll force-closes open positions at their last marked price so the run
// ends flat and the consistency check covers every trade. The synthetic exit
// carries no slippage or commission.
func (e *Engine) closeAll(state *RunState, at time.Time) error {
	for _, pos := range state.Portfolio.Positions() {
		qty := -pos.Quantity
		price := state.Portfolio.LastPrice(pos.Symbol)
		if price <= 0 {
			continue
		}
		rule := domain.RuleID{
			Strategy:  "eod",
			Symbol:    pos.Symbol,
			Direction: domain.DirectionOf(qty),
		}
		if _, err := state.Portfolio.ApplyFill(pos.Symbol, qty, price, 0, at, rule); err != nil {
			return fmt.Errorf("engine.closeAll: %w", err)
		}
	}
	return nil
}
