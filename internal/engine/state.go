package engine

import (
	"fmt"

	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/sizing"
	"github.com/alejandrodnm/crossbt/internal/strategy"
)

// RunState is the complete, disposable unit of mutable state for one
// simulation run: portfolio, dedup set, signal-generator history and sizer.
// It is built fresh for every run and thrown away afterwards, never reset in
// place, so no container can alias into a previous run. This is the
// isolation boundary an optimizer relies on when evaluating parameter
// combinations (and train/test splits) back-to-back or in parallel.
type RunState struct {
	Portfolio *domain.Portfolio
	Dedup     *Deduplicator
	Signals   strategy.SignalGenerator
	Sizer     sizing.Sizer
	Broker    *Broker

	// sizerBars is non-nil when the sizer wants bar history (ATR).
	sizerBars sizing.BarConsumer
}

// NewRunState builds every component from scratch. Nothing is shared with any
// other state: a new portfolio, a new dedup set, a new generator with empty
// price history and a new sizer.
func NewRunState(cfg Config, reg strategy.Registry) (*RunState, error) {
	gen, err := reg.New(cfg.Strategy, strategy.Config{
		FastWindow: cfg.FastWindow,
		SlowWindow: cfg.SlowWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("engine.NewRunState: %w", err)
	}
	sizer, err := sizing.New(cfg.Sizing)
	if err != nil {
		return nil, fmt.Errorf("engine.NewRunState: %w", err)
	}

	st := &RunState{
		Portfolio: domain.NewPortfolio(cfg.InitialCapital),
		Dedup:     NewDeduplicator(),
		Signals:   gen,
		Sizer:     sizer,
		Broker:    NewBroker(cfg.Slippage, cfg.CommissionRate),
	}
	if bc, ok := sizer.(sizing.BarConsumer); ok {
		st.sizerBars = bc
	}
	return st, nil
}
