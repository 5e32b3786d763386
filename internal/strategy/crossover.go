package strategy

import "github.com/alejandrodnm/crossbt/internal/domain"

// CrossoverName is the registry key for the dual-SMA crossover strategy.
const CrossoverName = "sma_cross"

// Crossover emits a signal when the fast SMA crosses the slow SMA and the
// crossover direction differs from the last accepted direction for that
// symbol. Consecutive same-direction crossovers collapse into one group; each
// group gets a monotonically increasing sequence per symbol, which makes the
// rule id unique within a run.
type Crossover struct {
	cfg     Config
	symbols map[string]*symbolState
}

type symbolState struct {
	closes   []float64 // most recent closes, capped at SlowWindow
	prevSign int       // sign of fast-slow on the previous bar; 0 until known
	lastDir  domain.Direction
	groupSeq int
}

// NewCrossover builds a fresh crossover generator for one run.
func NewCrossover(cfg Config) (SignalGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Crossover{cfg: cfg, symbols: make(map[string]*symbolState)}, nil
}

func (c *Crossover) Name() string { return CrossoverName }

// OnBar updates the symbol's price window and detects crossovers. The
// last-accepted direction advances on emission, not on downstream acceptance:
// direction tracking is a property of price action, not portfolio capacity.
func (c *Crossover) OnBar(bar domain.Bar) (domain.Signal, bool) {
	st, ok := c.symbols[bar.Symbol]
	if !ok {
		st = &symbolState{closes: make([]float64, 0, c.cfg.SlowWindow)}
		c.symbols[bar.Symbol] = st
	}

	st.closes = append(st.closes, bar.Close)
	if len(st.closes) > c.cfg.SlowWindow {
		st.closes = st.closes[1:]
	}
	if len(st.closes) < c.cfg.SlowWindow {
		return domain.Signal{}, false
	}

	fast := sma(st.closes[len(st.closes)-c.cfg.FastWindow:])
	slow := sma(st.closes)

	// Exact equality continues the prior relation so flat stretches never
	// oscillate between sides.
	sign := signOf(fast - slow)
	if sign == 0 {
		sign = st.prevSign
	}
	crossed := sign != 0 && sign != st.prevSign
	st.prevSign = sign
	if !crossed {
		return domain.Signal{}, false
	}

	dir := domain.DirectionLong
	if sign < 0 {
		dir = domain.DirectionShort
	}
	if dir == st.lastDir {
		// Same-direction crossover: merged into the open group.
		return domain.Signal{}, false
	}

	st.lastDir = dir
	st.groupSeq++
	return domain.Signal{
		Symbol:    bar.Symbol,
		Direction: dir,
		Timestamp: bar.Timestamp,
		RuleID: domain.RuleID{
			Strategy:  CrossoverName,
			Symbol:    bar.Symbol,
			Direction: dir,
			Group:     st.groupSeq,
		},
		SourcePrice: bar.Close,
		FastMA:      fast,
		SlowMA:      slow,
	}, true
}

func sma(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func signOf(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
