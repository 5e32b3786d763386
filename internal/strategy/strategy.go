package strategy

import (
	"fmt"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// Config carries the parameters shared by signal generators.
type Config struct {
	FastWindow int
	SlowWindow int
}

// Validate checks the window relationship every generator relies on.
func (c Config) Validate() error {
	if c.FastWindow < 1 {
		return fmt.Errorf("strategy: fast window %d < 1", c.FastWindow)
	}
	if c.SlowWindow <= c.FastWindow {
		return fmt.Errorf("strategy: slow window %d must exceed fast window %d", c.SlowWindow, c.FastWindow)
	}
	return nil
}

// SignalGenerator turns bars into directional signals. Implementations keep
// per-symbol state (price history, last accepted direction) and belong to
// exactly one run: a fresh generator is built for every run.
type SignalGenerator interface {
	// Name is the strategy identifier embedded into every rule id.
	Name() string

	// OnBar consumes one bar and reports whether it produced a signal.
	// Insufficient history is not an error, just no signal.
	OnBar(bar domain.Bar) (domain.Signal, bool)
}

// Factory builds a fresh generator for one run.
type Factory func(cfg Config) (SignalGenerator, error)

// Registry maps strategy names to constructors. It is built explicitly at
// startup from configuration; there is no discovery or reflection.
type Registry map[string]Factory

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return make(Registry)
}

// Register adds a constructor under the given name.
func (r Registry) Register(name string, f Factory) {
	r[name] = f
}

// New builds a fresh generator by name.
func (r Registry) New(name string, cfg Config) (SignalGenerator, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return f(cfg)
}

// DefaultRegistry returns the registry with the built-in strategies.
func DefaultRegistry() Registry {
	r := NewRegistry()
	r.Register(CrossoverName, NewCrossover)
	return r
}
