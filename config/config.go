package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the backtester.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Sizing     SizingConfig     `yaml:"sizing"`
	MonteCarlo MonteCarloConfig `yaml:"montecarlo"`
	Optimize   OptimizeConfig   `yaml:"optimize"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// EngineConfig holds the run parameters.
type EngineConfig struct {
	Strategy       string  `yaml:"strategy"`
	FastWindow     int     `yaml:"fast_window"`
	SlowWindow     int     `yaml:"slow_window"`
	InitialCapital float64 `yaml:"initial_capital"`
	Slippage       float64 `yaml:"slippage"`        // fraction, e.g. 0.0005
	CommissionRate float64 `yaml:"commission_rate"` // fraction of filled notional
	PeriodsPerYear float64 `yaml:"periods_per_year"`
}

// SizingConfig selects and parameterizes the position sizing policy.
type SizingConfig struct {
	Policy            string  `yaml:"policy"` // fixed | percent_equity | percent_risk | volatility | kelly
	Quantity          int64   `yaml:"quantity"`
	MaxQuantity       int64   `yaml:"max_quantity"`
	PercentEquity     float64 `yaml:"percent_equity"`
	RiskPercent       float64 `yaml:"risk_percent"`
	StopLossPct       float64 `yaml:"stop_loss_pct"`
	ATRWindow         int     `yaml:"atr_window"`
	ATRMultiple       float64 `yaml:"atr_multiple"`
	KellyFraction     float64 `yaml:"kelly_fraction"`
	KellyWinRate      float64 `yaml:"kelly_win_rate"`
	KellyWinLossRatio float64 `yaml:"kelly_win_loss_ratio"`
	KellyMinTrades    int     `yaml:"kelly_min_trades"`
}

// MonteCarloConfig controls the robustness simulation.
type MonteCarloConfig struct {
	Simulations int    `yaml:"simulations"`
	Method      string `yaml:"method"` // bootstrap | block_bootstrap | parametric
	BlockSize   int    `yaml:"block_size"`
	Seed        int64  `yaml:"seed"`
}

// OptimizeConfig controls the grid search.
type OptimizeConfig struct {
	FastWindows   []int   `yaml:"fast_windows"`
	SlowWindows   []int   `yaml:"slow_windows"`
	Workers       int     `yaml:"workers"`
	TrainFraction float64 `yaml:"train_fraction"`
}

// StorageConfig controls run persistence.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"; empty disables persistence
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Environment
// variables override the YAML values for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env if present (silences the error when there is none).
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate rejects configurations the engine would refuse anyway, with
// clearer messages.
func (c *Config) Validate() error {
	if c.Engine.FastWindow < 1 {
		return fmt.Errorf("config: engine.fast_window must be >= 1, got %d", c.Engine.FastWindow)
	}
	if c.Engine.SlowWindow <= c.Engine.FastWindow {
		return fmt.Errorf("config: engine.slow_window (%d) must exceed fast_window (%d)",
			c.Engine.SlowWindow, c.Engine.FastWindow)
	}
	if c.Engine.InitialCapital <= 0 {
		return fmt.Errorf("config: engine.initial_capital must be positive")
	}
	if c.Engine.Slippage < 0 || c.Engine.CommissionRate < 0 {
		return fmt.Errorf("config: slippage and commission_rate must be non-negative")
	}
	if c.Optimize.TrainFraction < 0 || c.Optimize.TrainFraction >= 1 {
		if c.Optimize.TrainFraction != 0 {
			return fmt.Errorf("config: optimize.train_fraction must be in [0,1), got %.2f",
				c.Optimize.TrainFraction)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Engine.Strategy == "" {
		cfg.Engine.Strategy = "sma_cross"
	}
	if cfg.Engine.FastWindow == 0 {
		cfg.Engine.FastWindow = 10
	}
	if cfg.Engine.SlowWindow == 0 {
		cfg.Engine.SlowWindow = 30
	}
	if cfg.Engine.InitialCapital == 0 {
		cfg.Engine.InitialCapital = 100000
	}
	if cfg.Engine.PeriodsPerYear == 0 {
		cfg.Engine.PeriodsPerYear = 252
	}

	if cfg.Sizing.Policy == "" {
		cfg.Sizing.Policy = "fixed"
	}
	if cfg.Sizing.Quantity == 0 {
		cfg.Sizing.Quantity = 100
	}
	if cfg.Sizing.MaxQuantity == 0 {
		cfg.Sizing.MaxQuantity = 1000
	}
	if cfg.Sizing.PercentEquity == 0 {
		cfg.Sizing.PercentEquity = 0.1
	}
	if cfg.Sizing.RiskPercent == 0 {
		cfg.Sizing.RiskPercent = 0.02
	}
	if cfg.Sizing.StopLossPct == 0 {
		cfg.Sizing.StopLossPct = 0.05
	}
	if cfg.Sizing.ATRWindow == 0 {
		cfg.Sizing.ATRWindow = 14
	}
	if cfg.Sizing.ATRMultiple == 0 {
		cfg.Sizing.ATRMultiple = 2.0
	}
	if cfg.Sizing.KellyFraction == 0 {
		cfg.Sizing.KellyFraction = 0.5
	}
	if cfg.Sizing.KellyWinRate == 0 {
		cfg.Sizing.KellyWinRate = 0.55
	}
	if cfg.Sizing.KellyWinLossRatio == 0 {
		cfg.Sizing.KellyWinLossRatio = 1.5
	}
	if cfg.Sizing.KellyMinTrades == 0 {
		cfg.Sizing.KellyMinTrades = 10
	}

	if cfg.MonteCarlo.Simulations == 0 {
		cfg.MonteCarlo.Simulations = 1000
	}
	if cfg.MonteCarlo.Method == "" {
		cfg.MonteCarlo.Method = "bootstrap"
	}
	if cfg.MonteCarlo.BlockSize == 0 {
		cfg.MonteCarlo.BlockSize = 5
	}
	if cfg.MonteCarlo.Seed == 0 {
		cfg.MonteCarlo.Seed = 42
	}

	if len(cfg.Optimize.FastWindows) == 0 {
		cfg.Optimize.FastWindows = []int{5, 10, 20}
	}
	if len(cfg.Optimize.SlowWindows) == 0 {
		cfg.Optimize.SlowWindows = []int{30, 50, 100}
	}
	if cfg.Optimize.TrainFraction == 0 {
		cfg.Optimize.TrainFraction = 0.7
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
