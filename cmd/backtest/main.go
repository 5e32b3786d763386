package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/crossbt/config"
	"github.com/alejandrodnm/crossbt/internal/adapters/feed"
	"github.com/alejandrodnm/crossbt/internal/adapters/notify"
	"github.com/alejandrodnm/crossbt/internal/adapters/storage"
	"github.com/alejandrodnm/crossbt/internal/engine"
	"github.com/alejandrodnm/crossbt/internal/montecarlo"
	"github.com/alejandrodnm/crossbt/internal/optimize"
	"github.com/alejandrodnm/crossbt/internal/sizing"
	"github.com/alejandrodnm/crossbt/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "run", "run | optimize | montecarlo | history")
	symbol := flag.String("symbol", "DEMO", "symbol for the synthetic demo feed")
	bars := flag.Int("bars", 504, "number of synthetic bars to generate")
	seed := flag.Int64("seed", 1, "seed for the synthetic feed")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	trades := flag.Bool("trades", false, "print the full trade table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(errors.Unwrap(err)) {
			slog.Error("failed to load config", "err", err, "path", *configPath)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("crossbt starting",
		"mode", *mode,
		"strategy", cfg.Engine.Strategy,
		"fast", cfg.Engine.FastWindow,
		"slow", cfg.Engine.SlowWindow,
		"sizing", cfg.Sizing.Policy,
	)

	registry := strategy.DefaultRegistry()
	notifier := notify.NewConsole(*trades)

	var store *storage.SQLiteStorage
	if cfg.Storage.DSN != "" {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engCfg := engineConfig(cfg)
	data := feed.Synthetic(*symbol, *bars, time.Now().UTC().AddDate(0, 0, -*bars), 100, *seed)

	switch *mode {
	case "run", "montecarlo":
		eng, err := engine.New(engCfg, registry, notify.NewSlogObserver())
		if err != nil {
			slog.Error("failed to build engine", "err", err)
			os.Exit(1)
		}
		res, err := eng.Run(ctx, feed.NewMemory(data))
		if err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
		notifier.PrintRun(res)

		if store != nil {
			if err := store.SaveRun(ctx, res); err != nil {
				slog.Warn("failed to persist run", "err", err)
			}
		}

		if *mode == "montecarlo" {
			mc, err := montecarlo.Simulate(res.Trades, montecarlo.Config{
				Simulations:    cfg.MonteCarlo.Simulations,
				Method:         cfg.MonteCarlo.Method,
				BlockSize:      cfg.MonteCarlo.BlockSize,
				Seed:           cfg.MonteCarlo.Seed,
				InitialCapital: cfg.Engine.InitialCapital,
				PeriodsPerYear: cfg.Engine.PeriodsPerYear,
			})
			if err != nil {
				slog.Error("monte carlo failed", "err", err)
				os.Exit(1)
			}
			notifier.PrintMonteCarlo(mc)
		}

	case "optimize":
		opt := optimize.New(engCfg, registry, optimize.Config{
			Workers:       cfg.Optimize.Workers,
			TrainFraction: cfg.Optimize.TrainFraction,
		})
		results, err := opt.Run(ctx, data, optimize.Grid{
			FastWindows: cfg.Optimize.FastWindows,
			SlowWindows: cfg.Optimize.SlowWindows,
		})
		if err != nil {
			slog.Error("optimization failed", "err", err)
			os.Exit(1)
		}
		notifier.PrintLeaderboard(results, 10)

	case "history":
		if store == nil {
			slog.Error("history mode needs storage.dsn configured")
			os.Exit(1)
		}
		runs, err := store.GetRuns(ctx, 20)
		if err != nil {
			slog.Error("failed to read run history", "err", err)
			os.Exit(1)
		}
		notifier.PrintHistory(runs)

	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}

	slog.Info("crossbt done")
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Strategy:       cfg.Engine.Strategy,
		FastWindow:     cfg.Engine.FastWindow,
		SlowWindow:     cfg.Engine.SlowWindow,
		InitialCapital: cfg.Engine.InitialCapital,
		Slippage:       cfg.Engine.Slippage,
		CommissionRate: cfg.Engine.CommissionRate,
		PeriodsPerYear: cfg.Engine.PeriodsPerYear,
		Sizing: sizing.Config{
			Policy:            cfg.Sizing.Policy,
			Quantity:          cfg.Sizing.Quantity,
			MaxQuantity:       cfg.Sizing.MaxQuantity,
			PercentEquity:     cfg.Sizing.PercentEquity,
			RiskPercent:       cfg.Sizing.RiskPercent,
			StopLossPct:       cfg.Sizing.StopLossPct,
			ATRWindow:         cfg.Sizing.ATRWindow,
			ATRMultiple:       cfg.Sizing.ATRMultiple,
			KellyFraction:     cfg.Sizing.KellyFraction,
			KellyWinRate:      cfg.Sizing.KellyWinRate,
			KellyWinLossRatio: cfg.Sizing.KellyWinLossRatio,
			KellyMinTrades:    cfg.Sizing.KellyMinTrades,
		},
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
