package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/crossbt/internal/adapters/feed"
	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/engine"
	"github.com/alejandrodnm/crossbt/internal/sizing"
	"github.com/alejandrodnm/crossbt/internal/strategy"
)

func testConfig() engine.Config {
	return engine.Config{
		Strategy:       strategy.CrossoverName,
		FastWindow:     5,
		SlowWindow:     15,
		InitialCapital: 100000,
		PeriodsPerYear: 252,
		Sizing: sizing.Config{
			Policy:      sizing.PolicyFixed,
			Quantity:    100,
			MaxQuantity: 1000,
		},
	}
}

// barsFromCloses builds daily bars for one symbol from a close series.
func barsFromCloses(symbol string, closes []float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		})
	}
	return bars
}

// crossoverCloses is 15 flat bars to warm the slow window, then a rally that
// crosses long and a slide that crosses short.
func crossoverCloses() []float64 {
	closes := make([]float64, 0, 20)
	for i := 0; i < 15; i++ {
		closes = append(closes, 100)
	}
	return append(closes, 101, 102, 99, 97, 96)
}

func TestEngineRun_EndToEnd(t *testing.T) {
	eng, err := engine.New(testConfig(), strategy.DefaultRegistry(), nil)
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), feed.NewMemory(barsFromCloses("SPY", crossoverCloses())))
	require.NoError(t, err)

	// One long crossover on the rally, one short on the slide.
	assert.Equal(t, 2, res.SignalsEmitted)
	assert.Zero(t, res.DuplicatesRejected)
	assert.Equal(t, 2, res.OrdersFilled)

	// Long 100 @ 101, reversed at 97 (-400), short 100 @ 97 force-closed at
	// 96 (+100). Zero friction makes the arithmetic exact.
	require.Len(t, res.Trades, 2)
	long, short := res.Trades[0], res.Trades[1]

	assert.Equal(t, domain.DirectionLong, long.Direction)
	assert.True(t, long.Closed)
	assert.Equal(t, 101.0, long.EntryPrice)
	assert.Equal(t, 97.0, long.ExitPrice)
	assert.Equal(t, -400.0, long.RealizedPnl)

	assert.Equal(t, domain.DirectionShort, short.Direction)
	assert.True(t, short.Closed)
	assert.Equal(t, 97.0, short.EntryPrice)
	assert.Equal(t, 96.0, short.ExitPrice)
	assert.Equal(t, 100.0, short.RealizedPnl)

	assert.Equal(t, 99700.0, res.FinalEquity)
	assert.Empty(t, res.Positions, "force-close must leave the book flat")
	assert.Equal(t, 2, res.Stats.ClosedTrades)
}

func TestEngineRun_RunsAreIsolated(t *testing.T) {
	eng, err := engine.New(testConfig(), strategy.DefaultRegistry(), nil)
	require.NoError(t, err)

	bars := barsFromCloses("SPY", crossoverCloses())
	first, err := eng.Run(context.Background(), feed.NewMemory(bars))
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), feed.NewMemory(bars))
	require.NoError(t, err)

	// Same bars through the same engine replay byte-identically: no state
	// survives from the first run.
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.FinalEquity, second.FinalEquity)
	assert.Equal(t, first.Stats, second.Stats)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestNewRunState_NothingShared(t *testing.T) {
	cfg := testConfig()
	reg := strategy.DefaultRegistry()

	a, err := engine.NewRunState(cfg, reg)
	require.NoError(t, err)
	b, err := engine.NewRunState(cfg, reg)
	require.NoError(t, err)

	id := ruleID(domain.DirectionLong, 1)
	require.True(t, a.Dedup.Accept(id))
	assert.True(t, b.Dedup.Accept(id), "dedup sets must not be shared across states")

	_, err = a.Portfolio.ApplyFill("SPY", 100, 10, 0, time.Now(), id)
	require.NoError(t, err)
	assert.Zero(t, b.Portfolio.Position("SPY").Quantity)
}

func TestEngineRun_EmptyFeed(t *testing.T) {
	eng, err := engine.New(testConfig(), strategy.DefaultRegistry(), nil)
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), feed.NewMemory(nil))
	require.NoError(t, err)
	assert.Zero(t, res.SignalsEmitted)
	assert.Equal(t, 100000.0, res.FinalEquity)
	assert.Empty(t, res.Trades)
}

type failingFeed struct{ err error }

func (f failingFeed) Next(context.Context) (domain.Bar, error) { return domain.Bar{}, f.err }

func TestEngineRun_FeedErrorAborts(t *testing.T) {
	eng, err := engine.New(testConfig(), strategy.DefaultRegistry(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = eng.Run(context.Background(), failingFeed{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestEngineRun_ContextCancellation(t *testing.T) {
	eng, err := engine.New(testConfig(), strategy.DefaultRegistry(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Run(ctx, feed.NewMemory(barsFromCloses("SPY", crossoverCloses())))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineNew_RejectsBadConfig(t *testing.T) {
	reg := strategy.DefaultRegistry()

	bad := testConfig()
	bad.SlowWindow = bad.FastWindow
	_, err := engine.New(bad, reg, nil)
	assert.Error(t, err)

	bad = testConfig()
	bad.InitialCapital = 0
	_, err = engine.New(bad, reg, nil)
	assert.Error(t, err)

	bad = testConfig()
	bad.Strategy = "unknown"
	eng, err := engine.New(bad, reg, nil)
	require.NoError(t, err) // strategy existence is checked when the run builds its state
	_, err = eng.Run(context.Background(), feed.NewMemory(nil))
	assert.Error(t, err)
}
