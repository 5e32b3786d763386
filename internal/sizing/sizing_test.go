package sizing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/sizing"
)

func signal(dir domain.Direction, price float64) domain.Signal {
	return domain.Signal{
		Symbol:      "SPY",
		Direction:   dir,
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SourcePrice: price,
		RuleID:      domain.RuleID{Strategy: "sma_cross", Symbol: "SPY", Direction: dir, Group: 1},
	}
}

func TestFixedSizer(t *testing.T) {
	s, err := sizing.New(sizing.Config{Policy: sizing.PolicyFixed, Quantity: 100, MaxQuantity: 1000})
	require.NoError(t, err)
	pf := domain.NewPortfolio(100000)

	assert.Equal(t, int64(100), s.Size(signal(domain.DirectionLong, 50), pf))
	assert.Equal(t, int64(-100), s.Size(signal(domain.DirectionShort, 50), pf))
}

func TestFixedSizer_CapApplies(t *testing.T) {
	s, err := sizing.New(sizing.Config{Policy: sizing.PolicyFixed, Quantity: 500, MaxQuantity: 200})
	require.NoError(t, err)

	assert.Equal(t, int64(200), s.Size(signal(domain.DirectionLong, 50), domain.NewPortfolio(100000)))
}

func TestPercentEquitySizer(t *testing.T) {
	s, err := sizing.New(sizing.Config{Policy: sizing.PolicyPercentEquity, PercentEquity: 0.1, MaxQuantity: 10000})
	require.NoError(t, err)
	pf := domain.NewPortfolio(100000)

	// 10% of 100k at price 50 buys 200 shares.
	assert.Equal(t, int64(200), s.Size(signal(domain.DirectionLong, 50), pf))
	assert.Equal(t, int64(-200), s.Size(signal(domain.DirectionShort, 50), pf))
	assert.Zero(t, s.Size(signal(domain.DirectionLong, 0), pf), "non-positive price sizes to zero")
}

func TestPercentRiskSizer(t *testing.T) {
	s, err := sizing.New(sizing.Config{
		Policy: sizing.PolicyPercentRisk, RiskPercent: 0.02, StopLossPct: 0.05, MaxQuantity: 10000,
	})
	require.NoError(t, err)
	pf := domain.NewPortfolio(100000)

	// Risking 2k over a 5-point stop buys 400 shares.
	assert.Equal(t, int64(400), s.Size(signal(domain.DirectionLong, 100), pf))
}

func TestPercentRiskSizer_StopDistanceFloor(t *testing.T) {
	s, err := sizing.New(sizing.Config{
		Policy: sizing.PolicyPercentRisk, RiskPercent: 0.02, StopLossPct: 0, MaxQuantity: 10000,
	})
	require.NoError(t, err)

	// A zero stop distance falls back to 1% of price, not a blow-up.
	assert.Equal(t, int64(2000), s.Size(signal(domain.DirectionLong, 100), domain.NewPortfolio(100000)))
}

func TestVolatilitySizer(t *testing.T) {
	s, err := sizing.New(sizing.Config{
		Policy: sizing.PolicyVolatility, RiskPercent: 0.02, ATRWindow: 2, ATRMultiple: 2, MaxQuantity: 10000,
	})
	require.NoError(t, err)
	pf := domain.NewPortfolio(100000)

	bc, ok := s.(sizing.BarConsumer)
	require.True(t, ok, "volatility sizer must consume bars")

	// Before the ATR window fills the stop falls back to the 1%-of-price floor.
	assert.Equal(t, int64(2000), s.Size(signal(domain.DirectionLong, 100), pf))

	bar := domain.Bar{Symbol: "SPY", High: 102, Low: 98, Close: 100}
	bc.OnBar(bar)
	bc.OnBar(bar)

	// ATR 4, multiple 2: risking 2k over an 8-point stop buys 250.
	assert.Equal(t, int64(250), s.Size(signal(domain.DirectionLong, 100), pf))
	assert.Equal(t, int64(-250), s.Size(signal(domain.DirectionShort, 100), pf))
}

func TestKellySizer_PriorsWithThinHistory(t *testing.T) {
	s, err := sizing.New(sizing.Config{
		Policy: sizing.PolicyKelly, KellyFraction: 0.5,
		KellyWinRate: 0.55, KellyWinLossRatio: 1.5, KellyMinTrades: 10,
		MaxQuantity: 10000,
	})
	require.NoError(t, err)

	// f = 0.55 - 0.45/1.5 = 0.25, half-Kelly 0.125 of 100k at price 100.
	assert.Equal(t, int64(125), s.Size(signal(domain.DirectionLong, 100), domain.NewPortfolio(100000)))
}

func TestKellySizer_UsesRunHistory(t *testing.T) {
	s, err := sizing.New(sizing.Config{
		Policy: sizing.PolicyKelly, KellyFraction: 0.5,
		KellyWinRate: 0.55, KellyWinLossRatio: 1.5, KellyMinTrades: 10,
		MaxQuantity: 10000,
	})
	require.NoError(t, err)

	// 8 winners of +2 and 2 losers of -1: win rate 0.8, win/loss ratio 2.
	pf := domain.NewPortfolio(100000)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := domain.RuleID{Strategy: "sma_cross", Symbol: "SPY", Direction: domain.DirectionLong, Group: 1}
	for i := 0; i < 10; i++ {
		exit := 12.0
		if i >= 8 {
			exit = 9
		}
		_, err := pf.ApplyFill("SPY", 1, 10, 0, at, rule)
		require.NoError(t, err)
		_, err = pf.ApplyFill("SPY", -1, exit, 0, at, rule)
		require.NoError(t, err)
	}
	require.Len(t, pf.ClosedTrades(), 10)

	// f = 0.8 - 0.2/2 = 0.7, half-Kelly 0.35 of equity 100014 at price 100.
	assert.Equal(t, int64(350), s.Size(signal(domain.DirectionLong, 100), pf))
}

func TestNew_UnknownAndInvalidConfigs(t *testing.T) {
	_, err := sizing.New(sizing.Config{Policy: "martingale"})
	assert.Error(t, err)

	for _, cfg := range []sizing.Config{
		{Policy: sizing.PolicyFixed, Quantity: 0},
		{Policy: sizing.PolicyPercentEquity, PercentEquity: 1.5},
		{Policy: sizing.PolicyPercentRisk, RiskPercent: 0},
		{Policy: sizing.PolicyVolatility, RiskPercent: 0.02, ATRWindow: 0, ATRMultiple: 2},
		{Policy: sizing.PolicyKelly, KellyFraction: 0, KellyWinRate: 0.55, KellyWinLossRatio: 1.5},
	} {
		_, err := sizing.New(cfg)
		assert.Error(t, err, "policy %s", cfg.Policy)
	}
}
