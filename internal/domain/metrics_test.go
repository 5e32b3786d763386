package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

func closedTrade(pnl float64) *domain.Trade {
	return &domain.Trade{
		Symbol:      "SPY",
		Direction:   domain.DirectionLong,
		Quantity:    100,
		RealizedPnl: pnl,
		Closed:      true,
	}
}

func TestComputeStats(t *testing.T) {
	trades := []*domain.Trade{
		closedTrade(100),
		closedTrade(-50),
		closedTrade(150),
		{Symbol: "SPY", Quantity: 10, Closed: false}, // open trades are ignored
	}
	equity := []domain.EquityPoint{
		{Timestamp: t0, Equity: 100000, Cash: 100000},
		{Timestamp: t1, Equity: 100100, Cash: 100100},
		{Timestamp: t2, Equity: 100050, Cash: 100050},
		{Timestamp: t3, Equity: 100200, Cash: 100200},
	}

	s := domain.ComputeStats(trades, equity, 252)

	assert.Equal(t, 3, s.ClosedTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 250.0, s.GrossProfit, 1e-9)
	assert.InDelta(t, 50.0, s.GrossLoss, 1e-9)
	assert.InDelta(t, 5.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 200.0/3.0, s.Expectancy, 1e-9)
	assert.InDelta(t, 0.002, s.TotalReturn, 1e-9)
	assert.InDelta(t, 50.0/100100.0, s.MaxDrawdown, 1e-9)
	assert.Greater(t, s.AnnualizedReturn, 0.0)
	assert.Greater(t, s.Volatility, 0.0)
}

func TestComputeStats_NoLossesProfitFactorInf(t *testing.T) {
	s := domain.ComputeStats([]*domain.Trade{closedTrade(10)}, nil, 252)
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
	assert.Equal(t, 1.0, s.WinRate)
}

func TestComputeStats_EmptyInputs(t *testing.T) {
	s := domain.ComputeStats(nil, nil, 252)
	assert.Zero(t, s.ClosedTrades)
	assert.Zero(t, s.TotalReturn)
	assert.Zero(t, s.ProfitFactor)
}

func TestMaxDrawdown(t *testing.T) {
	eq := func(vals ...float64) []domain.EquityPoint {
		pts := make([]domain.EquityPoint, len(vals))
		for i, v := range vals {
			pts[i] = domain.EquityPoint{Equity: v}
		}
		return pts
	}

	assert.Zero(t, domain.MaxDrawdown(nil))
	assert.Zero(t, domain.MaxDrawdown(eq(100, 110, 120)))
	// 120 -> 90 is a 25% drawdown, deeper than the later 130 -> 110 one.
	assert.InDelta(t, 0.25, domain.MaxDrawdown(eq(100, 120, 90, 130, 110)), 1e-9)
}
