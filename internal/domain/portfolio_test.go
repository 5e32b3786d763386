package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.AddDate(0, 0, 1)
	t2 = t0.AddDate(0, 0, 2)
	t3 = t0.AddDate(0, 0, 3)
)

func rule(dir domain.Direction, group int) domain.RuleID {
	return domain.RuleID{Strategy: "sma_cross", Symbol: "SPY", Direction: dir, Group: group}
}

func TestApplyFill_OpenAndExtendWeightedAverage(t *testing.T) {
	pf := domain.NewPortfolio(100000)

	lot, err := pf.ApplyFill("SPY", 100, 10, 0, t1, rule(domain.DirectionLong, 1))
	require.NoError(t, err)
	assert.False(t, lot.Closed)
	assert.Equal(t, int64(100), lot.Quantity)
	assert.Equal(t, 10.0, lot.EntryPrice)

	lot2, err := pf.ApplyFill("SPY", 100, 12, 0, t2, rule(domain.DirectionLong, 1))
	require.NoError(t, err)
	assert.Same(t, lot, lot2, "extending must grow the open lot, not create a new one")

	pos := pf.Position("SPY")
	assert.Equal(t, int64(200), pos.Quantity)
	assert.InDelta(t, 11.0, pos.AvgCost, 1e-9)
	assert.InDelta(t, 97800.0, pf.Cash(), 1e-9)
	// Marked at the last fill price.
	assert.InDelta(t, 97800+200*12.0, pf.Equity(), 1e-9)
}

func TestApplyFill_CloseRealizesPnl(t *testing.T) {
	pf := domain.NewPortfolio(100000)
	_, err := pf.ApplyFill("SPY", 100, 10, 0, t1, rule(domain.DirectionLong, 1))
	require.NoError(t, err)
	_, err = pf.ApplyFill("SPY", 100, 12, 0, t2, rule(domain.DirectionLong, 1))
	require.NoError(t, err)

	closed, err := pf.ApplyFill("SPY", -200, 13, 0, t3, rule(domain.DirectionShort, 2))
	require.NoError(t, err)
	require.True(t, closed.Closed)
	assert.InDelta(t, 400.0, closed.RealizedPnl, 1e-9) // (13-11)*200
	assert.Equal(t, 13.0, closed.ExitPrice)
	assert.Equal(t, t3, closed.ExitTime)

	assert.Equal(t, int64(0), pf.Position("SPY").Quantity)
	assert.InDelta(t, 100400.0, pf.Equity(), 1e-9)
	assert.NoError(t, pf.CheckConsistency(0.01))
}

func TestApplyFill_CloseAndReverseSingleFill(t *testing.T) {
	pf := domain.NewPortfolio(100000)
	_, err := pf.ApplyFill("SPY", 100, 10, 0, t1, rule(domain.DirectionLong, 1))
	require.NoError(t, err)

	closed, err := pf.ApplyFill("SPY", -150, 11, 0, t2, rule(domain.DirectionShort, 2))
	require.NoError(t, err)
	require.True(t, closed.Closed)
	assert.InDelta(t, 100.0, closed.RealizedPnl, 1e-9) // (11-10)*100

	pos := pf.Position("SPY")
	assert.Equal(t, int64(-50), pos.Quantity)
	assert.InDelta(t, 11.0, pos.AvgCost, 1e-9)

	trades := pf.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, domain.DirectionShort, trades[1].Direction)
	assert.False(t, trades[1].Closed)
	// Cash: -1000 on the open, +1650 on the 150-share sell.
	assert.InDelta(t, 100650.0, pf.Cash(), 1e-9)
	assert.InDelta(t, 100100.0, pf.Equity(), 1e-9)
}

func TestApplyFill_CommissionsProRated(t *testing.T) {
	pf := domain.NewPortfolio(100000)
	// Baseline equity point before any commission is paid, as the engine
	// records one per bar before processing fills.
	pf.Mark(domain.Bar{Symbol: "SPY", Timestamp: t0, Close: 10})
	_, err := pf.ApplyFill("SPY", 100, 10, 10, t1, rule(domain.DirectionLong, 1))
	require.NoError(t, err)

	closed, err := pf.ApplyFill("SPY", -100, 12, 12, t2, rule(domain.DirectionShort, 2))
	require.NoError(t, err)
	require.True(t, closed.Closed)
	// Gross 200 minus entry (10) and exit (12) commissions.
	assert.InDelta(t, 178.0, closed.RealizedPnl, 1e-9)
	assert.InDelta(t, 22.0, closed.Commission, 1e-9)
	assert.NoError(t, pf.CheckConsistency(0.01))
}

func TestApplyFill_PartialCloseSplitsLot(t *testing.T) {
	pf := domain.NewPortfolio(100000)
	_, err := pf.ApplyFill("SPY", 100, 10, 10, t1, rule(domain.DirectionLong, 1))
	require.NoError(t, err)

	closed, err := pf.ApplyFill("SPY", -40, 12, 4, t2, rule(domain.DirectionShort, 2))
	require.NoError(t, err)
	require.True(t, closed.Closed)
	assert.Equal(t, int64(40), closed.Quantity)
	// Gross (12-10)*40 minus 40% of the entry commission minus the exit commission.
	assert.InDelta(t, 80-4-4.0, closed.RealizedPnl, 1e-9)

	trades := pf.Trades()
	require.Len(t, trades, 2)
	open := trades[0]
	assert.False(t, open.Closed)
	assert.Equal(t, int64(60), open.Quantity)
	assert.InDelta(t, 6.0, open.Commission, 1e-9)
	assert.Equal(t, int64(60), pf.Position("SPY").Quantity)
}

func TestApplyFill_RejectsZeroQuantityAndBadPrice(t *testing.T) {
	pf := domain.NewPortfolio(100000)
	_, err := pf.ApplyFill("SPY", 0, 10, 0, t1, rule(domain.DirectionLong, 1))
	assert.Error(t, err)
	_, err = pf.ApplyFill("SPY", 10, -1, 0, t1, rule(domain.DirectionLong, 1))
	assert.Error(t, err)
}

func TestCheckConsistency_DetectsDivergence(t *testing.T) {
	pf := domain.NewPortfolio(100000)
	_, err := pf.ApplyFill("SPY", 100, 10, 0, t1, rule(domain.DirectionLong, 1))
	require.NoError(t, err)

	// Mark the open position far away from cost: the equity delta now holds
	// unrealized PnL that no closed trade accounts for.
	pf.Mark(domain.Bar{Symbol: "SPY", Timestamp: t2, Close: 20})

	err = pf.CheckConsistency(0.01)
	var pce *domain.PnlConsistencyError
	require.ErrorAs(t, err, &pce)
	assert.InDelta(t, 1000.0, pce.EquityDelta, 1e-9)
}

func TestPortfolio_TradeIDsAreDeterministic(t *testing.T) {
	mk := func() []string {
		pf := domain.NewPortfolio(100000)
		_, err := pf.ApplyFill("SPY", 100, 10, 0, t1, rule(domain.DirectionLong, 1))
		require.NoError(t, err)
		_, err = pf.ApplyFill("SPY", -150, 11, 0, t2, rule(domain.DirectionShort, 2))
		require.NoError(t, err)
		var ids []string
		for _, tr := range pf.Trades() {
			ids = append(ids, tr.ID)
		}
		return ids
	}
	assert.Equal(t, mk(), mk())
}
