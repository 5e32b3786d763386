package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/engine"
)

func marketOrder(qty int64) *domain.Order {
	return &domain.Order{
		ID:        "o-1",
		Symbol:    "SPY",
		Direction: domain.DirectionOf(qty),
		Quantity:  qty,
		State:     domain.OrderCreated,
	}
}

func TestBrokerExecute_BuySlippageAndCommission(t *testing.T) {
	b := engine.NewBroker(0.001, 0.002)
	o := marketOrder(100)

	require.NoError(t, b.Execute(o, 100, time.Now()))
	assert.Equal(t, domain.OrderFilled, o.State)
	assert.InDelta(t, 100.1, o.FillPrice, 1e-9) // buys fill above market
	assert.InDelta(t, 100.1*100*0.002, o.Commission, 1e-9)
}

func TestBrokerExecute_SellSlippage(t *testing.T) {
	b := engine.NewBroker(0.001, 0)
	o := marketOrder(-100)

	require.NoError(t, b.Execute(o, 100, time.Now()))
	assert.InDelta(t, 99.9, o.FillPrice, 1e-9) // sells fill below market
	assert.Zero(t, o.Commission)
}

func TestBrokerExecute_ZeroFriction(t *testing.T) {
	b := engine.NewBroker(0, 0)
	o := marketOrder(100)

	require.NoError(t, b.Execute(o, 100, time.Now()))
	assert.Equal(t, 100.0, o.FillPrice)
	assert.Zero(t, o.Commission)
}

func TestBrokerExecute_RefusesFilledOrder(t *testing.T) {
	b := engine.NewBroker(0, 0)
	o := marketOrder(100)
	require.NoError(t, b.Execute(o, 100, time.Now()))

	err := b.Execute(o, 105, time.Now())
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.OrderFilled, ite.From)
	// The original fill must be untouched.
	assert.Equal(t, 100.0, o.FillPrice)
}
