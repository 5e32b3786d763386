package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

func TestRuleID_StringRoundTrip(t *testing.T) {
	id := domain.RuleID{Strategy: "sma_cross", Symbol: "SPY", Direction: domain.DirectionLong, Group: 3}
	assert.Equal(t, "sma_cross:SPY:LONG:3", id.String())

	parsed, err := domain.ParseRuleID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	short := domain.RuleID{Strategy: "sma_cross", Symbol: "QQQ", Direction: domain.DirectionShort, Group: 12}
	parsed, err = domain.ParseRuleID(short.String())
	require.NoError(t, err)
	assert.Equal(t, short, parsed)
}

func TestParseRuleID_Malformed(t *testing.T) {
	for _, s := range []string{"", "a:b:c", "a:b:LONG:x", "a:b:SIDEWAYS:1"} {
		_, err := domain.ParseRuleID(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, domain.DirectionLong, domain.DirectionOf(10))
	assert.Equal(t, domain.DirectionShort, domain.DirectionOf(-1))
	assert.Equal(t, domain.DirectionNone, domain.DirectionOf(0))
}
