package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEqualWithinEpsilon(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	b := decimal.RequireFromString("99.99")
	require.False(t, Equal(a, b), "one cent apart must not be equal")
	require.True(t, Equal(a, decimal.RequireFromString("100.00")))
	require.True(t, Equal(a, decimal.RequireFromString("100.004")))
}

func TestRoundOnce(t *testing.T) {
	v := decimal.RequireFromString("33.335")
	require.Equal(t, "33.34", Round(v).StringFixed(2))
	// rounding an already-rounded amount is a no-op
	require.Equal(t, "33.34", Round(Round(v)).StringFixed(2))
}

func TestSum(t *testing.T) {
	got := Sum(FromFloat(0.1), FromFloat(0.2), FromFloat(0.3))
	require.True(t, got.Equal(decimal.RequireFromString("0.6")))
}
