package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundPrecision(t *testing.T) {
	d := decimal.RequireFromString("1.123456789")
	require.Equal(t, "1.12345679", Round(d).String())
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	d := decimal.RequireFromString("0.000000005")
	require.Equal(t, "0.00000001", Round(d).String())

	neg := decimal.RequireFromString("-0.000000005")
	require.Equal(t, "-0.00000001", Round(neg).String())
}

func TestRoundKeepsExactValues(t *testing.T) {
	d := decimal.RequireFromString("50")
	require.True(t, Round(d).Equal(d))
}

func TestMin(t *testing.T) {
	a := decimal.NewFromInt(3)
	b := decimal.NewFromInt(7)
	require.True(t, Min(a, b).Equal(a))
	require.True(t, Min(b, a).Equal(a))
}

func TestFromFloat(t *testing.T) {
	require.Equal(t, "0.05", FromFloat(0.05).String())
}
