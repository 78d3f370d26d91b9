package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse(" 1500.25 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("1500.25")))

	d, err = Parse("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = Parse("12abc")
	assert.Error(t, err)
}

func TestSafeDiv(t *testing.T) {
	assert.True(t, SafeDiv(MustParse("700"), MustParse("500")).Equal(MustParse("1.4")))
	assert.True(t, SafeDiv(MustParse("700"), decimal.Zero).IsZero())
	assert.True(t, SafeDiv(MustParse("700"), MustParse("-1")).IsZero())
}

func TestPercentage(t *testing.T) {
	assert.True(t, Percentage(MustParse("760"), MustParse("1000")).Equal(MustParse("76")))
	assert.True(t, Percentage(MustParse("10"), decimal.Zero).IsZero())
}

func TestMinSumClamp(t *testing.T) {
	assert.True(t, Min(MustParse("3"), MustParse("2")).Equal(MustParse("2")))
	assert.True(t, Sum(MustParse("1.1"), MustParse("2.2"), MustParse("3.3")).Equal(MustParse("6.6")))
	assert.True(t, ClampZero(MustParse("-0.01")).IsZero())
	assert.True(t, ClampZero(MustParse("0.01")).Equal(MustParse("0.01")))
}
