package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, "₦900.00", FormatNaira(decimal.RequireFromString("900")))
	assert.Equal(t, "$1.7846", FormatUsd(decimal.RequireFromString("1.784615384")))
	assert.Equal(t, "a1b2c3d4...", ShortId("a1b2c3d4-0000-4000-8000-000000000001"))
	assert.Equal(t, "none", ShortId(""))
	assert.Equal(t, "│  ", BoxPrefix(false))
	assert.Equal(t, "└  ", BoxPrefix(true))
}
