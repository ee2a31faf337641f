package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFitsScale(t *testing.T) {
	cases := map[string]bool{
		"0.005":        true,
		"0.99900000":   true,
		"1.000000000":  true,
		"0.123456789":  false,
		"12":           true,
		"-0.000000001": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, FitsScale(decimal.RequireFromString(in), AmountPlaces), in)
	}
	assert.False(t, FitsScale(decimal.RequireFromString("0.00001"), QtyPlaces))
}
