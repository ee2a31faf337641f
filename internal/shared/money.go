package shared

import "github.com/shopspring/decimal"

// Storage scales, matching the NUMERIC columns in the schema.
const (
	QtyPlaces    int32 = 4
	PricePlaces  int32 = 4
	CostPlaces   int32 = 6
	AmountPlaces int32 = 8
)

// FitsScale reports whether d is exact at places decimal digits.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Round(places).Equal(d)
}
