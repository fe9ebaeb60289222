package venue

import "github.com/shopspring/decimal"

var twoDec = decimal.NewFromInt(2)

// mustDecimal parses a venue-supplied numeric string, returning zero on
// failure rather than panicking — a single malformed field should not take
// down the adapter.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
