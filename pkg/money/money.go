package money

import "github.com/shopspring/decimal"

// Precision is the number of fractional digits the platform tracks for CAST
// token amounts. Every amount that leaves an engine is rounded to it.
const Precision = 8

var Zero = decimal.Zero

// Round normalises an amount to the platform precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// FromFloat builds a normalised amount from a float input (HTTP payloads).
func FromFloat(f float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(f))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
