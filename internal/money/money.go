// Package money provides the shared numeric helpers used by every component
// that produces currency or percentage values. All rounding goes through
// shopspring/decimal so that repeated valuations of the same inputs are
// bit-for-bit identical across call sites.
package money

import "github.com/shopspring/decimal"

const (
	currencyPlaces   = 2
	percentagePlaces = 6
)

// RoundCurrency rounds a currency amount to 2 decimal places, half away from zero.
func RoundCurrency(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(currencyPlaces).Float64()
	return f
}

// RoundPercentage rounds a percentage or ratio to 6 decimal places, half away from zero.
func RoundPercentage(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(percentagePlaces).Float64()
	return f
}

// Notional returns units × unitPrice rounded to currency precision.
func Notional(units, unitPrice float64) float64 {
	f, _ := decimal.NewFromFloat(units).
		Mul(decimal.NewFromFloat(unitPrice)).
		Round(currencyPlaces).Float64()
	return f
}

// Ratio returns part / whole as a percentage-precision ratio.
// Returns 0 when whole is zero, so an all-cash portfolio reports 0% gain
// instead of propagating NaN.
func Ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(part).
		Div(decimal.NewFromFloat(whole)).
		Round(percentagePlaces).Float64()
	return f
}

// Growth returns the relative growth of current over base: (current − base) / base.
// Returns 0 when base is zero.
func Growth(current, base float64) float64 {
	if base == 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(current).
		Sub(decimal.NewFromFloat(base)).
		Div(decimal.NewFromFloat(base)).
		Round(percentagePlaces).Float64()
	return f
}
