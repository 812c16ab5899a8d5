// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/emi-calculator/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons, never inside the amortization fold.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// RoundTo rounds a value to the given number of decimal places.
func RoundTo(val float64, digits int) float64 {
	if digits <= 0 {
		return math.Round(val)
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(val*scale) / scale
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// WithinRelativeTolerance checks if two values agree to the given fraction
// of the larger magnitude. Two zeros are always equal.
func WithinRelativeTolerance(val1, val2, tolerance float64) bool {
	scale := math.Max(math.Abs(val1), math.Abs(val2))
	if scale == 0 {
		return true
	}
	return math.Abs(val1-val2) <= tolerance*scale
}

// PercentToRate converts a percentage (e.g. 18) into a fraction (0.18).
func PercentToRate(percentage float64) float64 {
	return percentage / constants.PercentageMultiplier
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * PercentToRate(percentage)
}
