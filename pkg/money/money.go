// Package money centralizes monetary arithmetic. Amounts move through the
// system as float64 to match the DECIMAL columns, but every intermediate
// computation happens on decimals so repeated percentages do not drift.
package money

import "github.com/shopspring/decimal"

// ApplyRate multiplies amount by a fractional rate (0.0875 for 8.75%)
// and rounds to cents.
func ApplyRate(amount, rate float64) float64 {
	result := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate))
	f, _ := result.Round(2).Float64()
	return f
}

// Sum adds amounts without accumulating float error.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// Mul multiplies two amounts and rounds to cents.
func Mul(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).Float64()
	return f
}

// Round returns the amount rounded to cents.
func Round(a float64) float64 {
	f, _ := decimal.NewFromFloat(a).Round(2).Float64()
	return f
}

// Clamp bounds a fee between a floor and a cap.
func Clamp(amount, min, max float64) float64 {
	if amount < min {
		return min
	}
	if amount > max {
		return max
	}
	return amount
}
