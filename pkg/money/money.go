// Package money wraps shopspring/decimal for cent-exact presentation of the
// float64 amounts produced by the amortization engine.
package money

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary amount with proper financial precision
type Money struct {
	decimal.Decimal
}

// New creates a new Money instance from a float64
func New(value float64) Money {
	return Money{decimal.NewFromFloat(value)}
}

// Round rounds the money amount to cents, half away from zero.
func (m Money) Round() Money {
	return Money{m.Decimal.Round(2)}
}

// Float returns the amount rounded to cents as a float64.
func (m Money) Float() float64 {
	return m.Round().InexactFloat64()
}

// Add adds another Money amount
func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

// Sub subtracts another Money amount
func (m Money) Sub(other Money) Money {
	return Money{m.Decimal.Sub(other.Decimal)}
}

// GreaterThan checks if this amount is greater than another
func (m Money) GreaterThan(other Money) bool {
	return m.Decimal.GreaterThan(other.Decimal)
}

// Sum adds up a series of float64 amounts without accumulating binary
// floating point drift.
func Sum(values ...float64) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return Money{total}
}

// Zero returns a zero Money amount
func Zero() Money {
	return Money{decimal.Zero}
}

// String returns the amount fixed to two decimals
func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

// RoundFloat rounds a raw float64 amount to cents.
func RoundFloat(value float64) float64 {
	return New(value).Float()
}
