package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents). All arithmetic stays in int64.
type Money int64

const minorUnitExp = -2

const (
	MaxMoney Money = math.MaxInt64
	MinMoney Money = math.MinInt64
)

// Times multiplies by a quantity, saturating at MaxMoney and MinMoney instead of wrapping.
func (m Money) Times(quantity int) Money {
	if quantity <= 0 || m == 0 {
		return m * Money(quantity)
	}
	q := Money(quantity)
	switch {
	case m > 0 && m > MaxMoney/q:
		return MaxMoney
	case m < 0 && m < MinMoney/q:
		return MinMoney
	}
	return m * q
}

// Plus adds, saturating like Times.
func (m Money) Plus(other Money) Money {
	switch {
	case other > 0 && m > MaxMoney-other:
		return MaxMoney
	case other < 0 && m < MinMoney-other:
		return MinMoney
	}
	return m + other
}

// AddQuantity sums two quantities, saturating at math.MaxInt.
func AddQuantity(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// Decimal converts to major units. Only meant for display.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), minorUnitExp)
}

// Format renders the amount as USD, e.g. 5998 -> "$59.98".
func (m Money) Format() string {
	d := m.Decimal()
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
