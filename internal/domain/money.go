package domain

import (
	"github.com/shopspring/decimal"
)

// Money is an amount in currency minor units (cents).
type Money int64

const minorUnitExp = 2

// MoneyFromDecimal converts a major-unit amount to minor units, rounding half
// away from zero to the minor unit. Every price entering the cart goes through
// here, so this is the only rounding rule in the system.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(minorUnitExp).Shift(minorUnitExp).IntPart())
}

// Decimal renders the amount in major units, e.g. 1999 -> 19.99.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorUnitExp)
}

func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExp)
}
