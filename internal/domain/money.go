package domain

import (
	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of minor units per major currency unit.
const MinorUnitScale = 100

// ToDecimal converts an amount in minor units to major units.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(MinorUnitScale))
}

// FormatMinor renders a minor-unit amount with two fixed decimals, e.g. 1050 -> "10.50".
func FormatMinor(minor int64) string {
	return ToDecimal(minor).StringFixed(2)
}
