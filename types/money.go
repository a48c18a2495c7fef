// Package types provides common types used across stockledger.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of minor units in one whole currency unit.
const MinorUnits = 100

// Money represents a monetary value in minor units (1/100 of the currency unit).
// A single currency is assumed. All arithmetic is integer-only; conversion from
// fractional values goes through decimal.Decimal.
//
// Examples:
//   - Minor(5833) = 58.33
//   - Units(300)  = 300.00
type Money struct {
	Amount int64 `json:"amount"` // Minor units
}

// Minor creates a Money value from minor units.
func Minor(amount int64) Money { return Money{Amount: amount} }

// Units creates a Money value from whole currency units.
func Units(units int64) Money { return Money{Amount: units * MinorUnits} }

// Zero returns a zero Money value.
func Zero() Money { return Money{} }

// FromDecimal converts a decimal amount of whole units to Money, rounding
// half away from zero to the nearest minor unit.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Amount: d.Shift(2).Round(0).IntPart()}
}

// ParseMoney parses a decimal string such as "58.33" into Money.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount in whole units as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -2)
}

// Arithmetic operations

// Add adds two Money values.
func (m Money) Add(other Money) Money { return Money{Amount: m.Amount + other.Amount} }

// Subtract subtracts another Money value.
func (m Money) Subtract(other Money) Money { return Money{Amount: m.Amount - other.Amount} }

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money { return Money{Amount: m.Amount * qty} }

// MultiplyChecked is Multiply that reports false instead of overflowing.
func (m Money) MultiplyChecked(qty int64) (Money, bool) {
	if m.Amount == 0 || qty == 0 {
		return Money{}, true
	}
	if (m.Amount == -1 && qty == math.MinInt64) || (qty == -1 && m.Amount == math.MinInt64) {
		return Money{}, false
	}
	p := m.Amount * qty
	if p/qty != m.Amount {
		return Money{}, false
	}
	return Money{Amount: p}, true
}

// AddChecked is Add that reports false instead of overflowing.
func (m Money) AddChecked(other Money) (Money, bool) {
	sum := m.Amount + other.Amount
	if (m.Amount > 0 && other.Amount > 0 && sum < 0) || (m.Amount < 0 && other.Amount < 0 && sum >= 0) {
		return Money{}, false
	}
	return Money{Amount: sum}, true
}

// Scale multiplies the Money by a decimal factor and rounds to the nearest
// minor unit.
func (m Money) Scale(factor decimal.Decimal) Money {
	return Money{Amount: decimal.NewFromInt(m.Amount).Mul(factor).Round(0).IntPart()}
}

// FloorToUnit rounds down to a whole currency unit.
func (m Money) FloorToUnit() Money {
	rem := m.Amount % MinorUnits
	if rem < 0 {
		rem += MinorUnits
	}
	return Money{Amount: m.Amount - rem}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money { return Money{Amount: -m.Amount} }

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal.
func (m Money) Equal(other Money) bool { return m.Amount == other.Amount }

// LessThan returns true if this Money is less than other.
func (m Money) LessThan(other Money) bool { return m.Amount < other.Amount }

// GreaterThan returns true if this Money is greater than other.
func (m Money) GreaterThan(other Money) bool { return m.Amount > other.Amount }

// Formatting methods

// FormatMajor returns the amount in whole units with two decimals, e.g. "58.33".
func (m Money) FormatMajor() string {
	isNegative := m.Amount < 0
	abs := m.Amount
	if isNegative {
		abs = -abs
	}

	result := fmt.Sprintf("%d.%02d", abs/MinorUnits, abs%MinorUnits)
	if isNegative {
		return "-" + result
	}
	return result
}

// String returns the same representation as FormatMajor.
func (m Money) String() string { return m.FormatMajor() }

// MarshalJSON encodes Money as a JSON number in whole units ("174.00").
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.FormatMajor()), nil
}

// UnmarshalJSON accepts a JSON number or string in whole units.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err2 := json.Unmarshal(data, &s); err2 != nil {
			return fmt.Errorf("money: unmarshal %s: %w", data, err)
		}
		raw = json.Number(s)
	}
	parsed, err := ParseMoney(raw.String())
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum calculates the sum of multiple Money values.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
