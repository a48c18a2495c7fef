// Package discount classifies products by time to expiry and prices
// near-expiry stock.
//
// Evaluation is a pure function of the product's expiry date and an as-of
// time. Days are counted between UTC calendar dates, so a product expiring
// today has zero days left and is EXPIRED.
package discount

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

// Status is the expiry eligibility of a product.
type Status string

const (
	StatusExpired  Status = "EXPIRED"
	StatusExpiring Status = "EXPIRING"
	StatusActive   Status = "ACTIVE"
)

// Default policy parameters.
const (
	DefaultWindowDays = 30
	DefaultMaxPercent = 50
)

var hundred = decimal.NewFromInt(100)

// Evaluation is the result of classifying one product.
type Evaluation struct {
	DaysUntilExpiry int             `json:"days_until_expiry"`
	Status          Status          `json:"status"`
	SuggestedPct    decimal.Decimal `json:"suggested_discount_percent"`
}

// Sellable reports whether the product may be sold at all.
func (e Evaluation) Sellable() bool { return e.Status != StatusExpired }

// Policy decides expiry status and suggested discounts.
type Policy struct {
	window int
	curve  Curve
}

// New returns a policy with the given EXPIRING window in days and discount curve.
func New(windowDays int, curve Curve) (*Policy, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("discount: window must be positive, got %d", windowDays)
	}
	if curve == nil {
		return nil, errors.New("discount: curve is required")
	}
	maxPct := curve.MaxPercent()
	if maxPct.IsNegative() || maxPct.GreaterThanOrEqual(hundred) {
		return nil, fmt.Errorf("discount: curve maximum %s outside [0, 100)", maxPct)
	}
	return &Policy{window: windowDays, curve: curve}, nil
}

// Default returns the linear 30-day, 50% policy.
func Default() *Policy {
	return &Policy{
		window: DefaultWindowDays,
		curve:  Linear{WindowDays: DefaultWindowDays, Max: decimal.NewFromInt(DefaultMaxPercent)},
	}
}

// WindowDays returns the EXPIRING window.
func (p *Policy) WindowDays() int { return p.window }

// Curve returns the discount curve.
func (p *Policy) Curve() Curve { return p.curve }

// DaysUntil returns the whole calendar days from asOf to expiry, in UTC.
// Negative when expiry is in the past.
func DaysUntil(expiry, asOf time.Time) int {
	e := truncateDay(expiry)
	a := truncateDay(asOf)
	return int(e.Sub(a).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StatusFor classifies a days-until-expiry value.
func (p *Policy) StatusFor(days int) Status {
	switch {
	case days <= 0:
		return StatusExpired
	case days <= p.window:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// Evaluate classifies p as of asOf.
func (p *Policy) Evaluate(prod *product.Product, asOf time.Time) Evaluation {
	days := DaysUntil(prod.ExpiryDate, asOf)
	return Evaluation{
		DaysUntilExpiry: days,
		Status:          p.StatusFor(days),
		SuggestedPct:    p.SuggestedPercent(days),
	}
}

// SuggestedPercent returns the curve's discount for EXPIRING products, clamped
// to [0, max], and zero otherwise.
func (p *Policy) SuggestedPercent(days int) decimal.Decimal {
	if p.StatusFor(days) != StatusExpiring {
		return decimal.Zero
	}
	return clamp(p.curve.Percent(days), decimal.Zero, p.curve.MaxPercent())
}

// DiscountedPrice returns unitPrice * (1 - pct/100), rounded to the minor
// unit, together with the exact percent applied.
func (p *Policy) DiscountedPrice(prod *product.Product, asOf time.Time) (types.Money, decimal.Decimal) {
	pct := p.SuggestedPercent(DaysUntil(prod.ExpiryDate, asOf))
	return ApplyPercent(prod.UnitPrice, pct), pct
}

// ApplyPercent reduces price by pct percent.
func ApplyPercent(price types.Money, pct decimal.Decimal) types.Money {
	if pct.IsZero() {
		return price
	}
	return price.Scale(decimal.NewFromInt(1).Sub(pct.Div(hundred)))
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
