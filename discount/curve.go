package discount

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Curve maps days until expiry to a discount percentage. Policies only
// consult a curve for EXPIRING products and clamp its output to
// [0, MaxPercent].
type Curve interface {
	Percent(daysUntilExpiry int) decimal.Decimal
	MaxPercent() decimal.Decimal
}

// Linear grows the discount linearly from zero at WindowDays to Max
// at zero days: (WindowDays - days) / WindowDays * Max.
type Linear struct {
	WindowDays int
	Max        decimal.Decimal
}

// Percent implements Curve.
func (c Linear) Percent(days int) decimal.Decimal {
	if c.WindowDays <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(c.WindowDays - days)).
		Mul(c.Max).
		Div(decimal.NewFromInt(int64(c.WindowDays)))
}

// MaxPercent implements Curve.
func (c Linear) MaxPercent() decimal.Decimal { return c.Max }

// Tier is one step of a Tiered curve.
type Tier struct {
	MaxDays int
	Percent decimal.Decimal
}

// Tiered applies the first tier whose MaxDays is at least the days until
// expiry, and Fallback beyond the last tier.
type Tiered struct {
	Tiers    []Tier
	Fallback decimal.Decimal
}

// NewTiered sorts tiers by MaxDays.
func NewTiered(fallback decimal.Decimal, tiers ...Tier) Tiered {
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MaxDays < sorted[j].MaxDays })
	return Tiered{Tiers: sorted, Fallback: fallback}
}

// ClearanceTiers is the step table used for clearance pricing:
// 70% within a day, 50% within four, 20% within a week, 5% otherwise.
func ClearanceTiers() Tiered {
	return NewTiered(decimal.NewFromInt(5),
		Tier{MaxDays: 1, Percent: decimal.NewFromInt(70)},
		Tier{MaxDays: 4, Percent: decimal.NewFromInt(50)},
		Tier{MaxDays: 7, Percent: decimal.NewFromInt(20)},
	)
}

// Percent implements Curve.
func (c Tiered) Percent(days int) decimal.Decimal {
	for _, t := range c.Tiers {
		if days <= t.MaxDays {
			return t.Percent
		}
	}
	return c.Fallback
}

// MaxPercent implements Curve.
func (c Tiered) MaxPercent() decimal.Decimal {
	m := c.Fallback
	for _, t := range c.Tiers {
		if t.Percent.GreaterThan(m) {
			m = t.Percent
		}
	}
	return m
}
