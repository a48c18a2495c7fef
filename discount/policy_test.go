package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

var asOf = time.Date(2025, 2, 5, 15, 30, 0, 0, time.UTC)

func productExpiringIn(days int, price types.Money) *product.Product {
	return &product.Product{
		SKU:        "A1",
		Name:       "Milk",
		UnitPrice:  price,
		Stock:      10,
		ExpiryDate: asOf.AddDate(0, 0, days),
	}
}

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{"same day later hour", time.Date(2025, 2, 5, 23, 0, 0, 0, time.UTC), 0},
		{"tomorrow early", time.Date(2025, 2, 6, 0, 1, 0, 0, time.UTC), 1},
		{"five days", asOf.AddDate(0, 0, 5), 5},
		{"yesterday", asOf.AddDate(0, 0, -1), -1},
		{"other zone same UTC date", time.Date(2025, 2, 10, 1, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(tt.expiry, asOf); got != tt.want {
				t.Errorf("DaysUntil: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvaluateStatus(t *testing.T) {
	p := Default()
	tests := []struct {
		days int
		want Status
	}{
		{-3, StatusExpired},
		{0, StatusExpired},
		{1, StatusExpiring},
		{30, StatusExpiring},
		{31, StatusActive},
		{365, StatusActive},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			got := p.Evaluate(productExpiringIn(tt.days, types.Units(100)), asOf)
			if got.Status != tt.want {
				t.Errorf("days=%d: got %s, want %s", tt.days, got.Status, tt.want)
			}
			if got.DaysUntilExpiry != tt.days {
				t.Errorf("DaysUntilExpiry: got %d, want %d", got.DaysUntilExpiry, tt.days)
			}
		})
	}
}

func TestSuggestedPercentLinear(t *testing.T) {
	p := Default()
	tests := []struct {
		days int
		want string
	}{
		{0, "0"},
		{1, "48.33"},
		{5, "41.67"},
		{15, "25"},
		{29, "1.67"},
		{30, "0"},
		{31, "0"},
		{-1, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := p.SuggestedPercent(tt.days).Round(2)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("days=%d: got %s, want %s", tt.days, got, tt.want)
			}
		})
	}
}

func TestSuggestedPercentMonotonic(t *testing.T) {
	p := Default()
	prev := decimal.NewFromInt(-1)
	for days := 30; days >= 1; days-- {
		pct := p.SuggestedPercent(days)
		if pct.LessThan(prev) {
			t.Fatalf("discount decreased at %d days: %s < %s", days, pct, prev)
		}
		if pct.GreaterThan(decimal.NewFromInt(DefaultMaxPercent)) {
			t.Fatalf("discount above max at %d days: %s", days, pct)
		}
		prev = pct
	}
}

func TestDiscountedPriceScenario(t *testing.T) {
	p := Default()
	price, pct := p.DiscountedPrice(productExpiringIn(5, types.Units(100)), asOf)
	if price.Amount != 5833 {
		t.Errorf("price: got %v, want 58.33", price)
	}
	if !pct.Round(2).Equal(decimal.RequireFromString("41.67")) {
		t.Errorf("pct: got %s, want 41.67", pct.Round(2))
	}
	if total := price.Multiply(3).FloorToUnit(); !total.Equal(types.Units(174)) {
		t.Errorf("total: got %v, want 174.00", total)
	}
}

func TestDiscountedPriceActiveIsUnchanged(t *testing.T) {
	price, pct := Default().DiscountedPrice(productExpiringIn(90, types.Minor(1999)), asOf)
	if price.Amount != 1999 || !pct.IsZero() {
		t.Errorf("got %v at %s%%, want 19.99 at 0%%", price, pct)
	}
}

func TestTieredCurve(t *testing.T) {
	p, err := New(30, ClearanceTiers())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		days int
		want int64
	}{
		{1, 70},
		{2, 50},
		{4, 50},
		{5, 20},
		{7, 20},
		{8, 5},
		{30, 5},
		{31, 0},
		{0, 0},
	}

	for _, tt := range tests {
		if got := p.SuggestedPercent(tt.days); !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("days=%d: got %s, want %d", tt.days, got, tt.want)
		}
	}
}

func TestNewRejectsInvalidCurves(t *testing.T) {
	tests := []struct {
		name   string
		window int
		curve  Curve
	}{
		{"zero window", 0, Linear{WindowDays: 30, Max: decimal.NewFromInt(50)}},
		{"nil curve", 30, nil},
		{"max 100", 30, Linear{WindowDays: 30, Max: decimal.NewFromInt(100)}},
		{"negative max", 30, Linear{WindowDays: 30, Max: decimal.NewFromInt(-1)}},
		{"tier at 100", 30, NewTiered(decimal.Zero, Tier{MaxDays: 1, Percent: decimal.NewFromInt(100)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.window, tt.curve); err == nil {
				t.Error("expected error")
			}
		})
	}
}
