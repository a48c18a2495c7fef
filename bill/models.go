// Package bill defines the immutable sale record appended by the billing engine.
package bill

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/types"
)

// PaymentType records whether a bill has been settled.
type PaymentType string

const (
	PaymentPaid PaymentType = "paid"
	PaymentDue  PaymentType = "due"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	return t == PaymentPaid || t == PaymentDue
}

// CanTransitionTo reports whether a bill with payment type t may move to next.
// The only permitted transition is due to paid.
func (t PaymentType) CanTransitionTo(next PaymentType) bool {
	return t == PaymentDue && next == PaymentPaid
}

// Bill is a completed sale. Lines and TotalAmount never change after
// creation; PaymentType may move from due to paid once.
type Bill struct {
	Number      string      `json:"bill_number"`
	Lines       []Line      `json:"lines"`
	VendorName  string      `json:"vendor_name"`
	PaymentType PaymentType `json:"payment_type"`
	TotalAmount types.Money `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Line is one product entry on a bill.
type Line struct {
	ProductSKU             string          `json:"product_sku"`
	Quantity               int64           `json:"quantity"`
	UnitPriceCharged       types.Money     `json:"unit_price_charged"`
	DiscountPercentApplied decimal.Decimal `json:"discount_percent_applied"`
}

// Total returns floor(UnitPriceCharged * Quantity) in whole currency units.
func (l Line) Total() types.Money {
	return l.UnitPriceCharged.Multiply(l.Quantity).FloorToUnit()
}

// MaxLineQuantity bounds the quantity on one line. Summing any realistic
// number of lines at this bound stays within int64.
const MaxLineQuantity int64 = 1_000_000_000

// CheckedTotal is ComputeTotal that fails instead of overflowing. On
// failure it returns the SKU of the line that overflowed.
func (b *Bill) CheckedTotal() (types.Money, string, bool) {
	var total types.Money
	for _, l := range b.Lines {
		line, ok := l.UnitPriceCharged.MultiplyChecked(l.Quantity)
		if !ok {
			return types.Money{}, l.ProductSKU, false
		}
		if total, ok = total.AddChecked(line.FloorToUnit()); !ok {
			return types.Money{}, l.ProductSKU, false
		}
	}
	return total, "", true
}

// ComputeTotal sums the floored line totals.
func (b *Bill) ComputeTotal() types.Money {
	var total types.Money
	for _, l := range b.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Quantities returns the total quantity per SKU across all lines.
func (b *Bill) Quantities() map[string]int64 {
	out := make(map[string]int64, len(b.Lines))
	for _, l := range b.Lines {
		out[l.ProductSKU] += l.Quantity
	}
	return out
}

// HasSKU reports whether any line references sku.
func (b *Bill) HasSKU(sku string) bool {
	for _, l := range b.Lines {
		if l.ProductSKU == sku {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (b *Bill) Clone() *Bill {
	c := *b
	c.Lines = append([]Line(nil), b.Lines...)
	return &c
}
