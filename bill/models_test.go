package bill

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/types"
)

func TestLineTotalFloorsPerLine(t *testing.T) {
	tests := []struct {
		name  string
		price types.Money
		qty   int64
		want  types.Money
	}{
		{"whole price", types.Units(100), 3, types.Units(300)},
		{"discounted price", types.Minor(5833), 3, types.Units(174)},
		{"below one unit", types.Minor(33), 2, types.Zero()},
		{"exact fraction", types.Minor(250), 2, types.Units(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Line{ProductSKU: "A1", Quantity: tt.qty, UnitPriceCharged: tt.price}
			if got := l.Total(); !got.Equal(tt.want) {
				t.Errorf("Total: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeTotalSumsFlooredLines(t *testing.T) {
	b := &Bill{Lines: []Line{
		{ProductSKU: "A", Quantity: 1, UnitPriceCharged: types.Minor(150)},
		{ProductSKU: "B", Quantity: 1, UnitPriceCharged: types.Minor(150)},
	}}
	// 1.50 + 1.50 floors to 1 + 1, not floor(3.00).
	if got := b.ComputeTotal(); !got.Equal(types.Units(2)) {
		t.Errorf("ComputeTotal: got %v, want 2.00", got)
	}
}

func TestCheckedTotal(t *testing.T) {
	b := &Bill{Lines: []Line{
		{ProductSKU: "A", Quantity: 3, UnitPriceCharged: types.Minor(5833)},
		{ProductSKU: "B", Quantity: 1, UnitPriceCharged: types.Units(100)},
	}}
	total, _, ok := b.CheckedTotal()
	if !ok || !total.Equal(b.ComputeTotal()) || !total.Equal(types.Units(274)) {
		t.Errorf("CheckedTotal: got (%v, %v), want 274.00", total, ok)
	}

	b.Lines = append(b.Lines, Line{ProductSKU: "GOLD", Quantity: MaxLineQuantity, UnitPriceCharged: types.Minor(math.MaxInt64 / 1000)})
	if _, sku, ok := b.CheckedTotal(); ok || sku != "GOLD" {
		t.Errorf("overflowing line: got ok=%v sku=%q, want failure on GOLD", ok, sku)
	}

	b.Lines = []Line{
		{ProductSKU: "X", Quantity: 1, UnitPriceCharged: types.Minor(math.MaxInt64 - 50)},
		{ProductSKU: "Y", Quantity: 1, UnitPriceCharged: types.Units(10)},
	}
	if _, sku, ok := b.CheckedTotal(); ok || sku != "Y" {
		t.Errorf("overflowing sum: got ok=%v sku=%q, want failure on Y", ok, sku)
	}
}

func TestQuantities(t *testing.T) {
	b := &Bill{Lines: []Line{
		{ProductSKU: "A", Quantity: 2},
		{ProductSKU: "B", Quantity: 1},
		{ProductSKU: "A", Quantity: 3},
	}}
	q := b.Quantities()
	if q["A"] != 5 || q["B"] != 1 {
		t.Errorf("Quantities: got %v", q)
	}
	if !b.HasSKU("B") || b.HasSKU("C") {
		t.Error("HasSKU mismatch")
	}
}

func TestPaymentTypeTransitions(t *testing.T) {
	tests := []struct {
		from, to PaymentType
		want     bool
	}{
		{PaymentDue, PaymentPaid, true},
		{PaymentDue, PaymentDue, false},
		{PaymentPaid, PaymentDue, false},
		{PaymentPaid, PaymentPaid, false},
		{PaymentDue, "refunded", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo: got %v, want %v", got, tt.want)
			}
		})
	}

	if PaymentType("refunded").Valid() {
		t.Error("unknown payment type reported valid")
	}
}

func TestCloneIsDeep(t *testing.T) {
	b := &Bill{Number: "B1", Lines: []Line{{ProductSKU: "A", Quantity: 1, DiscountPercentApplied: decimal.Zero}}}
	c := b.Clone()
	c.Lines[0].Quantity = 9
	if b.Lines[0].Quantity != 1 {
		t.Error("Clone shares line storage")
	}
}

func TestListOptsApply(t *testing.T) {
	now := time.Date(2025, 2, 5, 12, 0, 0, 0, time.UTC)
	bills := []*Bill{
		{Number: "BILL-1", VendorName: "Acme", PaymentType: PaymentDue, TotalAmount: types.Units(100), CreatedAt: now.Add(-48 * time.Hour),
			Lines: []Line{{ProductSKU: "A1", Quantity: 1}}},
		{Number: "BILL-2", VendorName: "Globex", PaymentType: PaymentPaid, TotalAmount: types.Units(250), CreatedAt: now.Add(-24 * time.Hour),
			Lines: []Line{{ProductSKU: "B1", Quantity: 1}}},
		{Number: "BILL-3", VendorName: "acme corp", PaymentType: PaymentDue, TotalAmount: types.Units(400), CreatedAt: now,
			Lines: []Line{{ProductSKU: "A1", Quantity: 2}}},
	}
	minAmt := types.Units(200)
	maxAmt := types.Units(300)

	tests := []struct {
		name string
		opts ListOpts
		want []string
	}{
		{"all newest first", ListOpts{}, []string{"BILL-3", "BILL-2", "BILL-1"}},
		{"vendor exact", ListOpts{VendorName: "Acme"}, []string{"BILL-1"}},
		{"payment type", ListOpts{PaymentType: PaymentDue}, []string{"BILL-3", "BILL-1"}},
		{"search vendor case-insensitive", ListOpts{Search: "ACME"}, []string{"BILL-3", "BILL-1"}},
		{"search number", ListOpts{Search: "bill-2"}, []string{"BILL-2"}},
		{"sku", ListOpts{SKU: "A1"}, []string{"BILL-3", "BILL-1"}},
		{"min amount", ListOpts{MinAmount: &minAmt}, []string{"BILL-3", "BILL-2"}},
		{"amount range", ListOpts{MinAmount: &minAmt, MaxAmount: &maxAmt}, []string{"BILL-2"}},
		{"created from", ListOpts{CreatedFrom: now.Add(-30 * time.Hour)}, []string{"BILL-3", "BILL-2"}},
		{"created to", ListOpts{CreatedTo: now.Add(-30 * time.Hour)}, []string{"BILL-1"}},
		{"limit", ListOpts{Limit: 2}, []string{"BILL-3", "BILL-2"}},
		{"offset", ListOpts{Offset: 2}, []string{"BILL-1"}},
		{"offset past end", ListOpts{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.Apply(bills)
			if len(got) != len(tt.want) {
				t.Fatalf("len: got %d, want %d", len(got), len(tt.want))
			}
			for i, b := range got {
				if b.Number != tt.want[i] {
					t.Errorf("[%d]: got %s, want %s", i, b.Number, tt.want[i])
				}
			}
		})
	}
}
