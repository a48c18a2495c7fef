package stockledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/due"
	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

// ──────────────────────────────────────────────────
// Due balances
// ──────────────────────────────────────────────────

// VendorDueSummaries groups every due bill by vendor, ordered by vendor
// name. A zero asOf means now. Nothing is persisted.
func (l *Ledger) VendorDueSummaries(ctx context.Context, asOf time.Time) ([]due.Summary, error) {
	bills, err := l.dueBills(ctx)
	if err != nil {
		return nil, err
	}
	return due.Summarize(bills, l.asOf(asOf)), nil
}

// DueReport is VendorDueSummaries plus grand totals.
func (l *Ledger) DueReport(ctx context.Context, asOf time.Time) (*due.Report, error) {
	bills, err := l.dueBills(ctx)
	if err != nil {
		return nil, err
	}
	return due.NewReport(bills, l.asOf(asOf)), nil
}

func (l *Ledger) dueBills(ctx context.Context) ([]*bill.Bill, error) {
	bills, err := l.store.ListBills(ctx, bill.ListOpts{PaymentType: bill.PaymentDue})
	if err != nil {
		return nil, fmt.Errorf("stockledger: list due bills: %w", err)
	}
	return bills, nil
}

func (l *Ledger) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return l.now()
	}
	return t
}

// ──────────────────────────────────────────────────
// Integrity checks
// ──────────────────────────────────────────────────

// BillDiscrepancy describes a bill whose stored total disagrees with the
// sum of its lines.
type BillDiscrepancy struct {
	BillNumber string      `json:"bill_number"`
	Stored     types.Money `json:"stored_total"`
	Computed   types.Money `json:"computed_total"`
}

// VerifyBills recomputes every bill total from its lines.
func (l *Ledger) VerifyBills(ctx context.Context) ([]BillDiscrepancy, error) {
	bills, err := l.store.ListBills(ctx, bill.ListOpts{})
	if err != nil {
		return nil, err
	}

	out := make([]BillDiscrepancy, 0)
	for _, b := range bills {
		if computed := b.ComputeTotal(); !computed.Equal(b.TotalAmount) {
			out = append(out, BillDiscrepancy{BillNumber: b.Number, Stored: b.TotalAmount, Computed: computed})
		}
	}
	return out, nil
}

// StockDrift reports a SKU whose current stock does not equal its baseline
// minus everything billed for it.
type StockDrift struct {
	SKU      string `json:"sku"`
	Baseline int64  `json:"baseline"`
	Billed   int64  `json:"billed"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
}

// Reconcile checks stock conservation: for each SKU in baseline, the
// current stock must equal baseline minus the quantities on all bills. It
// is only meaningful when no sale is in flight.
func (l *Ledger) Reconcile(ctx context.Context, baseline map[string]int64) ([]StockDrift, error) {
	bills, err := l.store.ListBills(ctx, bill.ListOpts{})
	if err != nil {
		return nil, err
	}
	billed := make(map[string]int64)
	for _, b := range bills {
		for sku, qty := range b.Quantities() {
			billed[sku] += qty
		}
	}

	skus := make([]string, 0, len(baseline))
	for sku := range baseline {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	out := make([]StockDrift, 0)
	for _, sku := range skus {
		var actual int64
		p, err := l.store.GetProduct(ctx, sku)
		switch {
		case err == nil:
			actual = p.Stock
		case IsNotFound(err):
			actual = 0
		default:
			return nil, err
		}

		expected := baseline[sku] - billed[sku]
		if actual != expected {
			out = append(out, StockDrift{
				SKU:      sku,
				Baseline: baseline[sku],
				Billed:   billed[sku],
				Expected: expected,
				Actual:   actual,
			})
		}
	}
	return out, nil
}

// Snapshot returns current stock per SKU, the usual input to Reconcile.
func (l *Ledger) Snapshot(ctx context.Context) (map[string]int64, error) {
	products, err := l.store.ListProducts(ctx, product.ListOpts{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(products))
	for _, p := range products {
		out[p.SKU] = p.Stock
	}
	return out, nil
}
