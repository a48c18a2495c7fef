package bill

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xraph/stockledger/types"
)

// Store defines persistence for bills outside of the sale transaction.
// Bills are inserted only through store.Tx.
type Store interface {
	GetBill(ctx context.Context, number string) (*Bill, error)
	ListBills(ctx context.Context, opts ListOpts) ([]*Bill, error)
	// MarkBillPaid moves a due bill to paid in one conditional step.
	MarkBillPaid(ctx context.Context, number string) (*Bill, error)
}

// ListOpts configures bill listing. Zero values disable a filter.
// Results are ordered newest first.
type ListOpts struct {
	VendorName  string
	PaymentType PaymentType
	// Search matches bill number or vendor name, case-insensitively.
	Search      string
	SKU         string
	MinAmount   *types.Money
	MaxAmount   *types.Money
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
	Offset      int
}

// Match reports whether b passes every filter in o.
func (o ListOpts) Match(b *Bill) bool {
	if o.VendorName != "" && b.VendorName != o.VendorName {
		return false
	}
	if o.PaymentType != "" && b.PaymentType != o.PaymentType {
		return false
	}
	if o.Search != "" {
		q := strings.ToLower(o.Search)
		if !strings.Contains(strings.ToLower(b.Number), q) &&
			!strings.Contains(strings.ToLower(b.VendorName), q) {
			return false
		}
	}
	if o.SKU != "" && !b.HasSKU(o.SKU) {
		return false
	}
	if o.MinAmount != nil && b.TotalAmount.LessThan(*o.MinAmount) {
		return false
	}
	if o.MaxAmount != nil && b.TotalAmount.GreaterThan(*o.MaxAmount) {
		return false
	}
	if !o.CreatedFrom.IsZero() && b.CreatedAt.Before(o.CreatedFrom) {
		return false
	}
	if !o.CreatedTo.IsZero() && b.CreatedAt.After(o.CreatedTo) {
		return false
	}
	return true
}

// Apply filters, orders and pages bills in memory. Backends without a
// query language use it directly.
func (o ListOpts) Apply(bills []*Bill) []*Bill {
	out := make([]*Bill, 0, len(bills))
	for _, b := range bills {
		if o.Match(b) {
			out = append(out, b)
		}
	}
	SortNewestFirst(out)
	return types.Page(out, o.Offset, o.Limit)
}

// SortNewestFirst orders bills by CreatedAt descending, then by number.
func SortNewestFirst(bills []*Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].CreatedAt.Equal(bills[j].CreatedAt) {
			return bills[i].CreatedAt.After(bills[j].CreatedAt)
		}
		return bills[i].Number > bills[j].Number
	})
}
