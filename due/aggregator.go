// Package due projects outstanding balances per vendor from the bill ledger.
//
// Summaries are derived on every read and never persisted.
package due

import (
	"sort"
	"time"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/types"
)

// Summary is the outstanding balance of one vendor.
type Summary struct {
	VendorName     string      `json:"vendor_name"`
	TotalDueAmount types.Money `json:"total_due_amount"`
	DueBillCount   int         `json:"due_bill_count"`
	MaxDaysOverdue int         `json:"max_days_overdue"`
}

// Report is the full due projection at a point in time.
type Report struct {
	AsOf           time.Time   `json:"as_of"`
	Vendors        []Summary   `json:"vendors"`
	TotalVendors   int         `json:"total_vendors"`
	TotalDueAmount types.Money `json:"total_due_amount"`
	TotalDueBills  int         `json:"total_due_bills"`
}

// DaysOverdue returns whole days elapsed from createdAt to asOf, never negative.
func DaysOverdue(createdAt, asOf time.Time) int {
	d := asOf.Sub(createdAt)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Summarize groups due bills by vendor. Paid bills are ignored. The result
// is ordered by vendor name.
func Summarize(bills []*bill.Bill, asOf time.Time) []Summary {
	byVendor := make(map[string]*Summary)
	for _, b := range bills {
		if b.PaymentType != bill.PaymentDue {
			continue
		}
		s, ok := byVendor[b.VendorName]
		if !ok {
			s = &Summary{VendorName: b.VendorName}
			byVendor[b.VendorName] = s
		}
		s.TotalDueAmount = s.TotalDueAmount.Add(b.TotalAmount)
		s.DueBillCount++
		if days := DaysOverdue(b.CreatedAt, asOf); days > s.MaxDaysOverdue {
			s.MaxDaysOverdue = days
		}
	}

	out := make([]Summary, 0, len(byVendor))
	for _, s := range byVendor {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VendorName < out[j].VendorName })
	return out
}

// NewReport summarizes bills and adds grand totals.
func NewReport(bills []*bill.Bill, asOf time.Time) *Report {
	vendors := Summarize(bills, asOf)
	r := &Report{AsOf: asOf, Vendors: vendors, TotalVendors: len(vendors)}
	for _, v := range vendors {
		r.TotalDueAmount = r.TotalDueAmount.Add(v.TotalDueAmount)
		r.TotalDueBills += v.DueBillCount
	}
	return r
}
