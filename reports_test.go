package stockledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/store/memory"
	"github.com/xraph/stockledger/types"
)

func TestVendorDueSummaries(t *testing.T) {
	c := &clock{t: now}
	l := newLedger(t, memory.New(), stockledger.WithClock(c.Now))
	addProducts(t, l, newProduct("A1", 100, 90))
	ctx := context.Background()

	// V1: 100, 200, 300 created 1, 5 and 10 days before now.
	for _, s := range []struct {
		daysAgo int
		qty     int64
		vendor  string
		pt      bill.PaymentType
	}{
		{10, 3, "V1", bill.PaymentDue},
		{5, 2, "V1", bill.PaymentDue},
		{1, 1, "V1", bill.PaymentDue},
		{2, 4, "V0", bill.PaymentDue},
		{20, 9, "V1", bill.PaymentPaid},
	} {
		c.Set(now.AddDate(0, 0, -s.daysAgo))
		if _, err := l.GenerateBill(ctx, sale(s.vendor, s.pt, line("A1", s.qty, false))); err != nil {
			t.Fatalf("GenerateBill: %v", err)
		}
	}
	c.Set(now)

	got, err := l.VendorDueSummaries(ctx, time.Time{})
	if err != nil {
		t.Fatalf("VendorDueSummaries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("vendors: got %d, want 2", len(got))
	}
	if got[0].VendorName != "V0" || got[1].VendorName != "V1" {
		t.Errorf("order: got %s, %s", got[0].VendorName, got[1].VendorName)
	}

	v1 := got[1]
	if !v1.TotalDueAmount.Equal(types.Units(600)) {
		t.Errorf("TotalDueAmount: got %v, want 600.00", v1.TotalDueAmount)
	}
	if v1.DueBillCount != 3 {
		t.Errorf("DueBillCount: got %d, want 3", v1.DueBillCount)
	}
	if v1.MaxDaysOverdue != 10 {
		t.Errorf("MaxDaysOverdue: got %d, want 10", v1.MaxDaysOverdue)
	}

	// Paying the oldest bill drops it from the projection.
	bills, err := l.ListBills(ctx, bill.ListOpts{VendorName: "V1", PaymentType: bill.PaymentDue})
	if err != nil {
		t.Fatal(err)
	}
	oldest := bills[len(bills)-1]
	if _, err := l.UpdateBillPaymentType(ctx, oldest.Number, bill.PaymentPaid); err != nil {
		t.Fatalf("UpdateBillPaymentType: %v", err)
	}

	report, err := l.DueReport(ctx, now)
	if err != nil {
		t.Fatalf("DueReport: %v", err)
	}
	if report.TotalVendors != 2 || report.TotalDueBills != 3 {
		t.Errorf("report: vendors=%d bills=%d", report.TotalVendors, report.TotalDueBills)
	}
	if !report.TotalDueAmount.Equal(types.Units(700)) {
		t.Errorf("report total: got %v, want 700.00", report.TotalDueAmount)
	}
	if report.Vendors[1].MaxDaysOverdue != 5 {
		t.Errorf("V1 MaxDaysOverdue after payment: got %d, want 5", report.Vendors[1].MaxDaysOverdue)
	}
}

func TestVendorDueSummariesEmpty(t *testing.T) {
	l := newLedger(t, memory.New())
	got, err := l.VendorDueSummaries(context.Background(), now)
	if err != nil {
		t.Fatalf("VendorDueSummaries: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d summaries, want 0", len(got))
	}
}

func TestSweepExpiry(t *testing.T) {
	rec := &recorder{}
	l := newLedger(t, memory.New(), stockledger.WithPlugin(rec))
	addProducts(t, l,
		newProduct("FRESH", 10, 60),
		newProduct("SOON", 10, 5),
		newProduct("EDGE", 10, 30),
		newProduct("GONE", 10, -2),
	)

	sweep, err := l.SweepExpiry(context.Background())
	if err != nil {
		t.Fatalf("SweepExpiry: %v", err)
	}
	if len(sweep.Expiring) != 2 || sweep.Expiring[0].Product.SKU != "EDGE" || sweep.Expiring[1].Product.SKU != "SOON" {
		t.Errorf("expiring: got %d", len(sweep.Expiring))
	}
	if len(sweep.Expired) != 1 || sweep.Expired[0].Product.SKU != "GONE" {
		t.Errorf("expired: got %d", len(sweep.Expired))
	}
	if sweep.Expired[0].Evaluation.Status != discount.StatusExpired {
		t.Errorf("status: got %s", sweep.Expired[0].Evaluation.Status)
	}
	if len(rec.expiring) != 2 || len(rec.expired) != 1 {
		t.Errorf("hooks: expiring=%v expired=%v", rec.expiring, rec.expired)
	}
	if got := stockOf(t, l, "GONE"); got != 10 {
		t.Errorf("sweep changed stock: got %d", got)
	}
}

func TestExpiryReport(t *testing.T) {
	l := newLedger(t, memory.New(), stockledger.WithRiskThreshold(0))
	addProducts(t, l,
		newProduct("FRESH", 10, 60),
		newProduct("SOON", 10, 5),
		newProduct("GONE", 10, -2),
	)

	report, err := l.ExpiryReport(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("ExpiryReport: %v", err)
	}
	if report.TotalProducts != 3 || report.HighRiskProducts != 3 {
		t.Errorf("counts: total=%d high=%d", report.TotalProducts, report.HighRiskProducts)
	}
	for _, rec := range report.Recommendations {
		switch rec.SKU {
		case "GONE":
			if rec.DiscountedPrice != nil {
				t.Errorf("expired product has a discounted price")
			}
		case "SOON":
			if rec.DiscountedPrice == nil || !rec.DiscountedPrice.Equal(types.Minor(5833)) {
				t.Errorf("SOON discounted price: got %v", rec.DiscountedPrice)
			}
		case "FRESH":
			if rec.DiscountedPrice == nil || !rec.DiscountedPrice.Equal(types.Units(100)) {
				t.Errorf("FRESH price: got %v", rec.DiscountedPrice)
			}
		}
	}
	if last := report.Recommendations[len(report.Recommendations)-1]; last.SKU != "FRESH" {
		t.Errorf("lowest risk: got %s, want FRESH", last.SKU)
	}

	// A week on, SOON has expired too.
	later, err := l.ExpiryReport(context.Background(), now.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ExpiryReport(later): %v", err)
	}
	for _, rec := range later.Recommendations {
		if rec.SKU == "SOON" && rec.DiscountedPrice != nil {
			t.Errorf("SOON as of a week later: got price %v, want none", rec.DiscountedPrice)
		}
	}
}

func TestVerifyBillsAndReconcile(t *testing.T) {
	mem := memory.New()
	l := newLedger(t, mem)
	addProducts(t, l, newProduct("A1", 10, 5), newProduct("B1", 10, 60))
	ctx := context.Background()

	baseline, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.GenerateBill(ctx, sale("V", bill.PaymentPaid, line("A1", 3, true), line("B1", 1, false))); err != nil {
		t.Fatal(err)
	}

	bad, err := l.VerifyBills(ctx)
	if err != nil {
		t.Fatalf("VerifyBills: %v", err)
	}
	if len(bad) != 0 {
		t.Errorf("VerifyBills: got %+v", bad)
	}
	drift, err := l.Reconcile(ctx, baseline)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(drift) != 0 {
		t.Errorf("Reconcile: got %+v", drift)
	}

	// A bill written around the engine breaks both checks.
	forged := &bill.Bill{
		Number:      "FORGED",
		Lines:       []bill.Line{{ProductSKU: "B1", Quantity: 2, UnitPriceCharged: types.Units(100)}},
		VendorName:  "V",
		PaymentType: bill.PaymentPaid,
		TotalAmount: types.Units(1),
		CreatedAt:   now,
	}
	if err := mem.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error { return tx.InsertBill(ctx, forged) }); err != nil {
		t.Fatal(err)
	}

	bad, err = l.VerifyBills(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bad) != 1 || bad[0].BillNumber != "FORGED" || !bad[0].Computed.Equal(types.Units(200)) {
		t.Errorf("VerifyBills: got %+v", bad)
	}
	drift, err = l.Reconcile(ctx, baseline)
	if err != nil {
		t.Fatal(err)
	}
	if len(drift) != 1 || drift[0].SKU != "B1" || drift[0].Expected != 7 || drift[0].Actual != 9 {
		t.Errorf("Reconcile: got %+v", drift)
	}
}
