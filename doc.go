// Package stockledger provides an inventory stock ledger and billing engine
// for perishable goods.
//
// Stockledger is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - Atomic sales: stock decrements and the bill commit together or not at all
//   - Expiry-aware pricing with a configurable discount curve
//   - An append-only bill ledger with a single due to paid transition
//   - Per-vendor outstanding balances derived on read
//   - Expiry risk reports and a scheduled expiry sweep
//   - Pluggable hooks for audit trails, metrics and event streaming
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/stockledger"
//	    "github.com/xraph/stockledger/store/postgres"
//	)
//
//	db, err := postgres.Open(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := stockledger.New(db)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Products carry stock and an expiry date:
//
//	err := l.AddProduct(ctx, &product.Product{
//	    SKU:        "MILK-1L",
//	    Name:       "Milk 1L",
//	    UnitPrice:  stockledger.Units(100),
//	    Stock:      10,
//	    ExpiryDate: time.Now().AddDate(0, 0, 5),
//	})
//
// A sale produces a bill. Lines that ask for it get the expiry discount:
//
//	b, err := l.GenerateBill(ctx, stockledger.SaleRequest{
//	    VendorName:  "Corner Shop",
//	    PaymentType: stockledger.PaymentDue,
//	    Lines:       []stockledger.SaleLine{{SKU: "MILK-1L", Quantity: 3, ApplyDiscount: true}},
//	})
//
// Due bills are settled once:
//
//	b, err = l.UpdateBillPaymentType(ctx, b.Number, stockledger.PaymentPaid)
//
// Outstanding balances are computed from the bills on every call:
//
//	summaries, err := l.VendorDueSummaries(ctx, time.Time{})
//
// # Errors
//
// Every failure carries a kind that errors.Is matches against the sentinel
// errors in this package, plus the SKU or bill number involved:
//
//	var e *stockledger.Error
//	if errors.As(err, &e) && errors.Is(err, stockledger.ErrInsufficientStock) {
//	    log.Printf("only %d of %s left", e.Available, e.SKU)
//	}
//
// Validation failures are returned at once. A sale that loses a race for
// stock to a concurrent sale is retried once and then reported as
// ErrConflict.
//
// # Money
//
// All amounts are integers in minor units (hundredths). Discounted unit
// prices are rounded to the minor unit and line totals are floored to a
// whole unit.
package stockledger
