// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

// Product returns a valid product for tests.
func Product(sku string, stock int64) *product.Product {
	return &product.Product{
		Entity:            types.NewEntityAt(base),
		SKU:               sku,
		Name:              "Product " + sku,
		Category:          "dairy",
		UnitPrice:         types.Units(100),
		Stock:             stock,
		LowStockThreshold: 2,
		ManufacturingDate: base.AddDate(0, 0, -10),
		ExpiryDate:        base.AddDate(0, 0, 20),
	}
}

// Bill returns a single line bill for tests.
func Bill(number, vendor, sku string, qty int64, pt bill.PaymentType, createdAt time.Time) *bill.Bill {
	b := &bill.Bill{
		Number: number,
		Lines: []bill.Line{{
			ProductSKU:             sku,
			Quantity:               qty,
			UnitPriceCharged:       types.Minor(5833),
			DiscountPercentApplied: decimal.RequireFromString("41.67"),
		}},
		VendorName:  vendor,
		PaymentType: pt,
		CreatedAt:   createdAt,
	}
	b.TotalAmount = b.ComputeTotal()
	return b
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Products", testProducts},
		{"CommitSale", testCommitSale},
		{"RollbackOnError", testRollbackOnError},
		{"RollbackOnCancel", testRollbackOnCancel},
		{"TryDecrement", testTryDecrement},
		{"DuplicateBillNumber", testDuplicateBillNumber},
		{"MarkBillPaid", testMarkBillPaid},
		{"ListBills", testListBills},
		{"ConcurrentDecrements", testConcurrentDecrements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func mustCreate(t *testing.T, s store.Store, products ...*product.Product) {
	t.Helper()
	for _, p := range products {
		if err := s.CreateProduct(context.Background(), p); err != nil {
			t.Fatalf("CreateProduct(%s): %v", p.SKU, err)
		}
	}
}

func stockOf(t *testing.T, s store.Store, sku string) int64 {
	t.Helper()
	p, err := s.GetProduct(context.Background(), sku)
	if err != nil {
		t.Fatalf("GetProduct(%s): %v", sku, err)
	}
	return p.Stock
}

func insert(t *testing.T, s store.Store, bills ...*bill.Bill) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, b := range bills {
			if err := tx.InsertBill(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert bills: %v", err)
	}
}

func testProducts(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, Product("B", 5), Product("A", 3))

	if err := s.CreateProduct(ctx, Product("A", 1)); !errors.Is(err, stockledger.ErrAlreadyExists) {
		t.Errorf("duplicate CreateProduct: got %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetProduct(ctx, "A")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	want := Product("A", 3)
	if got.Name != want.Name || got.Stock != 3 || !got.UnitPrice.Equal(want.UnitPrice) ||
		got.LowStockThreshold != want.LowStockThreshold || !got.ExpiryDate.Equal(want.ExpiryDate) {
		t.Errorf("GetProduct: got %+v", got)
	}

	if _, err := s.GetProduct(ctx, "missing"); !stockledger.IsNotFound(err) {
		t.Errorf("GetProduct(missing): got %v, want not found", err)
	}

	list, err := s.ListProducts(ctx, product.ListOpts{})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(list) != 2 || list[0].SKU != "A" || list[1].SKU != "B" {
		t.Errorf("ListProducts: got %d products, want A then B", len(list))
	}

	page, err := s.ListProducts(ctx, product.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListProducts page: %v", err)
	}
	if len(page) != 1 || page[0].SKU != "B" {
		t.Errorf("ListProducts page: got %v", page)
	}
}

func testCommitSale(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, Product("A1", 10))

	b := Bill("B-1", "V1", "A1", 3, bill.PaymentDue, base)
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		left, err := tx.TryDecrement(ctx, "A1", 3)
		if err != nil {
			return err
		}
		if left != 7 {
			return fmt.Errorf("TryDecrement left %d, want 7", left)
		}
		taken, err := tx.BillExists(ctx, b.Number)
		if err != nil {
			return err
		}
		if taken {
			return errors.New("bill number reported taken")
		}
		return tx.InsertBill(ctx, b)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	if got := stockOf(t, s, "A1"); got != 7 {
		t.Errorf("stock: got %d, want 7", got)
	}
	stored, err := s.GetBill(ctx, "B-1")
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if !stored.TotalAmount.Equal(b.TotalAmount) || stored.VendorName != "V1" || stored.PaymentType != bill.PaymentDue {
		t.Errorf("GetBill: got %+v", stored)
	}
	if !stored.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt: got %v, want %v", stored.CreatedAt, base)
	}
	if len(stored.Lines) != 1 {
		t.Fatalf("lines: got %d, want 1", len(stored.Lines))
	}
	line := stored.Lines[0]
	if line.ProductSKU != "A1" || line.Quantity != 3 || !line.UnitPriceCharged.Equal(types.Minor(5833)) ||
		!line.DiscountPercentApplied.Equal(decimal.RequireFromString("41.67")) {
		t.Errorf("line: got %+v", line)
	}
}

func testRollbackOnError(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, Product("A", 10), Product("B", 1))

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.TryDecrement(ctx, "A", 4); err != nil {
			return err
		}
		if err := tx.InsertBill(ctx, Bill("B-rollback", "V", "A", 4, bill.PaymentPaid, base)); err != nil {
			return err
		}
		_, err := tx.TryDecrement(ctx, "B", 2)
		return err
	})
	if !errors.Is(err, stockledger.ErrInsufficientStock) {
		t.Fatalf("RunInTx: got %v, want ErrInsufficientStock", err)
	}

	if got := stockOf(t, s, "A"); got != 10 {
		t.Errorf("stock A after rollback: got %d, want 10", got)
	}
	if got := stockOf(t, s, "B"); got != 1 {
		t.Errorf("stock B after rollback: got %d, want 1", got)
	}
	if _, err := s.GetBill(ctx, "B-rollback"); !stockledger.IsNotFound(err) {
		t.Errorf("bill after rollback: got %v, want not found", err)
	}
}

func testRollbackOnCancel(t *testing.T, s store.Store) {
	mustCreate(t, s, Product("A", 10))

	ctx, cancel := context.WithCancel(context.Background())
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.TryDecrement(ctx, "A", 4); err != nil {
			return err
		}
		cancel()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("RunInTx after cancel: got nil error")
	}
	if got := stockOf(t, s, "A"); got != 10 {
		t.Errorf("stock after cancel: got %d, want 10", got)
	}
}

func testTryDecrement(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, Product("A", 5))

	tests := []struct {
		name    string
		sku     string
		qty     int64
		wantErr error
	}{
		{"more than stock", "A", 6, stockledger.ErrInsufficientStock},
		{"unknown sku", "missing", 1, stockledger.ErrProductNotFound},
		{"all of it", "A", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				_, err := tx.TryDecrement(ctx, tt.sku, tt.qty)
				return err
			})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := stockOf(t, s, "A"); got != 0 {
		t.Errorf("final stock: got %d, want 0", got)
	}
}

func testDuplicateBillNumber(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s, Bill("B-dup", "V", "A", 1, bill.PaymentPaid, base))

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		taken, err := tx.BillExists(ctx, "B-dup")
		if err != nil {
			return err
		}
		if !taken {
			return errors.New("BillExists: got false for a stored bill")
		}
		return tx.InsertBill(ctx, Bill("B-dup", "Other", "A", 2, bill.PaymentDue, base))
	})
	if !errors.Is(err, stockledger.ErrDuplicateBillNumber) {
		t.Fatalf("InsertBill duplicate: got %v, want ErrDuplicateBillNumber", err)
	}

	stored, err := s.GetBill(ctx, "B-dup")
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if stored.VendorName != "V" {
		t.Errorf("original bill overwritten: vendor %q", stored.VendorName)
	}
}

func testMarkBillPaid(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s,
		Bill("B-due", "V", "A", 1, bill.PaymentDue, base),
		Bill("B-paid", "V", "A", 1, bill.PaymentPaid, base),
	)

	b, err := s.MarkBillPaid(ctx, "B-due")
	if err != nil {
		t.Fatalf("MarkBillPaid: %v", err)
	}
	if b.PaymentType != bill.PaymentPaid {
		t.Errorf("PaymentType: got %s, want paid", b.PaymentType)
	}

	if _, err := s.MarkBillPaid(ctx, "B-due"); !errors.Is(err, stockledger.ErrInvalidTransition) {
		t.Errorf("second MarkBillPaid: got %v, want ErrInvalidTransition", err)
	}
	if _, err := s.MarkBillPaid(ctx, "B-paid"); !errors.Is(err, stockledger.ErrInvalidTransition) {
		t.Errorf("MarkBillPaid on paid bill: got %v, want ErrInvalidTransition", err)
	}
	if _, err := s.MarkBillPaid(ctx, "missing"); !stockledger.IsNotFound(err) {
		t.Errorf("MarkBillPaid(missing): got %v, want not found", err)
	}
}

func testListBills(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s,
		Bill("B-1", "Alpha", "A", 1, bill.PaymentDue, base),
		Bill("B-2", "Beta", "B", 2, bill.PaymentPaid, base.Add(time.Hour)),
		Bill("B-3", "Alpha", "B", 3, bill.PaymentDue, base.Add(2*time.Hour)),
	)

	all, err := s.ListBills(ctx, bill.ListOpts{})
	if err != nil {
		t.Fatalf("ListBills: %v", err)
	}
	if len(all) != 3 || all[0].Number != "B-3" || all[2].Number != "B-1" {
		t.Errorf("ListBills order: got %v", numbers(all))
	}

	tests := []struct {
		name string
		opts bill.ListOpts
		want []string
	}{
		{"by vendor", bill.ListOpts{VendorName: "Alpha"}, []string{"B-3", "B-1"}},
		{"due only", bill.ListOpts{PaymentType: bill.PaymentDue}, []string{"B-3", "B-1"}},
		{"by sku", bill.ListOpts{SKU: "B"}, []string{"B-3", "B-2"}},
		{"created window", bill.ListOpts{CreatedFrom: base.Add(30 * time.Minute), CreatedTo: base.Add(90 * time.Minute)}, []string{"B-2"}},
		{"paged", bill.ListOpts{Limit: 1, Offset: 1}, []string{"B-2"}},
		{"search vendor", bill.ListOpts{Search: "alp"}, []string{"B-3", "B-1"}},
		{"search number", bill.ListOpts{Search: "b-2"}, []string{"B-2"}},
		{"search percent is literal", bill.ListOpts{Search: "%"}, []string{}},
		{"search underscore is literal", bill.ListOpts{Search: "B_"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListBills(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListBills: %v", err)
			}
			if fmt.Sprint(numbers(got)) != fmt.Sprint(tt.want) {
				t.Errorf("got %v, want %v", numbers(got), tt.want)
			}
		})
	}
}

func testConcurrentDecrements(t *testing.T, s store.Store) {
	const (
		stock   = 10
		workers = 16
		qty     = 3
	)
	mustCreate(t, s, Product("HOT", stock))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				_, err := tx.TryDecrement(ctx, "HOT", qty)
				return err
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := succeeded.Load(); got != stock/qty {
		t.Errorf("successful decrements: got %d, want %d", got, stock/qty)
	}
	if got := stockOf(t, s, "HOT"); got != stock-qty*(stock/qty) {
		t.Errorf("final stock: got %d, want %d", got, stock-qty*(stock/qty))
	}
}

func numbers(bills []*bill.Bill) []string {
	out := make([]string, len(bills))
	for i, b := range bills {
		out[i] = b.Number
	}
	return out
}
