// Package store defines the storage contract every stockledger backend implements.
package store

import (
	"context"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
)

// Store is the unified storage interface. Stock and bills change together
// only inside RunInTx.
type Store interface {
	// Product methods
	CreateProduct(ctx context.Context, p *product.Product) error
	GetProduct(ctx context.Context, sku string) (*product.Product, error)
	ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error)

	// Bill methods
	GetBill(ctx context.Context, number string) (*bill.Bill, error)
	ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error)
	MarkBillPaid(ctx context.Context, number string) (*bill.Bill, error)

	// RunInTx runs fn inside one transaction boundary. If fn returns an
	// error, or ctx is canceled, every effect of tx is undone before RunInTx
	// returns. Backends without cross-entity transactions undo effects by
	// compensation and return stockledger.ErrCompensationFailed if that fails.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the write side of a sale.
type Tx interface {
	// TryDecrement lowers the stock of sku by qty only if the current stock
	// is at least qty, as one indivisible step. It returns the new stock, or
	// stockledger.ErrInsufficientStock / stockledger.ErrProductNotFound.
	TryDecrement(ctx context.Context, sku string, qty int64) (int64, error)

	// BillExists reports whether a bill number is already taken.
	BillExists(ctx context.Context, number string) (bool, error)

	// InsertBill appends b. It returns stockledger.ErrDuplicateBillNumber
	// when the number is taken.
	InsertBill(ctx context.Context, b *bill.Bill) error
}
