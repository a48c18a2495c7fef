// Package plugin provides an extensible plugin system for stockledger.
// Plugins hook into sale, payment and inventory events. A plugin implements
// Plugin plus any subset of the hook interfaces below.
package plugin

import (
	"context"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/product"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *stockledger.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnBillGenerated is called after a sale commits.
type OnBillGenerated interface {
	Plugin
	OnBillGenerated(ctx context.Context, b *bill.Bill) error
}

// OnSaleRejected is called when a sale fails without committing anything.
type OnSaleRejected interface {
	Plugin
	OnSaleRejected(ctx context.Context, vendorName string, reason error) error
}

// OnSaleConflict is called each time a sale loses a race and is retried.
type OnSaleConflict interface {
	Plugin
	OnSaleConflict(ctx context.Context, vendorName string, attempt int, cause error) error
}

// OnTransactionFailed is called when the store could not commit a sale.
type OnTransactionFailed interface {
	Plugin
	OnTransactionFailed(ctx context.Context, vendorName string, cause error) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnBillPaid is called when a due bill is settled.
type OnBillPaid interface {
	Plugin
	OnBillPaid(ctx context.Context, b *bill.Bill) error
}

// ──────────────────────────────────────────────────
// Inventory hooks
// ──────────────────────────────────────────────────

// OnLowStock is called when a sale leaves a product below its threshold.
type OnLowStock interface {
	Plugin
	OnLowStock(ctx context.Context, p *product.Product) error
}

// OnProductExpiring is called by the expiry sweep for products inside the
// discount window.
type OnProductExpiring interface {
	Plugin
	OnProductExpiring(ctx context.Context, p *product.Product, eval discount.Evaluation) error
}

// OnProductExpired is called by the expiry sweep for products that can no
// longer be sold.
type OnProductExpired interface {
	Plugin
	OnProductExpired(ctx context.Context, p *product.Product, eval discount.Evaluation) error
}
