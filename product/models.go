// Package product defines the catalog entry whose stock counter the ledger owns.
package product

import (
	"time"

	"github.com/xraph/stockledger/types"
)

// Product is a sellable item with a single warehouse-level stock count.
type Product struct {
	types.Entity
	SKU               string      `json:"sku" validate:"required,max=64"`
	Name              string      `json:"name" validate:"required,max=200"`
	Category          string      `json:"category,omitempty" validate:"max=100"`
	UnitPrice         types.Money `json:"unit_price"`
	Stock             int64       `json:"stock" validate:"gte=0"`
	LowStockThreshold int64       `json:"low_stock_threshold" validate:"gte=0"`
	ManufacturingDate time.Time   `json:"manufacturing_date"`
	ExpiryDate        time.Time   `json:"expiry_date" validate:"required"`
}

// IsLowStock reports whether the stock has fallen below the threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock < p.LowStockThreshold
}

// Value returns the stock valued at the unit price.
func (p *Product) Value() types.Money {
	return p.UnitPrice.Multiply(p.Stock)
}

// Clone returns a copy safe to hand to callers.
func (p *Product) Clone() *Product {
	c := *p
	return &c
}
