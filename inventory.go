package stockledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

// ──────────────────────────────────────────────────
// Product Management
// ──────────────────────────────────────────────────

// AddProduct validates p and adds it to the catalog.
func (l *Ledger) AddProduct(ctx context.Context, p *product.Product) error {
	const op = "add_product"

	if p == nil {
		return ValidationError{Field: "product", Message: "required"}
	}
	if err := l.validateStruct(p); err != nil {
		return err
	}
	if p.UnitPrice.IsNegative() {
		return ValidationError{Field: "unit_price", Message: "must not be negative"}
	}
	if !p.ManufacturingDate.IsZero() && p.ExpiryDate.Before(p.ManufacturingDate) {
		return ValidationError{Field: "expiry_date", Message: "must not precede manufacturing_date"}
	}
	p.Entity = types.NewEntityAt(l.now())

	if err := l.store.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return &Error{Op: op, Kind: ErrAlreadyExists, SKU: p.SKU, Err: err}
		}
		return fmt.Errorf("stockledger: add product %s: %w", p.SKU, err)
	}

	l.logger.Info("product added", "sku", p.SKU, "stock", p.Stock, "expiry", p.ExpiryDate.Format(time.DateOnly))
	return nil
}

// Product returns one product by SKU.
func (l *Ledger) Product(ctx context.Context, sku string) (*product.Product, error) {
	p, err := l.store.GetProduct(ctx, sku)
	if err != nil {
		if IsNotFound(err) {
			return nil, &Error{Op: "get_product", Kind: ErrProductNotFound, SKU: sku, Err: err}
		}
		return nil, err
	}
	return p, nil
}

// Products lists the catalog ordered by SKU.
func (l *Ledger) Products(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	return l.store.ListProducts(ctx, opts)
}

// LowStockProducts lists products whose stock is below their threshold.
func (l *Ledger) LowStockProducts(ctx context.Context) ([]*product.Product, error) {
	all, err := l.store.ListProducts(ctx, product.ListOpts{})
	if err != nil {
		return nil, err
	}
	low := make([]*product.Product, 0)
	for _, p := range all {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

// Evaluate classifies one product against the discount policy as of now.
func (l *Ledger) Evaluate(ctx context.Context, sku string) (*product.Product, discount.Evaluation, error) {
	p, err := l.Product(ctx, sku)
	if err != nil {
		return nil, discount.Evaluation{}, err
	}
	return p, l.policy.Evaluate(p, l.now()), nil
}

// ──────────────────────────────────────────────────
// Expiry
// ──────────────────────────────────────────────────

// ExpiryNotice pairs a product with its evaluation at sweep time.
type ExpiryNotice struct {
	Product    *product.Product    `json:"product"`
	Evaluation discount.Evaluation `json:"evaluation"`
}

// ExpirySweep is the result of one pass over the catalog.
type ExpirySweep struct {
	AsOf     time.Time      `json:"as_of"`
	Expiring []ExpiryNotice `json:"expiring"`
	Expired  []ExpiryNotice `json:"expired"`
}

// SweepExpiry evaluates every product and notifies plugins of products that
// are inside the discount window or past expiry. Stock is not changed.
func (l *Ledger) SweepExpiry(ctx context.Context) (*ExpirySweep, error) {
	products, err := l.store.ListProducts(ctx, product.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("stockledger: expiry sweep: %w", err)
	}

	sweep := &ExpirySweep{AsOf: l.now(), Expiring: []ExpiryNotice{}, Expired: []ExpiryNotice{}}
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eval := l.policy.Evaluate(p, sweep.AsOf)
		switch eval.Status {
		case discount.StatusExpired:
			sweep.Expired = append(sweep.Expired, ExpiryNotice{Product: p, Evaluation: eval})
			l.plugins.EmitProductExpired(ctx, p, eval)
		case discount.StatusExpiring:
			sweep.Expiring = append(sweep.Expiring, ExpiryNotice{Product: p, Evaluation: eval})
			l.plugins.EmitProductExpiring(ctx, p, eval)
		}
	}

	l.logger.Info("expiry sweep finished",
		"products", len(products),
		"expiring", len(sweep.Expiring),
		"expired", len(sweep.Expired),
	)
	return sweep, nil
}

// ExpiryReport scores the catalog for expiry risk as of asOf (zero means
// now) and recommends discounts for products at or above the configured
// risk threshold.
func (l *Ledger) ExpiryReport(ctx context.Context, asOf time.Time) (*discount.Report, error) {
	products, err := l.store.ListProducts(ctx, product.ListOpts{})
	if err != nil {
		return nil, err
	}
	return l.policy.Assess(products, l.asOf(asOf), l.riskThreshold), nil
}
