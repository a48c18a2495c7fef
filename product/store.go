package product

import "context"

// Catalog is the read-only product contract the billing engine consumes.
type Catalog interface {
	GetProduct(ctx context.Context, sku string) (*Product, error)
	ListProducts(ctx context.Context, opts ListOpts) ([]*Product, error)
}

// Store extends Catalog with product registration. Stock is never written
// through this interface after creation.
type Store interface {
	Catalog
	CreateProduct(ctx context.Context, p *Product) error
}

// ListOpts configures product listing. Results are ordered by SKU.
type ListOpts struct {
	Category string
	Limit    int
	Offset   int
}

// Match reports whether p passes the filter part of the options.
func (o ListOpts) Match(p *Product) bool {
	return o.Category == "" || p.Category == o.Category
}
