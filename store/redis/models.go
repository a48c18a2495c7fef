package redis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

// productModel is stored as JSON under the product key. The live stock
// counter has its own key and is not part of the document.
type productModel struct {
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	Category          string    `json:"category,omitempty"`
	UnitPrice         int64     `json:"unit_price"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	ManufacturingDate time.Time `json:"manufacturing_date"`
	ExpiryDate        time.Time `json:"expiry_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toProductModel(p *product.Product) *productModel {
	return &productModel{
		SKU:               p.SKU,
		Name:              p.Name,
		Category:          p.Category,
		UnitPrice:         p.UnitPrice.Amount,
		LowStockThreshold: p.LowStockThreshold,
		ManufacturingDate: p.ManufacturingDate,
		ExpiryDate:        p.ExpiryDate,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func fromProductModel(m *productModel, stock int64) *product.Product {
	return &product.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		SKU:               m.SKU,
		Name:              m.Name,
		Category:          m.Category,
		UnitPrice:         types.Minor(m.UnitPrice),
		Stock:             stock,
		LowStockThreshold: m.LowStockThreshold,
		ManufacturingDate: m.ManufacturingDate.UTC(),
		ExpiryDate:        m.ExpiryDate.UTC(),
	}
}

// billModel is the immutable part of a bill, stored as JSON in the "data"
// field of the bill hash. The payment type lives in its own field so it
// can be flipped without rewriting the document.
type billModel struct {
	Number      string          `json:"number"`
	VendorName  string          `json:"vendor_name"`
	TotalAmount int64           `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []billLineModel `json:"lines"`
}

type billLineModel struct {
	ProductSKU       string `json:"product_sku"`
	Quantity         int64  `json:"quantity"`
	UnitPriceCharged int64  `json:"unit_price_charged"`
	DiscountPercent  string `json:"discount_percent"`
}

func toBillModel(b *bill.Bill) *billModel {
	lines := make([]billLineModel, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = billLineModel{
			ProductSKU:       l.ProductSKU,
			Quantity:         l.Quantity,
			UnitPriceCharged: l.UnitPriceCharged.Amount,
			DiscountPercent:  l.DiscountPercentApplied.String(),
		}
	}
	return &billModel{
		Number:      b.Number,
		VendorName:  b.VendorName,
		TotalAmount: b.TotalAmount.Amount,
		CreatedAt:   b.CreatedAt,
		Lines:       lines,
	}
}

func fromBillModel(m *billModel, pt string) (*bill.Bill, error) {
	lines := make([]bill.Line, len(m.Lines))
	for i, l := range m.Lines {
		pct, err := decimal.NewFromString(l.DiscountPercent)
		if err != nil {
			return nil, fmt.Errorf("bill %s line %d: discount percent: %w", m.Number, i, err)
		}
		lines[i] = bill.Line{
			ProductSKU:             l.ProductSKU,
			Quantity:               l.Quantity,
			UnitPriceCharged:       types.Minor(l.UnitPriceCharged),
			DiscountPercentApplied: pct,
		}
	}
	return &bill.Bill{
		Number:      m.Number,
		Lines:       lines,
		VendorName:  m.VendorName,
		PaymentType: bill.PaymentType(pt),
		TotalAmount: types.Minor(m.TotalAmount),
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}
