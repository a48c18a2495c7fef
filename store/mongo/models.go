package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

// ==================== Product models ====================

type productModel struct {
	SKU               string    `bson:"_id"`
	Name              string    `bson:"name"`
	Category          string    `bson:"category,omitempty"`
	UnitPrice         int64     `bson:"unit_price"`
	Stock             int64     `bson:"stock"`
	LowStockThreshold int64     `bson:"low_stock_threshold"`
	ManufacturingDate time.Time `bson:"manufacturing_date"`
	ExpiryDate        time.Time `bson:"expiry_date"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toProductModel(p *product.Product) *productModel {
	return &productModel{
		SKU:               p.SKU,
		Name:              p.Name,
		Category:          p.Category,
		UnitPrice:         p.UnitPrice.Amount,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		ManufacturingDate: p.ManufacturingDate,
		ExpiryDate:        p.ExpiryDate,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) *product.Product {
	return &product.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		SKU:               m.SKU,
		Name:              m.Name,
		Category:          m.Category,
		UnitPrice:         types.Minor(m.UnitPrice),
		Stock:             m.Stock,
		LowStockThreshold: m.LowStockThreshold,
		ManufacturingDate: m.ManufacturingDate.UTC(),
		ExpiryDate:        m.ExpiryDate.UTC(),
	}
}

// ==================== Bill models ====================

type billModel struct {
	Number      string          `bson:"_id"`
	VendorName  string          `bson:"vendor_name"`
	PaymentType string          `bson:"payment_type"`
	TotalAmount int64           `bson:"total_amount"`
	CreatedAt   time.Time       `bson:"created_at"`
	Lines       []billLineModel `bson:"lines"`
}

type billLineModel struct {
	ProductSKU       string `bson:"product_sku"`
	Quantity         int64  `bson:"quantity"`
	UnitPriceCharged int64  `bson:"unit_price_charged"`
	DiscountPercent  string `bson:"discount_percent"`
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
		PaymentType: string(b.PaymentType),
		TotalAmount: b.TotalAmount.Amount,
		CreatedAt:   b.CreatedAt,
		Lines:       lines,
	}
}

func fromBillModel(m *billModel) (*bill.Bill, error) {
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
		PaymentType: bill.PaymentType(m.PaymentType),
		TotalAmount: types.Minor(m.TotalAmount),
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}
