package sqldb

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
	SKU               string `gorm:"column:sku;primaryKey;size:64"`
	Name              string `gorm:"size:200;not null"`
	Category          string `gorm:"size:100;index"`
	UnitPrice         int64  `gorm:"not null"`
	Stock             int64  `gorm:"not null;check:chk_stockledger_products_stock,stock >= 0"`
	LowStockThreshold int64  `gorm:"not null;default:0"`
	ManufacturingDate time.Time
	ExpiryDate        time.Time `gorm:"not null;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (productModel) TableName() string { return "stockledger_products" }

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
	Number      string          `gorm:"column:number;primaryKey;size:128"`
	VendorName  string          `gorm:"size:200;not null;index"`
	PaymentType string          `gorm:"size:8;not null;index"`
	TotalAmount int64           `gorm:"not null"`
	CreatedAt   time.Time       `gorm:"not null;index"`
	Lines       []billLineModel `gorm:"foreignKey:BillNumber;references:Number;constraint:OnDelete:CASCADE"`
}

func (billModel) TableName() string { return "stockledger_bills" }

// billLineModel keeps the discount percent as text so every dialect
// returns exactly the value written.
type billLineModel struct {
	ID               uint   `gorm:"primaryKey"`
	BillNumber       string `gorm:"size:128;not null;index"`
	Position         int    `gorm:"not null"`
	ProductSKU       string `gorm:"column:product_sku;size:64;not null;index"`
	Quantity         int64  `gorm:"not null"`
	UnitPriceCharged int64  `gorm:"not null"`
	DiscountPercent  string `gorm:"size:16;not null"`
}

func (billLineModel) TableName() string { return "stockledger_bill_lines" }

func toBillModel(b *bill.Bill) *billModel {
	lines := make([]billLineModel, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = billLineModel{
			BillNumber:       b.Number,
			Position:         i,
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
