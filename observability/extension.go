// Package observability provides a metrics extension for stockledger that
// records sale, payment and inventory event counts through a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/plugin"
	"github.com/xraph/stockledger/product"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnBillGenerated     = (*MetricsExtension)(nil)
	_ plugin.OnBillPaid          = (*MetricsExtension)(nil)
	_ plugin.OnSaleRejected      = (*MetricsExtension)(nil)
	_ plugin.OnSaleConflict      = (*MetricsExtension)(nil)
	_ plugin.OnTransactionFailed = (*MetricsExtension)(nil)
	_ plugin.OnLowStock          = (*MetricsExtension)(nil)
	_ plugin.OnProductExpiring   = (*MetricsExtension)(nil)
	_ plugin.OnProductExpired    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide sale and inventory metrics.
// Register it as a stockledger plugin to track them automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Bill metrics
	BillGenerated  Counter
	BillPaid       Counter
	BillDue        Counter
	BillTotal      Histogram
	BillLines      Histogram
	DiscountedLine Counter

	// Sale outcome metrics
	SaleRejected        Counter
	SaleOutOfStock      Counter
	SaleExpiredProduct  Counter
	SaleConflictRetry   Counter
	TransactionFailed   Counter
	CompensationFailure Counter

	// Inventory metrics
	LowStock        Counter
	ProductExpiring Counter
	ProductExpired  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Bill metrics
		BillGenerated:  factory.Counter("stockledger.bill.generated"),
		BillPaid:       factory.Counter("stockledger.bill.paid"),
		BillDue:        factory.Counter("stockledger.bill.due"),
		BillTotal:      factory.Histogram("stockledger.bill.total_amount"),
		BillLines:      factory.Histogram("stockledger.bill.lines"),
		DiscountedLine: factory.Counter("stockledger.bill.discounted_lines"),

		// Sale outcome metrics
		SaleRejected:        factory.Counter("stockledger.sale.rejected"),
		SaleOutOfStock:      factory.Counter("stockledger.sale.insufficient_stock"),
		SaleExpiredProduct:  factory.Counter("stockledger.sale.product_expired"),
		SaleConflictRetry:   factory.Counter("stockledger.sale.conflict_retries"),
		TransactionFailed:   factory.Counter("stockledger.sale.transaction_failed"),
		CompensationFailure: factory.Counter("stockledger.sale.compensation_failed"),

		// Inventory metrics
		LowStock:        factory.Counter("stockledger.stock.low"),
		ProductExpiring: factory.Counter("stockledger.product.expiring"),
		ProductExpired:  factory.Counter("stockledger.product.expired"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillGenerated implements plugin.OnBillGenerated.
func (m *MetricsExtension) OnBillGenerated(_ context.Context, b *bill.Bill) error {
	m.BillGenerated.Inc()
	if b.PaymentType == bill.PaymentDue {
		m.BillDue.Inc()
	}
	m.BillTotal.Observe(b.TotalAmount.Decimal().InexactFloat64())
	m.BillLines.Observe(float64(len(b.Lines)))
	for _, l := range b.Lines {
		if l.DiscountPercentApplied.IsPositive() {
			m.DiscountedLine.Inc()
		}
	}
	return nil
}

// OnBillPaid implements plugin.OnBillPaid.
func (m *MetricsExtension) OnBillPaid(_ context.Context, _ *bill.Bill) error {
	m.BillPaid.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleRejected implements plugin.OnSaleRejected.
func (m *MetricsExtension) OnSaleRejected(_ context.Context, _ string, reason error) error {
	m.SaleRejected.Inc()
	switch {
	case errors.Is(reason, stockledger.ErrInsufficientStock), errors.Is(reason, stockledger.ErrConflict):
		m.SaleOutOfStock.Inc()
	case errors.Is(reason, stockledger.ErrProductExpired):
		m.SaleExpiredProduct.Inc()
	}
	return nil
}

// OnSaleConflict implements plugin.OnSaleConflict.
func (m *MetricsExtension) OnSaleConflict(_ context.Context, _ string, _ int, _ error) error {
	m.SaleConflictRetry.Inc()
	return nil
}

// OnTransactionFailed implements plugin.OnTransactionFailed.
func (m *MetricsExtension) OnTransactionFailed(_ context.Context, _ string, cause error) error {
	m.TransactionFailed.Inc()
	if errors.Is(cause, stockledger.ErrCompensationFailed) {
		m.CompensationFailure.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Inventory hooks
// ──────────────────────────────────────────────────

// OnLowStock implements plugin.OnLowStock.
func (m *MetricsExtension) OnLowStock(_ context.Context, _ *product.Product) error {
	m.LowStock.Inc()
	return nil
}

// OnProductExpiring implements plugin.OnProductExpiring.
func (m *MetricsExtension) OnProductExpiring(_ context.Context, _ *product.Product, _ discount.Evaluation) error {
	m.ProductExpiring.Inc()
	return nil
}

// OnProductExpired implements plugin.OnProductExpired.
func (m *MetricsExtension) OnProductExpired(_ context.Context, _ *product.Product, _ discount.Evaluation) error {
	m.ProductExpired.Inc()
	return nil
}
