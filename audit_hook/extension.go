// Package audithook bridges stockledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/plugin"
	"github.com/xraph/stockledger/product"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnBillGenerated     = (*Extension)(nil)
	_ plugin.OnBillPaid          = (*Extension)(nil)
	_ plugin.OnSaleRejected      = (*Extension)(nil)
	_ plugin.OnSaleConflict      = (*Extension)(nil)
	_ plugin.OnTransactionFailed = (*Extension)(nil)
	_ plugin.OnLowStock          = (*Extension)(nil)
	_ plugin.OnProductExpiring   = (*Extension)(nil)
	_ plugin.OnProductExpired    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges stockledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillGenerated implements plugin.OnBillGenerated.
func (e *Extension) OnBillGenerated(ctx context.Context, b *bill.Bill) error {
	return e.record(ctx, ActionBillGenerated, SeverityInfo, OutcomeSuccess,
		ResourceBill, b.Number, CategoryBilling, nil,
		"vendor", b.VendorName,
		"payment_type", string(b.PaymentType),
		"total_amount", b.TotalAmount.String(),
		"lines", len(b.Lines),
	)
}

// OnBillPaid implements plugin.OnBillPaid.
func (e *Extension) OnBillPaid(ctx context.Context, b *bill.Bill) error {
	return e.record(ctx, ActionBillPaid, SeverityInfo, OutcomeSuccess,
		ResourceBill, b.Number, CategoryPayment, nil,
		"vendor", b.VendorName,
		"total_amount", b.TotalAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Sale hooks
// ──────────────────────────────────────────────────

// OnSaleRejected implements plugin.OnSaleRejected. Transaction failures are
// recorded by OnTransactionFailed instead.
func (e *Extension) OnSaleRejected(ctx context.Context, vendorName string, reason error) error {
	if errors.Is(reason, stockledger.ErrTransactionFailed) || errors.Is(reason, stockledger.ErrCompensationFailed) {
		return nil
	}
	return e.record(ctx, ActionSaleRejected, SeverityWarning, OutcomeFailure,
		ResourceSale, skuOf(reason), CategoryBilling, reason,
		"vendor", vendorName,
		"kind", kindOf(reason),
	)
}

// OnSaleConflict implements plugin.OnSaleConflict.
func (e *Extension) OnSaleConflict(ctx context.Context, vendorName string, attempt int, cause error) error {
	return e.record(ctx, ActionSaleConflict, SeverityWarning, OutcomePartial,
		ResourceSale, skuOf(cause), CategoryBilling, cause,
		"vendor", vendorName,
		"attempt", attempt,
	)
}

// OnTransactionFailed implements plugin.OnTransactionFailed.
func (e *Extension) OnTransactionFailed(ctx context.Context, vendorName string, cause error) error {
	severity := SeverityError
	if errors.Is(cause, stockledger.ErrCompensationFailed) {
		severity = SeverityCritical
	}
	return e.record(ctx, ActionSaleFailed, severity, OutcomeFailure,
		ResourceSale, "", CategoryBilling, cause,
		"vendor", vendorName,
		"kind", kindOf(cause),
	)
}

// ──────────────────────────────────────────────────
// Inventory hooks
// ──────────────────────────────────────────────────

// OnLowStock implements plugin.OnLowStock.
func (e *Extension) OnLowStock(ctx context.Context, p *product.Product) error {
	return e.record(ctx, ActionStockLow, SeverityWarning, OutcomeSuccess,
		ResourceProduct, p.SKU, CategoryInventory, nil,
		"stock", p.Stock,
		"threshold", p.LowStockThreshold,
	)
}

// OnProductExpiring implements plugin.OnProductExpiring.
func (e *Extension) OnProductExpiring(ctx context.Context, p *product.Product, eval discount.Evaluation) error {
	return e.record(ctx, ActionProductExpiring, SeverityInfo, OutcomeSuccess,
		ResourceProduct, p.SKU, CategoryInventory, nil,
		"days_until_expiry", eval.DaysUntilExpiry,
		"suggested_discount_percent", eval.SuggestedPct.StringFixed(2),
		"stock", p.Stock,
	)
}

// OnProductExpired implements plugin.OnProductExpired.
func (e *Extension) OnProductExpired(ctx context.Context, p *product.Product, eval discount.Evaluation) error {
	return e.record(ctx, ActionProductExpired, SeverityWarning, OutcomeSuccess,
		ResourceProduct, p.SKU, CategoryInventory, nil,
		"days_until_expiry", eval.DaysUntilExpiry,
		"stock", p.Stock,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func skuOf(err error) string {
	var e *stockledger.Error
	if errors.As(err, &e) {
		return e.SKU
	}
	return ""
}

func kindOf(err error) string {
	if k := stockledger.KindOf(err); k != nil {
		return k.Error()
	}
	return "unknown"
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
