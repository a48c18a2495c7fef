package stockledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/id"
	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/store"
)

// SaleRequest asks for a bill over one or more product lines.
type SaleRequest struct {
	VendorName  string           `json:"vendor_name" validate:"required,max=200"`
	PaymentType bill.PaymentType `json:"payment_type" validate:"required,oneof=paid due"`
	Lines       []SaleLine       `json:"lines" validate:"required,min=1,dive"`
}

// SaleLine is one product in a SaleRequest. Quantity is checked by the
// engine rather than by tags so a bad quantity reports ErrInvalidQuantity.
type SaleLine struct {
	SKU           string `json:"sku" validate:"required"`
	Quantity      int64  `json:"quantity"`
	ApplyDiscount bool   `json:"apply_discount"`
}

// errors that send a sale round the retry loop once more
func retryableSaleError(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateBillNumber)
}

// GenerateBill validates req, prices it, and in one transaction decrements
// stock and appends the bill. Either every effect is visible afterwards or
// none is. A sale that loses a race for stock is retried once before
// ErrConflict is returned.
func (l *Ledger) GenerateBill(ctx context.Context, req SaleRequest) (*bill.Bill, error) {
	const op = "generate_bill"

	if err := l.validateStruct(req); err != nil {
		l.saleFailed(ctx, req.VendorName, err)
		return nil, err
	}

	saleID := id.NewSaleID()
	log := l.logger.With("sale_id", saleID.String(), "vendor", req.VendorName)

	var (
		attempt  int
		newStock map[string]int64
	)
	b, err := backoff.Retry(ctx, func() (*bill.Bill, error) {
		attempt++
		b, stock, err := l.attemptSale(ctx, op, req)
		if err != nil {
			if retryableSaleError(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		newStock = stock
		return b, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(l.conflictBackoff)),
		backoff.WithMaxTries(maxSaleAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("sale lost a race, retrying",
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
			l.plugins.EmitSaleConflict(ctx, req.VendorName, attempt, err)
		}),
	)
	if err != nil {
		err = unwrapPermanent(err)
		if ctx.Err() != nil && KindOf(err) == nil {
			err = &Error{Op: op, Kind: ErrTransactionFailed, Err: err}
		}
		l.saleFailed(ctx, req.VendorName, err)
		return nil, err
	}

	log.Info("bill generated",
		"bill_number", b.Number,
		"lines", len(b.Lines),
		"total", b.TotalAmount.String(),
		"payment_type", b.PaymentType,
		"attempts", attempt,
	)
	l.plugins.EmitBillGenerated(ctx, b.Clone())
	l.emitLowStock(ctx, b, newStock)

	return b, nil
}

// attemptSale runs one pass of the sale pipeline. It returns the committed
// bill and the stock left per SKU.
func (l *Ledger) attemptSale(ctx context.Context, op string, req SaleRequest) (*bill.Bill, map[string]int64, error) {
	asOf := l.now()

	// Resolve every distinct SKU once.
	products := make(map[string]*product.Product, len(req.Lines))
	for _, line := range req.Lines {
		if _, ok := products[line.SKU]; ok {
			continue
		}
		p, err := l.store.GetProduct(ctx, line.SKU)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil, &Error{Op: op, Kind: ErrProductNotFound, SKU: line.SKU}
			}
			return nil, nil, fmt.Errorf("stockledger: load product %s: %w", line.SKU, err)
		}
		products[line.SKU] = p
	}

	evals := make(map[string]discount.Evaluation, len(products))
	for _, line := range req.Lines {
		eval := l.policy.Evaluate(products[line.SKU], asOf)
		if !eval.Sellable() {
			return nil, nil, &Error{Op: op, Kind: ErrProductExpired, SKU: line.SKU}
		}
		evals[line.SKU] = eval
	}

	for _, line := range req.Lines {
		if line.Quantity <= 0 || line.Quantity > bill.MaxLineQuantity {
			return nil, nil, &Error{Op: op, Kind: ErrInvalidQuantity, SKU: line.SKU, Requested: line.Quantity}
		}
	}

	b := &bill.Bill{
		Lines:       make([]bill.Line, 0, len(req.Lines)),
		VendorName:  req.VendorName,
		PaymentType: req.PaymentType,
	}
	for _, line := range req.Lines {
		b.Lines = append(b.Lines, l.priceLine(products[line.SKU], evals[line.SKU], line))
	}
	total, sku, ok := b.CheckedTotal()
	if !ok {
		return nil, nil, &Error{Op: op, Kind: ErrInvalidQuantity, SKU: sku}
	}
	b.TotalAmount = total

	// Read check against the snapshot. Repeated SKUs count together.
	need := b.Quantities()
	skus := make([]string, 0, len(need))
	for sku := range need {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	for _, sku := range skus {
		if have := products[sku].Stock; have < need[sku] {
			return nil, nil, &Error{Op: op, Kind: ErrInsufficientStock, SKU: sku, Requested: need[sku], Available: have}
		}
	}

	newStock := make(map[string]int64, len(skus))
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		clear(newStock)

		// Fixed SKU order keeps concurrent sales from deadlocking.
		for _, sku := range skus {
			left, err := tx.TryDecrement(ctx, sku, need[sku])
			switch {
			case err == nil:
				newStock[sku] = left
			case errors.Is(err, ErrInsufficientStock):
				// A lost race is a conflict, not a rejected request.
				return &Error{Op: op, Kind: ErrConflict, SKU: sku, Requested: need[sku], Available: left}
			case IsNotFound(err):
				return &Error{Op: op, Kind: ErrConflict, SKU: sku}
			default:
				return &Error{Op: op, Kind: ErrTransactionFailed, SKU: sku, Err: err}
			}
		}

		number, err := l.reserveBillNumber(ctx, op, tx)
		if err != nil {
			return err
		}
		b.Number = number
		b.CreatedAt = l.now().UTC().Truncate(time.Millisecond)

		if err := tx.InsertBill(ctx, b); err != nil {
			if errors.Is(err, ErrDuplicateBillNumber) {
				return &Error{Op: op, Kind: ErrDuplicateBillNumber, BillNumber: number, Err: err}
			}
			return &Error{Op: op, Kind: ErrTransactionFailed, BillNumber: number, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, nil, classifyTxError(op, b.Number, err)
	}

	return b, newStock, nil
}

// priceLine charges the list price, or the expiry discounted price when the
// line asks for it and the product is inside the discount window.
func (l *Ledger) priceLine(p *product.Product, eval discount.Evaluation, line SaleLine) bill.Line {
	price := p.UnitPrice
	pct := decimal.Zero
	if line.ApplyDiscount && eval.Status == discount.StatusExpiring && eval.SuggestedPct.IsPositive() {
		price = discount.ApplyPercent(p.UnitPrice, eval.SuggestedPct)
		pct = eval.SuggestedPct.Round(2)
	}
	return bill.Line{
		ProductSKU:             p.SKU,
		Quantity:               line.Quantity,
		UnitPriceCharged:       price,
		DiscountPercentApplied: pct,
	}
}

// reserveBillNumber draws numbers until one is free inside tx.
func (l *Ledger) reserveBillNumber(ctx context.Context, op string, tx store.Tx) (string, error) {
	for i := 1; i <= l.billNumberAttempts; i++ {
		number := l.billNumbers.Next()
		if number == "" {
			continue
		}
		taken, err := tx.BillExists(ctx, number)
		if err != nil {
			return "", &Error{Op: op, Kind: ErrTransactionFailed, BillNumber: number, Err: err}
		}
		if !taken {
			return number, nil
		}
		l.logger.Debug("bill number collision", "bill_number", number, "attempt", i)
	}
	return "", &Error{Op: op, Kind: ErrGenerationExhausted}
}

// classifyTxError maps a RunInTx failure onto the error taxonomy. Errors
// raised by the engine inside the transaction keep their kind.
func classifyTxError(op, number string, err error) error {
	var e *Error
	switch {
	case errors.Is(err, ErrCompensationFailed):
		return &Error{Op: op, Kind: ErrCompensationFailed, BillNumber: number, Err: err}
	case errors.As(err, &e):
		return err
	default:
		return &Error{Op: op, Kind: ErrTransactionFailed, BillNumber: number, Err: err}
	}
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

func (l *Ledger) saleFailed(ctx context.Context, vendorName string, err error) {
	switch {
	case errors.Is(err, ErrCompensationFailed), errors.Is(err, ErrTransactionFailed):
		l.logger.Error("sale failed", "vendor", vendorName, "error", err)
		l.plugins.EmitTransactionFailed(ctx, vendorName, err)
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicateBillNumber), errors.Is(err, ErrGenerationExhausted):
		l.logger.Warn("sale abandoned", "vendor", vendorName, "error", err)
	default:
		l.logger.Debug("sale rejected", "vendor", vendorName, "error", err)
	}
	l.plugins.EmitSaleRejected(ctx, vendorName, err)
}

func (l *Ledger) emitLowStock(ctx context.Context, b *bill.Bill, newStock map[string]int64) {
	seen := make(map[string]bool, len(newStock))
	for _, line := range b.Lines {
		if seen[line.ProductSKU] {
			continue
		}
		seen[line.ProductSKU] = true

		left, ok := newStock[line.ProductSKU]
		if !ok {
			continue
		}
		p, err := l.store.GetProduct(ctx, line.ProductSKU)
		if err != nil {
			continue
		}
		// The sale's own view of stock, not whatever a later sale left.
		p.Stock = left
		if p.IsLowStock() {
			l.logger.Warn("low stock", "sku", p.SKU, "stock", p.Stock, "threshold", p.LowStockThreshold)
			l.plugins.EmitLowStock(ctx, p)
		}
	}
}

// ──────────────────────────────────────────────────
// Bills
// ──────────────────────────────────────────────────

// UpdateBillPaymentType settles a due bill. The only transition is due to
// paid; anything else fails with ErrInvalidTransition.
func (l *Ledger) UpdateBillPaymentType(ctx context.Context, number string, newType bill.PaymentType) (*bill.Bill, error) {
	const op = "update_bill_payment_type"

	if number == "" {
		return nil, ValidationError{Field: "bill_number", Message: "required"}
	}
	if newType != bill.PaymentPaid {
		if _, err := l.store.GetBill(ctx, number); err != nil {
			return nil, billError(op, number, err)
		}
		return nil, &Error{Op: op, Kind: ErrInvalidTransition, BillNumber: number}
	}

	b, err := l.store.MarkBillPaid(ctx, number)
	if err != nil {
		return nil, billError(op, number, err)
	}

	l.logger.Info("bill paid", "bill_number", number, "vendor", b.VendorName, "total", b.TotalAmount.String())
	l.plugins.EmitBillPaid(ctx, b.Clone())
	return b, nil
}

// GetBill returns one bill by number.
func (l *Ledger) GetBill(ctx context.Context, number string) (*bill.Bill, error) {
	b, err := l.store.GetBill(ctx, number)
	if err != nil {
		return nil, billError("get_bill", number, err)
	}
	return b, nil
}

// ListBills returns bills matching opts, newest first.
func (l *Ledger) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	return l.store.ListBills(ctx, opts)
}

func billError(op, number string, err error) error {
	switch {
	case IsNotFound(err):
		return &Error{Op: op, Kind: ErrBillNotFound, BillNumber: number, Err: err}
	case errors.Is(err, ErrInvalidTransition):
		return &Error{Op: op, Kind: ErrInvalidTransition, BillNumber: number, Err: err}
	default:
		return err
	}
}
