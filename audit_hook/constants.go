package audithook

// Action constants for audit events.
const (
	// Bill actions
	ActionBillGenerated = "bill.generated"
	ActionBillPaid      = "bill.paid"

	// Sale actions
	ActionSaleRejected = "sale.rejected"
	ActionSaleConflict = "sale.conflict"
	ActionSaleFailed   = "sale.failed"

	// Inventory actions
	ActionStockLow        = "stock.low"
	ActionProductExpiring = "product.expiring"
	ActionProductExpired  = "product.expired"
)

// Resource constants for audit events.
const (
	ResourceBill    = "bill"
	ResourceSale    = "sale"
	ResourceProduct = "product"
)

// Category constants for audit events.
const (
	CategoryBilling   = "billing"
	CategoryPayment   = "payment"
	CategoryInventory = "inventory"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
