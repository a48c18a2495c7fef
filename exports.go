package stockledger

import (
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// PaymentType is re-exported from bill package.
type PaymentType = bill.PaymentType

// Payment types
const (
	PaymentPaid = bill.PaymentPaid
	PaymentDue  = bill.PaymentDue
)

// Re-export Money constructors
var (
	Minor      = types.Minor
	Units      = types.Units
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMoney = types.ParseMoney
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
