package stockledger

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("stockledger: not found")
	ErrAlreadyExists = errors.New("stockledger: already exists")
	ErrInvalidInput  = errors.New("stockledger: invalid input")

	// Product and stock errors
	ErrProductNotFound   = errors.New("stockledger: product not found")
	ErrProductExpired    = errors.New("stockledger: product expired")
	ErrInvalidQuantity   = errors.New("stockledger: invalid quantity")
	ErrInsufficientStock = errors.New("stockledger: insufficient stock")

	// Bill errors
	ErrBillNotFound        = errors.New("stockledger: bill not found")
	ErrDuplicateBillNumber = errors.New("stockledger: duplicate bill number")
	ErrGenerationExhausted = errors.New("stockledger: bill number generation exhausted")
	ErrInvalidTransition   = errors.New("stockledger: invalid payment type transition")

	// Transaction errors
	ErrConflict           = errors.New("stockledger: conflict with concurrent sale")
	ErrTransactionFailed  = errors.New("stockledger: transaction failed")
	ErrCompensationFailed = errors.New("stockledger: compensation failed")

	// Store errors
	ErrStoreClosed     = errors.New("stockledger: store is closed")
	ErrMigrationFailed = errors.New("stockledger: migration failed")
)

// Error is a structured engine error. Kind is one of the sentinel errors
// above; errors.Is matches both Kind and the wrapped cause.
type Error struct {
	Op         string
	Kind       error
	SKU        string
	BillNumber string
	Requested  int64
	Available  int64
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("stockledger: error")
	}
	if e.Op != "" {
		fmt.Fprintf(&b, " (op=%s)", e.Op)
	}
	if e.SKU != "" {
		fmt.Fprintf(&b, " sku=%s", e.SKU)
	}
	if e.BillNumber != "" {
		fmt.Fprintf(&b, " bill=%s", e.BillNumber)
	}
	if errors.Is(e.Kind, ErrInsufficientStock) || (errors.Is(e.Kind, ErrConflict) && e.Requested > 0) {
		fmt.Fprintf(&b, " requested=%d available=%d", e.Requested, e.Available)
	}
	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("stockledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "stockledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("stockledger: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns nil when empty and the MultiError otherwise.
func (e MultiError) ErrOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrBillNotFound)
}

// IsValidation returns true for terminal request validation failures.
// An error has exactly one kind, so it is never both validation and
// retryable.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case ErrInvalidInput, ErrProductExpired, ErrInvalidQuantity, ErrInsufficientStock, ErrProductNotFound:
		return true
	}
	return false
}

// IsRetryable returns true if the error is temporary and the caller may
// submit the same request again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrConflict, ErrTransactionFailed, ErrDuplicateBillNumber:
		return true
	}
	return false
}

// kinds lists every sentinel KindOf can report, most specific first.
var kinds = []error{
	ErrProductNotFound, ErrBillNotFound, ErrProductExpired, ErrInvalidQuantity,
	ErrInsufficientStock, ErrConflict, ErrDuplicateBillNumber, ErrGenerationExhausted,
	ErrCompensationFailed, ErrTransactionFailed, ErrInvalidTransition,
	ErrAlreadyExists, ErrInvalidInput, ErrNotFound,
}

// KindOf returns the sentinel classifying err, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
