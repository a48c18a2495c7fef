package stockledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/stockledger"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      error
		wantValid     bool
		wantRetryable bool
	}{
		{
			name:      "insufficient stock",
			err:       &stockledger.Error{Kind: stockledger.ErrInsufficientStock, SKU: "A1", Requested: 5, Available: 2},
			wantKind:  stockledger.ErrInsufficientStock,
			wantValid: true,
		},
		{
			name:          "lost race",
			err:           &stockledger.Error{Kind: stockledger.ErrConflict, SKU: "A1", Requested: 5, Available: 2},
			wantKind:      stockledger.ErrConflict,
			wantRetryable: true,
		},
		{
			name:          "wrapped lost race",
			err:           fmt.Errorf("checkout: %w", &stockledger.Error{Kind: stockledger.ErrConflict, SKU: "A1"}),
			wantKind:      stockledger.ErrConflict,
			wantRetryable: true,
		},
		{
			name:      "bad request",
			err:       stockledger.ValidationError{Field: "vendor_name", Message: "required"},
			wantKind:  stockledger.ErrInvalidInput,
			wantValid: true,
		},
		{
			name:     "compensation failed",
			err:      &stockledger.Error{Kind: stockledger.ErrCompensationFailed, Err: errors.Join(errors.New("restore"), stockledger.ErrTransactionFailed)},
			wantKind: stockledger.ErrCompensationFailed,
		},
		{
			name:          "transaction failed",
			err:           &stockledger.Error{Kind: stockledger.ErrTransactionFailed, Err: errors.New("disk full")},
			wantKind:      stockledger.ErrTransactionFailed,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stockledger.KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf: got %v, want %v", got, tt.wantKind)
			}
			if got := stockledger.IsValidation(tt.err); got != tt.wantValid {
				t.Errorf("IsValidation: got %v, want %v", got, tt.wantValid)
			}
			if got := stockledger.IsRetryable(tt.err); got != tt.wantRetryable {
				t.Errorf("IsRetryable: got %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestConflictErrorMessage(t *testing.T) {
	err := &stockledger.Error{Op: "generate_bill", Kind: stockledger.ErrConflict, SKU: "A1", Requested: 5, Available: 2}
	want := "stockledger: conflict with concurrent sale (op=generate_bill) sku=A1 requested=5 available=2"
	if got := err.Error(); got != want {
		t.Errorf("Error(): got %q, want %q", got, want)
	}
}
