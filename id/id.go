// Package id defines TypeID-based identifiers used by stockledger.
//
// Products are keyed by SKU and bills by bill number; TypeIDs identify the
// things that need a sortable, globally unique handle: generated bill
// numbers, sale attempts (saga tokens and log correlation) and published
// events.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants.
const (
	PrefixBill  Prefix = "bill" // Bill number
	PrefixSale  Prefix = "sale" // Sale attempt
	PrefixEvent Prefix = "evt"  // Published event
)

// ID is a prefix-qualified, time-sortable identifier ("prefix_suffix").
// The zero value is Nil.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with prefix. An invalid prefix is a programming
// error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses s and checks that it carries the expected prefix.
func Parse(s string, expected Prefix) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	parsed := ID{inner: tid, valid: true}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// NewBillID generates a bill number.
func NewBillID() ID { return New(PrefixBill) }

// NewSaleID generates a sale attempt ID.
func NewSaleID() ID { return New(PrefixSale) }

// NewEventID generates an event ID.
func NewEventID() ID { return New(PrefixEvent) }

// ParseBillID parses a bill number generated by NewBillID.
func ParseBillID(s string) (ID, error) { return Parse(s, PrefixBill) }

// ParseSaleID parses a sale attempt ID.
func ParseSaleID(s string) (ID, error) { return Parse(s, PrefixSale) }

// ParseEventID parses an event ID.
func ParseEventID(s string) (ID, error) { return Parse(s, PrefixEvent) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }
