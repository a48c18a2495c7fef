// Package memory is an in-process store backed by maps under one RWMutex.
//
// RunInTx holds the write lock for the whole transaction and keeps an undo
// log, so readers never observe a half-applied sale. Code running inside a
// transaction must use the Tx handle only; calling Store methods from fn
// deadlocks.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
	ledgerstore "github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/types"
)

// compile-time interface checks
var (
	_ ledgerstore.Store = (*Store)(nil)
	_ ledgerstore.Tx    = (*tx)(nil)
)

type Store struct {
	mu sync.RWMutex

	// Product storage, keyed by SKU
	products map[string]*product.Product

	// Bill storage, keyed by number
	bills map[string]*bill.Bill

	closed bool
}

func New() *Store {
	return &Store{
		products: make(map[string]*product.Product),
		bills:    make(map[string]*bill.Bill),
	}
}

// ====== Product Store ======

func (s *Store) CreateProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return stockledger.ErrStoreClosed
	}
	if _, exists := s.products[p.SKU]; exists {
		return stockledger.ErrAlreadyExists
	}
	s.products[p.SKU] = p.Clone()
	return nil
}

func (s *Store) GetProduct(_ context.Context, sku string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.products[sku]; ok {
		return p.Clone(), nil
	}
	return nil, stockledger.ErrProductNotFound
}

func (s *Store) ListProducts(_ context.Context, opts product.ListOpts) ([]*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*product.Product, 0, len(s.products))
	for _, p := range s.products {
		if opts.Match(p) {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SKU < result[j].SKU })

	return types.Page(result, opts.Offset, opts.Limit), nil
}

// ====== Bill Store ======

func (s *Store) GetBill(_ context.Context, number string) (*bill.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.bills[number]; ok {
		return b.Clone(), nil
	}
	return nil, stockledger.ErrBillNotFound
}

func (s *Store) ListBills(_ context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*bill.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		all = append(all, b.Clone())
	}
	return opts.Apply(all), nil
}

func (s *Store) MarkBillPaid(_ context.Context, number string) (*bill.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[number]
	if !ok {
		return nil, stockledger.ErrBillNotFound
	}
	if !b.PaymentType.CanTransitionTo(bill.PaymentPaid) {
		return nil, stockledger.ErrInvalidTransition
	}
	b.PaymentType = bill.PaymentPaid
	return b.Clone(), nil
}

// ====== Transactions ======

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return stockledger.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{s: s}
	err := fn(ctx, t)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		t.rollback()
		return err
	}
	return nil
}

// tx applies changes in place and records how to undo them. The owning
// RunInTx holds s.mu for the lifetime of the tx.
type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) TryDecrement(ctx context.Context, sku string, qty int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, ok := t.s.products[sku]
	if !ok {
		return 0, stockledger.ErrProductNotFound
	}
	if qty <= 0 {
		return p.Stock, stockledger.ErrInvalidQuantity
	}
	if p.Stock < qty {
		return p.Stock, stockledger.ErrInsufficientStock
	}

	p.Stock -= qty
	t.undo = append(t.undo, func() { p.Stock += qty })
	return p.Stock, nil
}

func (t *tx) BillExists(_ context.Context, number string) (bool, error) {
	_, ok := t.s.bills[number]
	return ok, nil
}

func (t *tx) InsertBill(ctx context.Context, b *bill.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := t.s.bills[b.Number]; exists {
		return stockledger.ErrDuplicateBillNumber
	}

	t.s.bills[b.Number] = b.Clone()
	number := b.Number
	t.undo = append(t.undo, func() { delete(t.s.bills, number) })
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// ====== Core ======

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return stockledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
