// Package sqldb implements store.Store on any relational database gorm
// supports. The postgres and sqlite packages open a *gorm.DB and hand it here.
//
// Stock is lowered with a single conditional UPDATE, so concurrent sales
// serialize on the product row and the counter can never go negative.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
	ledgerstore "github.com/xraph/stockledger/store"
)

// compile-time interface checks
var (
	_ ledgerstore.Store = (*Store)(nil)
	_ ledgerstore.Tx    = (*tx)(nil)
)

// Store implements store.Store using gorm.
type Store struct {
	db *gorm.DB
}

// New creates a store on db. The connection should be opened with
// gorm.Config.TranslateError set so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying gorm handle for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&productModel{}, &billModel{}, &billLineModel{})
	if err != nil {
		return fmt.Errorf("stockledger/sqldb: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ==================== Product Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	err := s.db.WithContext(ctx).Create(toProductModel(p)).Error
	if isDuplicate(err) {
		return stockledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetProduct(ctx context.Context, sku string) (*product.Product, error) {
	m := new(productModel)
	err := s.db.WithContext(ctx).Where("sku = ?", sku).Take(m).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stockledger.ErrProductNotFound
		}
		return nil, err
	}
	return fromProductModel(m), nil
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	var models []productModel
	q := s.db.WithContext(ctx).Model(&productModel{})
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	q = page(q, opts.Offset, opts.Limit)

	if err := q.Order("sku ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*product.Product, len(models))
	for i := range models {
		result[i] = fromProductModel(&models[i])
	}
	return result, nil
}

// ==================== Bill Store ====================

func (s *Store) GetBill(ctx context.Context, number string) (*bill.Bill, error) {
	m := new(billModel)
	err := withLines(s.db.WithContext(ctx)).Where("number = ?", number).Take(m).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stockledger.ErrBillNotFound
		}
		return nil, err
	}
	return fromBillModel(m)
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (s *Store) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	db := s.db.WithContext(ctx)
	q := withLines(db).Model(&billModel{})

	if opts.VendorName != "" {
		q = q.Where("vendor_name = ?", opts.VendorName)
	}
	if opts.PaymentType != "" {
		q = q.Where("payment_type = ?", string(opts.PaymentType))
	}
	if opts.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(opts.Search)) + "%"
		q = q.Where(`(LOWER(number) LIKE ? ESCAPE '\' OR LOWER(vendor_name) LIKE ? ESCAPE '\')`, like, like)
	}
	if opts.SKU != "" {
		q = q.Where("number IN (?)",
			db.Model(&billLineModel{}).Select("bill_number").Where("product_sku = ?", opts.SKU))
	}
	if opts.MinAmount != nil {
		q = q.Where("total_amount >= ?", opts.MinAmount.Amount)
	}
	if opts.MaxAmount != nil {
		q = q.Where("total_amount <= ?", opts.MaxAmount.Amount)
	}
	if !opts.CreatedFrom.IsZero() {
		q = q.Where("created_at >= ?", opts.CreatedFrom)
	}
	if !opts.CreatedTo.IsZero() {
		q = q.Where("created_at <= ?", opts.CreatedTo)
	}
	q = page(q, opts.Offset, opts.Limit)

	var models []billModel
	if err := q.Order("created_at DESC").Order("number DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*bill.Bill, len(models))
	for i := range models {
		b, err := fromBillModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

func (s *Store) MarkBillPaid(ctx context.Context, number string) (*bill.Bill, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&billModel{}).
		Where("number = ? AND payment_type = ?", number, string(bill.PaymentDue)).
		Update("payment_type", string(bill.PaymentPaid))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&billModel{}).Where("number = ?", number).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, stockledger.ErrBillNotFound
		}
		return nil, stockledger.ErrInvalidTransition
	}
	return s.GetBill(ctx, number)
}

// ==================== Transactions ====================

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if err := fn(ctx, &tx{db: gtx}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

type tx struct {
	db *gorm.DB
}

func (t *tx) TryDecrement(ctx context.Context, sku string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, stockledger.ErrInvalidQuantity
	}
	db := t.db.WithContext(ctx)
	res := db.Model(&productModel{}).
		Where("sku = ? AND stock >= ?", sku, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}

	m := new(productModel)
	if err := db.Select("stock").Where("sku = ?", sku).Take(m).Error; err != nil {
		if isNoRows(err) {
			return 0, stockledger.ErrProductNotFound
		}
		return 0, err
	}
	if res.RowsAffected == 0 {
		return m.Stock, stockledger.ErrInsufficientStock
	}
	return m.Stock, nil
}

func (t *tx) BillExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&billModel{}).Where("number = ?", number).Count(&count).Error
	return count > 0, err
}

func (t *tx) InsertBill(ctx context.Context, b *bill.Bill) error {
	taken, err := t.BillExists(ctx, b.Number)
	if err != nil {
		return err
	}
	if taken {
		return stockledger.ErrDuplicateBillNumber
	}
	err = t.db.WithContext(ctx).Create(toBillModel(b)).Error
	if isDuplicate(err) {
		return stockledger.ErrDuplicateBillNumber
	}
	return err
}

// ==================== Helpers ====================

func withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// page applies LIMIT/OFFSET. SQLite rejects OFFSET without LIMIT, so an
// offset on its own gets an unbounded limit.
func page(q *gorm.DB, offset, limit int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		if limit <= 0 {
			q = q.Limit(math.MaxInt32)
		}
		q = q.Offset(offset)
	}
	return q
}

func isNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
