// Package mongo implements store.Store on MongoDB.
//
// Sales run inside a multi-document transaction, which requires a replica
// set or sharded cluster. Stock is lowered with a filtered $inc so the
// counter never goes negative even under write conflicts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/product"
	ledgerstore "github.com/xraph/stockledger/store"
)

// Collection name constants.
const (
	colProducts = "stockledger_products"
	colBills    = "stockledger_bills"
)

// compile-time interface checks
var (
	_ ledgerstore.Store = (*Store)(nil)
	_ ledgerstore.Tx    = (*tx)(nil)
)

// Store implements store.Store using the MongoDB driver.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store on database name of client.
func New(client *mongo.Client, name string) *Store {
	return &Store{
		client: client,
		db:     client.Database(name),
	}
}

// Open connects to uri and returns a store on database name.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: connect: %w", err)
	}
	s := New(client, name)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("stockledger/mongo: ping: %w", err)
	}
	return s, nil
}

// Database returns the underlying database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all stockledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("stockledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) products() *mongo.Collection { return s.db.Collection(colProducts) }
func (s *Store) bills() *mongo.Collection    { return s.db.Collection(colBills) }

// ==================== Product Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	_, err := s.products().InsertOne(ctx, toProductModel(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockledger.ErrAlreadyExists
		}
		return fmt.Errorf("stockledger/mongo: create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, sku string) (*product.Product, error) {
	var m productModel
	err := s.products().FindOne(ctx, bson.M{"_id": sku}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stockledger.ErrProductNotFound
		}
		return nil, fmt.Errorf("stockledger/mongo: get product: %w", err)
	}
	return fromProductModel(&m), nil
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	filter := bson.M{}
	if opts.Category != "" {
		filter["category"] = opts.Category
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	pageOpts(findOpts, opts.Offset, opts.Limit)

	cur, err := s.products().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list products: %w", err)
	}
	var models []productModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list products: %w", err)
	}

	result := make([]*product.Product, len(models))
	for i := range models {
		result[i] = fromProductModel(&models[i])
	}
	return result, nil
}

// ==================== Bill Store ====================

func (s *Store) GetBill(ctx context.Context, number string) (*bill.Bill, error) {
	var m billModel
	err := s.bills().FindOne(ctx, bson.M{"_id": number}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stockledger.ErrBillNotFound
		}
		return nil, fmt.Errorf("stockledger/mongo: get bill: %w", err)
	}
	return fromBillModel(&m)
}

func (s *Store) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	filter := bson.M{}
	if opts.VendorName != "" {
		filter["vendor_name"] = opts.VendorName
	}
	if opts.PaymentType != "" {
		filter["payment_type"] = string(opts.PaymentType)
	}
	if opts.Search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(opts.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"_id": re},
			bson.M{"vendor_name": re},
		}
	}
	if opts.SKU != "" {
		filter["lines.product_sku"] = opts.SKU
	}

	amount := bson.M{}
	if opts.MinAmount != nil {
		amount["$gte"] = opts.MinAmount.Amount
	}
	if opts.MaxAmount != nil {
		amount["$lte"] = opts.MaxAmount.Amount
	}
	if len(amount) > 0 {
		filter["total_amount"] = amount
	}

	created := bson.M{}
	if !opts.CreatedFrom.IsZero() {
		created["$gte"] = opts.CreatedFrom
	}
	if !opts.CreatedTo.IsZero() {
		created["$lte"] = opts.CreatedTo
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	pageOpts(findOpts, opts.Offset, opts.Limit)

	cur, err := s.bills().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list bills: %w", err)
	}
	var models []billModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list bills: %w", err)
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
	var m billModel
	err := s.bills().FindOneAndUpdate(ctx,
		bson.M{"_id": number, "payment_type": string(bill.PaymentDue)},
		bson.M{"$set": bson.M{"payment_type": string(bill.PaymentPaid)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		return fromBillModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, fmt.Errorf("stockledger/mongo: mark bill paid: %w", err)
	}

	n, err := s.bills().CountDocuments(ctx, bson.M{"_id": number})
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: mark bill paid: %w", err)
	}
	if n == 0 {
		return nil, stockledger.ErrBillNotFound
	}
	return nil, stockledger.ErrInvalidTransition
}

// ==================== Transactions ====================

// RunInTx runs fn in a session transaction. The driver retries fn on
// transient errors such as write conflicts.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("stockledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		if err := fn(ctx, &tx{s: s}); err != nil {
			return nil, err
		}
		return nil, ctx.Err()
	})
	return err
}

// tx issues every operation with the session context handed to fn.
type tx struct {
	s *Store
}

func (t *tx) TryDecrement(ctx context.Context, sku string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, stockledger.ErrInvalidQuantity
	}

	var m productModel
	err := t.s.products().FindOneAndUpdate(ctx,
		bson.M{"_id": sku, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		return m.Stock, nil
	}
	if !isNoDocuments(err) {
		return 0, err
	}

	err = t.s.products().FindOne(ctx, bson.M{"_id": sku},
		options.FindOne().SetProjection(bson.M{"stock": 1}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, stockledger.ErrProductNotFound
		}
		return 0, err
	}
	return m.Stock, stockledger.ErrInsufficientStock
}

func (t *tx) BillExists(ctx context.Context, number string) (bool, error) {
	n, err := t.s.bills().CountDocuments(ctx, bson.M{"_id": number}, options.Count().SetLimit(1))
	return n > 0, err
}

func (t *tx) InsertBill(ctx context.Context, b *bill.Bill) error {
	_, err := t.s.bills().InsertOne(ctx, toBillModel(b))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockledger.ErrDuplicateBillNumber
		}
		return fmt.Errorf("stockledger/mongo: insert bill: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

func pageOpts(o *options.FindOptionsBuilder, offset, limit int) {
	if limit > 0 {
		o.SetLimit(int64(limit))
	}
	if offset > 0 {
		o.SetSkip(int64(offset))
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all stockledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colProducts: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "expiry_date", Value: 1}}},
		},
		colBills: {
			{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "vendor_name", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "payment_type", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "lines.product_sku", Value: 1}}},
		},
	}
}
