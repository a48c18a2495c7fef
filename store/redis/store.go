// Package redis implements store.Store on Redis.
//
// Redis has no multi-key rollback, so RunInTx is a saga: every step is an
// atomic Lua script and the transaction keeps a compensation log. When fn
// fails the log is replayed in reverse; if that replay fails the error
// wraps stockledger.ErrCompensationFailed. Readers may briefly observe a
// sale that is about to be compensated.
//
// Each transaction carries a saga token. Writes are tagged with it so a
// script replayed after a lost reply applies once, and undo steps are
// recorded before the write is sent so they run whether or not the reply
// arrived.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/id"
	"github.com/xraph/stockledger/product"
	ledgerstore "github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/types"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "stockledger:"

// sagaTTL bounds how long a decrement marker outlives its transaction.
const sagaTTL = time.Hour

// compile-time interface checks
var (
	_ ledgerstore.Store = (*Store)(nil)
	_ ledgerstore.Tx    = (*tx)(nil)
)

// createProductScript writes the product document, its stock counter and
// its index entry only if the SKU is new.
var createProductScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], 0, ARGV[3])
return 1
`)

// decrementScript returns {status, stock}: 1 decremented, 0 insufficient,
// -1 unknown SKU. KEYS[2] marks the step so a replay does not decrement
// twice.
var decrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {1, tonumber(redis.call('GET', KEYS[1]))}
end
local stock = redis.call('GET', KEYS[1])
if not stock then
	return {-1, 0}
end
stock = tonumber(stock)
local qty = tonumber(ARGV[1])
if stock < qty then
	return {0, stock}
end
local left = redis.call('DECRBY', KEYS[1], qty)
redis.call('SET', KEYS[2], qty, 'EX', ARGV[2])
return {1, left}
`)

// restoreStockScript undoes a decrement only if its marker exists.
var restoreStockScript = redis.NewScript(`
local qty = redis.call('GET', KEYS[2])
if not qty then
	return 0
end
redis.call('DEL', KEYS[2])
redis.call('INCRBY', KEYS[1], qty)
return 1
`)

// insertBillScript returns 1 when the bill is written by this saga (now or
// on an earlier delivery) and 0 when the number belongs to another bill.
var insertBillScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	if redis.call('HGET', KEYS[1], 'saga') == ARGV[5] then
		return 1
	end
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'payment_type', ARGV[2], 'saga', ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
return 1
`)

// releaseBillScript removes a bill only if this saga wrote it.
var releaseBillScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'saga') ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`)

// markPaidScript returns 1 on success, 0 for an unknown bill and -1 when
// the bill is not due.
var markPaidScript = redis.NewScript(`
local pt = redis.call('HGET', KEYS[1], 'payment_type')
if not pt then
	return 0
end
if pt ~= ARGV[1] then
	return -1
end
redis.call('HSET', KEYS[1], 'payment_type', ARGV[2])
return 1
`)

// Store implements store.Store using go-redis.
type Store struct {
	client *redis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store on client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open parses a redis:// URL, connects and verifies the connection.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("stockledger/redis: parse url: %w", err)
	}
	// A replayed script must not be mistaken for a fresh one.
	o.MaxRetries = -1

	s := New(redis.NewClient(o), opts...)
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("stockledger/redis: ping: %w", err)
	}
	return s, nil
}

// Client returns the underlying client for direct access.
func (s *Store) Client() *redis.Client { return s.client }

// Migrate loads the Lua scripts so later calls can use EVALSHA.
func (s *Store) Migrate(ctx context.Context) error {
	for _, script := range []*redis.Script{
		createProductScript, decrementScript, restoreStockScript,
		insertBillScript, releaseBillScript, markPaidScript,
	} {
		if err := script.Load(ctx, s.client).Err(); err != nil {
			return fmt.Errorf("stockledger/redis: load script: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ==================== Keys ====================

func (s *Store) productKey(sku string) string { return s.prefix + "product:" + sku }
func (s *Store) stockKey(sku string) string   { return s.prefix + "stock:" + sku }
func (s *Store) productIndex() string         { return s.prefix + "products" }
func (s *Store) billKey(number string) string { return s.prefix + "bill:" + number }
func (s *Store) billIndex() string            { return s.prefix + "bills" }
func (s *Store) sagaKey(token string, step int) string {
	return s.prefix + "saga:" + token + ":" + strconv.Itoa(step)
}

// ==================== Product Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	data, err := json.Marshal(toProductModel(p))
	if err != nil {
		return fmt.Errorf("stockledger/redis: encode product: %w", err)
	}
	created, err := createProductScript.Run(ctx, s.client,
		[]string{s.productKey(p.SKU), s.stockKey(p.SKU), s.productIndex()},
		data, p.Stock, p.SKU,
	).Int()
	if err != nil {
		return fmt.Errorf("stockledger/redis: create product: %w", err)
	}
	if created == 0 {
		return stockledger.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, sku string) (*product.Product, error) {
	products, err := s.loadProducts(ctx, []string{sku})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, stockledger.ErrProductNotFound
	}
	return products[0], nil
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	// Equal scores keep the index in lexicographic SKU order.
	skus, err := s.client.ZRange(ctx, s.productIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("stockledger/redis: list products: %w", err)
	}
	all, err := s.loadProducts(ctx, skus)
	if err != nil {
		return nil, err
	}

	result := make([]*product.Product, 0, len(all))
	for _, p := range all {
		if opts.Match(p) {
			result = append(result, p)
		}
	}
	return types.Page(result, opts.Offset, opts.Limit), nil
}

// loadProducts fetches documents and stock counters in one round trip,
// skipping SKUs that do not exist.
func (s *Store) loadProducts(ctx context.Context, skus []string) ([]*product.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	docs := make([]*redis.StringCmd, len(skus))
	stocks := make([]*redis.StringCmd, len(skus))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, sku := range skus {
			docs[i] = pipe.Get(ctx, s.productKey(sku))
			stocks[i] = pipe.Get(ctx, s.stockKey(sku))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("stockledger/redis: load products: %w", err)
	}

	result := make([]*product.Product, 0, len(skus))
	for i := range skus {
		data, err := docs[i].Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stockledger/redis: load product: %w", err)
		}
		stock, err := stocks[i].Int64()
		if err != nil {
			return nil, fmt.Errorf("stockledger/redis: load stock: %w", err)
		}
		var m productModel
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("stockledger/redis: decode product: %w", err)
		}
		result = append(result, fromProductModel(&m, stock))
	}
	return result, nil
}

// ==================== Bill Store ====================

func (s *Store) GetBill(ctx context.Context, number string) (*bill.Bill, error) {
	bills, err := s.loadBills(ctx, []string{number})
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, stockledger.ErrBillNotFound
	}
	return bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !opts.CreatedFrom.IsZero() {
		rng.Min = strconv.FormatInt(opts.CreatedFrom.UnixMilli(), 10)
	}
	if !opts.CreatedTo.IsZero() {
		rng.Max = strconv.FormatInt(opts.CreatedTo.UnixMilli(), 10)
	}
	numbers, err := s.client.ZRangeByScore(ctx, s.billIndex(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("stockledger/redis: list bills: %w", err)
	}
	bills, err := s.loadBills(ctx, numbers)
	if err != nil {
		return nil, err
	}
	return opts.Apply(bills), nil
}

func (s *Store) loadBills(ctx context.Context, numbers []string) ([]*bill.Bill, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(numbers))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, n := range numbers {
			cmds[i] = pipe.HGetAll(ctx, s.billKey(n))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stockledger/redis: load bills: %w", err)
	}

	result := make([]*bill.Bill, 0, len(numbers))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		var m billModel
		if err := json.Unmarshal([]byte(fields["data"]), &m); err != nil {
			return nil, fmt.Errorf("stockledger/redis: decode bill: %w", err)
		}
		b, err := fromBillModel(&m, fields["payment_type"])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *Store) MarkBillPaid(ctx context.Context, number string) (*bill.Bill, error) {
	res, err := markPaidScript.Run(ctx, s.client,
		[]string{s.billKey(number)},
		string(bill.PaymentDue), string(bill.PaymentPaid),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("stockledger/redis: mark bill paid: %w", err)
	}
	switch res {
	case 0:
		return nil, stockledger.ErrBillNotFound
	case -1:
		return nil, stockledger.ErrInvalidTransition
	}
	return s.GetBill(ctx, number)
}

// ==================== Transactions ====================

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s, token: id.NewSaleID().String()}
	err := fn(ctx, t)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		return nil
	}
	if cerr := t.compensate(context.WithoutCancel(ctx)); cerr != nil {
		return errors.Join(err, fmt.Errorf("%w: %w", stockledger.ErrCompensationFailed, cerr))
	}
	return err
}

// tx records an undo step for every effect it sends.
type tx struct {
	s     *Store
	token string
	steps int
	undo  []func(ctx context.Context) error
}

func (t *tx) TryDecrement(ctx context.Context, sku string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, stockledger.ErrInvalidQuantity
	}
	t.steps++
	keys := []string{t.s.stockKey(sku), t.s.sagaKey(t.token, t.steps)}
	t.undo = append(t.undo, func(ctx context.Context) error {
		return restoreStockScript.Run(ctx, t.s.client, keys).Err()
	})

	res, err := decrementScript.Run(ctx, t.s.client, keys, qty, int64(sagaTTL/time.Second)).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("stockledger/redis: decrement: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("stockledger/redis: decrement: unexpected reply %v", res)
	}
	switch res[0] {
	case -1:
		return 0, stockledger.ErrProductNotFound
	case 0:
		return res[1], stockledger.ErrInsufficientStock
	}
	return res[1], nil
}

func (t *tx) BillExists(ctx context.Context, number string) (bool, error) {
	n, err := t.s.client.Exists(ctx, t.s.billKey(number)).Result()
	return n > 0, err
}

func (t *tx) InsertBill(ctx context.Context, b *bill.Bill) error {
	data, err := json.Marshal(toBillModel(b))
	if err != nil {
		return fmt.Errorf("stockledger/redis: encode bill: %w", err)
	}
	keys := []string{t.s.billKey(b.Number), t.s.billIndex()}
	number := b.Number
	t.undo = append(t.undo, func(ctx context.Context) error {
		return releaseBillScript.Run(ctx, t.s.client, keys, t.token, number).Err()
	})

	inserted, err := insertBillScript.Run(ctx, t.s.client, keys,
		data, string(b.PaymentType), b.CreatedAt.UnixMilli(), b.Number, t.token,
	).Int()
	if err != nil {
		return fmt.Errorf("stockledger/redis: insert bill: %w", err)
	}
	if inserted == 0 {
		return stockledger.ErrDuplicateBillNumber
	}
	return nil
}

// compensate replays the undo log in reverse. It keeps going after a
// failed step so as much as possible is restored.
func (t *tx) compensate(ctx context.Context) error {
	var errs []error
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.undo = nil
	return errors.Join(errs...)
}
