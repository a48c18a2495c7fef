package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/product"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onBillGenerated     []OnBillGenerated
	onSaleRejected      []OnSaleRejected
	onSaleConflict      []OnSaleConflict
	onTransactionFailed []OnTransactionFailed
	onBillPaid          []OnBillPaid
	onLowStock          []OnLowStock
	onProductExpiring   []OnProductExpiring
	onProductExpired    []OnProductExpired
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnBillGenerated); ok {
		r.onBillGenerated = append(r.onBillGenerated, v)
	}
	if v, ok := p.(OnSaleRejected); ok {
		r.onSaleRejected = append(r.onSaleRejected, v)
	}
	if v, ok := p.(OnSaleConflict); ok {
		r.onSaleConflict = append(r.onSaleConflict, v)
	}
	if v, ok := p.(OnTransactionFailed); ok {
		r.onTransactionFailed = append(r.onTransactionFailed, v)
	}
	if v, ok := p.(OnBillPaid); ok {
		r.onBillPaid = append(r.onBillPaid, v)
	}
	if v, ok := p.(OnLowStock); ok {
		r.onLowStock = append(r.onLowStock, v)
	}
	if v, ok := p.(OnProductExpiring); ok {
		r.onProductExpiring = append(r.onProductExpiring, v)
	}
	if v, ok := p.(OnProductExpired); ok {
		r.onProductExpired = append(r.onProductExpired, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)
	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnBillGenerated", reflect.TypeOf((*OnBillGenerated)(nil)).Elem()},
	{"OnSaleRejected", reflect.TypeOf((*OnSaleRejected)(nil)).Elem()},
	{"OnSaleConflict", reflect.TypeOf((*OnSaleConflict)(nil)).Elem()},
	{"OnTransactionFailed", reflect.TypeOf((*OnTransactionFailed)(nil)).Elem()},
	{"OnBillPaid", reflect.TypeOf((*OnBillPaid)(nil)).Elem()},
	{"OnLowStock", reflect.TypeOf((*OnLowStock)(nil)).Elem()},
	{"OnProductExpiring", reflect.TypeOf((*OnProductExpiring)(nil)).Elem()},
	{"OnProductExpired", reflect.TypeOf((*OnProductExpired)(nil)).Elem()},
}

// implementedInterfaces returns the hook interfaces p implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error { return p.OnInit(ctx, l) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), func() error { return p.OnShutdown(ctx) })
	}
}

// EmitBillGenerated emits a bill generated event.
func (r *Registry) EmitBillGenerated(ctx context.Context, b *bill.Bill) {
	r.mu.RLock()
	plugins := r.onBillGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBillGenerated", p.Name(), func() error { return p.OnBillGenerated(ctx, b) })
	}
}

// EmitSaleRejected emits a sale rejected event.
func (r *Registry) EmitSaleRejected(ctx context.Context, vendorName string, reason error) {
	r.mu.RLock()
	plugins := r.onSaleRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnSaleRejected", p.Name(), func() error { return p.OnSaleRejected(ctx, vendorName, reason) })
	}
}

// EmitSaleConflict emits a sale conflict event.
func (r *Registry) EmitSaleConflict(ctx context.Context, vendorName string, attempt int, cause error) {
	r.mu.RLock()
	plugins := r.onSaleConflict
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnSaleConflict", p.Name(), func() error { return p.OnSaleConflict(ctx, vendorName, attempt, cause) })
	}
}

// EmitTransactionFailed emits a transaction failed event.
func (r *Registry) EmitTransactionFailed(ctx context.Context, vendorName string, cause error) {
	r.mu.RLock()
	plugins := r.onTransactionFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTransactionFailed", p.Name(), func() error { return p.OnTransactionFailed(ctx, vendorName, cause) })
	}
}

// EmitBillPaid emits a bill paid event.
func (r *Registry) EmitBillPaid(ctx context.Context, b *bill.Bill) {
	r.mu.RLock()
	plugins := r.onBillPaid
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBillPaid", p.Name(), func() error { return p.OnBillPaid(ctx, b) })
	}
}

// EmitLowStock emits a low stock event.
func (r *Registry) EmitLowStock(ctx context.Context, prod *product.Product) {
	r.mu.RLock()
	plugins := r.onLowStock
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnLowStock", p.Name(), func() error { return p.OnLowStock(ctx, prod) })
	}
}

// EmitProductExpiring emits a product expiring event.
func (r *Registry) EmitProductExpiring(ctx context.Context, prod *product.Product, eval discount.Evaluation) {
	r.mu.RLock()
	plugins := r.onProductExpiring
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnProductExpiring", p.Name(), func() error { return p.OnProductExpiring(ctx, prod, eval) })
	}
}

// EmitProductExpired emits a product expired event.
func (r *Registry) EmitProductExpired(ctx context.Context, prod *product.Product, eval discount.Evaluation) {
	r.mu.RLock()
	plugins := r.onProductExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnProductExpired", p.Name(), func() error { return p.OnProductExpired(ctx, prod, eval) })
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, pluginName string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the sale pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
