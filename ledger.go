package stockledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/billno"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/plugin"
	"github.com/xraph/stockledger/store"
)

const (
	// DefaultBillNumberAttempts bounds bill number generation per sale.
	DefaultBillNumberAttempts = 5

	// DefaultConflictBackoff is the pause before a sale that lost a race is
	// retried.
	DefaultConflictBackoff = 10 * time.Millisecond

	// maxSaleAttempts is the first attempt plus one retry.
	maxSaleAttempts = 2

	sweepTimeout = time.Minute
)

// Ledger is the stock and billing engine. It is safe for concurrent use.
type Ledger struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	validate *validator.Validate

	// Pricing and numbering
	policy             *discount.Policy
	billNumbers        billno.Generator
	billNumberAttempts int
	conflictBackoff    time.Duration
	riskThreshold      decimal.Decimal
	now                func() time.Time

	// Background expiry sweep
	sweepSchedule string
	mu            sync.Mutex
	cron          *cron.Cron
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:              s,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		validate:           validator.New(),
		policy:             discount.Default(),
		billNumbers:        billno.TypeID{},
		billNumberAttempts: DefaultBillNumberAttempts,
		conflictBackoff:    DefaultConflictBackoff,
		riskThreshold:      decimal.NewFromInt(discount.DefaultRiskThreshold),
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithClock replaces time.Now. Tests use it to pin expiry evaluation and
// bill timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithDiscountPolicy sets the expiry discount policy.
func WithDiscountPolicy(p *discount.Policy) Option {
	return func(l *Ledger) {
		if p != nil {
			l.policy = p
		}
	}
}

// WithBillNumberGenerator sets the bill number source. The default is
// billno.TypeID.
func WithBillNumberGenerator(g billno.Generator) Option {
	return func(l *Ledger) {
		if g != nil {
			l.billNumbers = g
		}
	}
}

// WithBillNumberAttempts sets how many numbers a sale may draw before it
// fails with ErrGenerationExhausted.
func WithBillNumberAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.billNumberAttempts = n
		}
	}
}

// WithConflictBackoff sets the pause before retrying a sale that lost a race.
func WithConflictBackoff(d time.Duration) Option {
	return func(l *Ledger) {
		if d >= 0 {
			l.conflictBackoff = d
		}
	}
}

// WithRiskThreshold sets the minimum risk score listed by ExpiryReport.
func WithRiskThreshold(score float64) Option {
	return func(l *Ledger) {
		l.riskThreshold = decimal.NewFromFloat(score)
	}
}

// WithExpirySweep runs SweepExpiry on a cron schedule between Start and Stop.
// Standard five-field specs and descriptors such as "@hourly" are accepted.
func WithExpirySweep(schedule string) Option {
	return func(l *Ledger) {
		l.sweepSchedule = schedule
	}
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Policy returns the active discount policy.
func (l *Ledger) Policy() *discount.Policy { return l.policy }

// Start migrates the store, initializes plugins and schedules the expiry
// sweep.
func (l *Ledger) Start(ctx context.Context) error {
	// Migrate database
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	// Initialize plugins
	l.plugins.EmitInit(ctx, l)

	if l.sweepSchedule != "" {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := c.AddFunc(l.sweepSchedule, l.scheduledSweep); err != nil {
			return fmt.Errorf("stockledger: schedule expiry sweep %q: %w", l.sweepSchedule, err)
		}
		c.Start()

		l.mu.Lock()
		l.cron = c
		l.mu.Unlock()
	}

	l.logger.Info("stockledger started",
		"discount_window_days", l.policy.WindowDays(),
		"bill_number_attempts", l.billNumberAttempts,
		"conflict_backoff", l.conflictBackoff,
		"expiry_sweep", l.sweepSchedule,
	)

	return nil
}

// Stop halts the sweep, shuts plugins down and closes the store.
func (l *Ledger) Stop() error {
	l.mu.Lock()
	c := l.cron
	l.cron = nil
	l.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

func (l *Ledger) scheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := l.SweepExpiry(ctx); err != nil {
		l.logger.Error("expiry sweep failed", "error", err)
	}
}

// validateStruct runs struct tag validation and converts the result into
// ValidationErrors.
func (l *Ledger) validateStruct(v any) error {
	err := l.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationError{Field: "request", Message: err.Error()}
	}

	var multi MultiError
	for _, fe := range fieldErrs {
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		multi.Add(ValidationError{Field: fe.Namespace(), Message: msg})
	}
	if len(multi.Errors) == 1 {
		return multi.Errors[0]
	}
	return multi.ErrOrNil()
}
