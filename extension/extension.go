// Package extension provides the Forge extension adapter for stockledger.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.stockledger" or
// "stockledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/billno"
	"github.com/xraph/stockledger/discount"
	eventhook "github.com/xraph/stockledger/event_hook"
	"github.com/xraph/stockledger/observability"
	"github.com/xraph/stockledger/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "stockledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Inventory stock ledger and billing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts stockledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *stockledger.Ledger
	store      store.Store
	ledgerOpts []stockledger.Option
}

// New creates a new stockledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *stockledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration, opens the
// store, builds the engine and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := openStore(context.Background(), e.config.Store)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}
	e.engine = stockledger.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*stockledger.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("stockledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("stockledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs stockledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]stockledger.Option, error) {
	cfg := e.config
	opts := make([]stockledger.Option, 0, len(e.ledgerOpts)+8)

	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		stockledger.WithDiscountPolicy(policy),
		stockledger.WithBillNumberAttempts(cfg.BillNumberAttempts),
		stockledger.WithConflictBackoff(cfg.ConflictBackoff),
		stockledger.WithRiskThreshold(cfg.RiskThreshold),
		stockledger.WithPluginTimeout(cfg.PluginTimeout),
	)

	switch cfg.BillNumbers {
	case "", BillNumbersTypeID:
		opts = append(opts, stockledger.WithBillNumberGenerator(billno.TypeID{}))
	case BillNumbersTimestamped:
		opts = append(opts, stockledger.WithBillNumberGenerator(billno.NewTimestamped()))
	default:
		return nil, fmt.Errorf("stockledger: unknown bill number format %q", cfg.BillNumbers)
	}

	if cfg.ExpirySweepSchedule != "" {
		opts = append(opts, stockledger.WithExpirySweep(cfg.ExpirySweepSchedule))
	}
	if cfg.Metrics {
		factory := observability.NewPrometheusFactory(prometheus.DefaultRegisterer)
		opts = append(opts, stockledger.WithPlugin(observability.NewMetricsExtension(factory)))
	}
	if len(cfg.Events.Brokers) > 0 {
		w := eventhook.NewKafkaWriter(cfg.Events.Brokers, cfg.Events.Topic)
		opts = append(opts, stockledger.WithPlugin(eventhook.New(w)))
	}

	// Pass-through options win over config.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

func buildPolicy(cfg Config) (*discount.Policy, error) {
	var curve discount.Curve
	switch cfg.DiscountCurve {
	case "", CurveLinear:
		curve = discount.Linear{
			WindowDays: cfg.DiscountWindowDays,
			Max:        decimal.NewFromInt(cfg.MaxDiscountPercent),
		}
	case CurveClearance:
		curve = discount.ClearanceTiers()
	default:
		return nil, fmt.Errorf("stockledger: unknown discount curve %q", cfg.DiscountCurve)
	}
	p, err := discount.New(cfg.DiscountWindowDays, curve)
	if err != nil {
		return nil, fmt.Errorf("stockledger: discount policy: %w", err)
	}
	return p, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("stockledger: configuration is required but not found in config files; " +
				"ensure 'extensions.stockledger' or 'stockledger' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("stockledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.Store.Driver),
		forge.F("bill_numbers", e.config.BillNumbers),
		forge.F("discount_window_days", e.config.DiscountWindowDays),
		forge.F("discount_curve", e.config.DiscountCurve),
		forge.F("expiry_sweep_schedule", e.config.ExpirySweepSchedule),
		forge.F("metrics", e.config.Metrics),
		forge.F("event_brokers", len(e.config.Events.Brokers)),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.stockledger", "stockledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("stockledger: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("stockledger: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.BillNumbers == "" {
		cfg.BillNumbers = defaults.BillNumbers
	}
	if cfg.BillNumberAttempts == 0 {
		cfg.BillNumberAttempts = defaults.BillNumberAttempts
	}
	if cfg.ConflictBackoff == 0 {
		cfg.ConflictBackoff = defaults.ConflictBackoff
	}
	if cfg.DiscountWindowDays == 0 {
		cfg.DiscountWindowDays = defaults.DiscountWindowDays
	}
	if cfg.DiscountCurve == "" {
		cfg.DiscountCurve = defaults.DiscountCurve
	}
	if cfg.MaxDiscountPercent == 0 {
		cfg.MaxDiscountPercent = defaults.MaxDiscountPercent
	}
	if cfg.RiskThreshold == 0 {
		cfg.RiskThreshold = defaults.RiskThreshold
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and true
// bool flags always apply.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.Metrics {
		yamlConfig.Metrics = true
	}

	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store = programmaticConfig.Store
	}
	if yamlConfig.BillNumbers == "" {
		yamlConfig.BillNumbers = programmaticConfig.BillNumbers
	}
	if yamlConfig.BillNumberAttempts == 0 {
		yamlConfig.BillNumberAttempts = programmaticConfig.BillNumberAttempts
	}
	if yamlConfig.ConflictBackoff == 0 {
		yamlConfig.ConflictBackoff = programmaticConfig.ConflictBackoff
	}
	if yamlConfig.DiscountWindowDays == 0 {
		yamlConfig.DiscountWindowDays = programmaticConfig.DiscountWindowDays
	}
	if yamlConfig.DiscountCurve == "" {
		yamlConfig.DiscountCurve = programmaticConfig.DiscountCurve
	}
	if yamlConfig.MaxDiscountPercent == 0 {
		yamlConfig.MaxDiscountPercent = programmaticConfig.MaxDiscountPercent
	}
	if yamlConfig.RiskThreshold == 0 {
		yamlConfig.RiskThreshold = programmaticConfig.RiskThreshold
	}
	if yamlConfig.ExpirySweepSchedule == "" {
		yamlConfig.ExpirySweepSchedule = programmaticConfig.ExpirySweepSchedule
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if len(yamlConfig.Events.Brokers) == 0 {
		yamlConfig.Events = programmaticConfig.Events
	}

	return mergeWithDefaults(yamlConfig)
}
