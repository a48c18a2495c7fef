package extension

import (
	"time"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/plugin"
	"github.com/xraph/stockledger/store"
)

// Option configures the stockledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. It takes precedence over the
// configured driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a stockledger.Option through to the underlying engine.
func WithLedgerOption(opt stockledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, stockledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate skips engine start-up when the extension starts.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDriver selects the store backend and its connection string.
func WithDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.Store.Driver = driver
		e.config.Store.DSN = dsn
	}
}

// WithExpirySweep schedules the periodic expiry sweep.
func WithExpirySweep(schedule string) Option {
	return func(e *Extension) { e.config.ExpirySweepSchedule = schedule }
}

// WithConflictBackoff sets the pause before retrying a sale that lost a stock race.
func WithConflictBackoff(d time.Duration) Option {
	return func(e *Extension) { e.config.ConflictBackoff = d }
}

// WithMetrics registers Prometheus metrics.
func WithMetrics() Option {
	return func(e *Extension) { e.config.Metrics = true }
}

// WithEvents streams engine events to topic on brokers.
func WithEvents(brokers []string, topic string) Option {
	return func(e *Extension) {
		e.config.Events = EventsConfig{Brokers: brokers, Topic: topic}
	}
}
