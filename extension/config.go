package extension

import "time"

// Config holds the stockledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.stockledger" or "stockledger" keys).
type Config struct {
	// DisableMigrate skips engine start-up (migrations, plugin init and the
	// expiry sweep) when the extension starts.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Store selects and configures the storage backend.
	Store StoreConfig `json:"store" mapstructure:"store" yaml:"store"`

	// BillNumbers is the bill number format: "typeid" (default) or "timestamped".
	BillNumbers string `json:"bill_numbers" mapstructure:"bill_numbers" yaml:"bill_numbers"`

	// BillNumberAttempts bounds how many numbers are tried before a sale
	// fails with a generation error (default: 5).
	BillNumberAttempts int `json:"bill_number_attempts" mapstructure:"bill_number_attempts" yaml:"bill_number_attempts"`

	// ConflictBackoff is the pause before a sale that lost a stock race is
	// retried (default: 10ms).
	ConflictBackoff time.Duration `json:"conflict_backoff" mapstructure:"conflict_backoff" yaml:"conflict_backoff"`

	// DiscountWindowDays is the EXPIRING window (default: 30).
	DiscountWindowDays int `json:"discount_window_days" mapstructure:"discount_window_days" yaml:"discount_window_days"`

	// DiscountCurve is "linear" (default) or "clearance".
	DiscountCurve string `json:"discount_curve" mapstructure:"discount_curve" yaml:"discount_curve"`

	// MaxDiscountPercent caps the linear curve (default: 50).
	MaxDiscountPercent int64 `json:"max_discount_percent" mapstructure:"max_discount_percent" yaml:"max_discount_percent"`

	// RiskThreshold is the score at which expiry reports flag a product
	// high risk (default: 60).
	RiskThreshold float64 `json:"risk_threshold" mapstructure:"risk_threshold" yaml:"risk_threshold"`

	// ExpirySweepSchedule is a cron spec for the periodic expiry sweep.
	// Empty disables the sweep.
	ExpirySweepSchedule string `json:"expiry_sweep_schedule" mapstructure:"expiry_sweep_schedule" yaml:"expiry_sweep_schedule"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// Metrics registers Prometheus counters on the default registerer.
	Metrics bool `json:"metrics" mapstructure:"metrics" yaml:"metrics"`

	// Events streams engine events to Kafka when brokers are set.
	Events EventsConfig `json:"events" mapstructure:"events" yaml:"events"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// StoreConfig selects a storage backend.
type StoreConfig struct {
	// Driver is one of memory (default), postgres, sqlite, mongo or redis.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the connection string: a postgres DSN, an SQLite path, a
	// mongodb:// URI or a redis:// URL.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// Database is the MongoDB database name (default: "stockledger").
	Database string `json:"database" mapstructure:"database" yaml:"database"`

	// KeyPrefix namespaces Redis keys (default: "stockledger:").
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix" yaml:"key_prefix"`

	// MaxOpenConns caps the postgres pool (default: 25).
	MaxOpenConns int `json:"max_open_conns" mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// EventsConfig configures the Kafka event publisher.
type EventsConfig struct {
	Brokers []string `json:"brokers" mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" mapstructure:"topic" yaml:"topic"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:              StoreConfig{Driver: DriverMemory},
		BillNumbers:        BillNumbersTypeID,
		BillNumberAttempts: 5,
		ConflictBackoff:    10 * time.Millisecond,
		DiscountWindowDays: 30,
		DiscountCurve:      CurveLinear,
		MaxDiscountPercent: 50,
		RiskThreshold:      60,
		PluginTimeout:      5 * time.Second,
	}
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

// Bill number formats.
const (
	BillNumbersTypeID      = "typeid"
	BillNumbersTimestamped = "timestamped"
)

// Discount curves.
const (
	CurveLinear    = "linear"
	CurveClearance = "clearance"
)
