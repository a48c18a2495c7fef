package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		Store:              StoreConfig{Driver: DriverSQLite, DSN: "/var/lib/stock.db"},
		DiscountWindowDays: 14,
	}
	programmatic := Config{
		DisableMigrate:      true,
		Store:               StoreConfig{Driver: DriverRedis},
		DiscountWindowDays:  45,
		ExpirySweepSchedule: "@hourly",
		Events:              EventsConfig{Brokers: []string{"kafka:9092"}},
	}

	got := mergeConfigurations(yaml, programmatic)

	if !got.DisableMigrate {
		t.Error("DisableMigrate: programmatic true should apply")
	}
	if got.Store.Driver != DriverSQLite || got.Store.DSN != "/var/lib/stock.db" {
		t.Errorf("Store: yaml should win, got %+v", got.Store)
	}
	if got.DiscountWindowDays != 14 {
		t.Errorf("DiscountWindowDays: got %d, want 14", got.DiscountWindowDays)
	}
	if got.ExpirySweepSchedule != "@hourly" {
		t.Errorf("ExpirySweepSchedule: got %q", got.ExpirySweepSchedule)
	}
	if len(got.Events.Brokers) != 1 {
		t.Errorf("Events: got %+v", got.Events)
	}
	if got.BillNumberAttempts != 5 || got.ConflictBackoff != 10*time.Millisecond || got.PluginTimeout != 5*time.Second {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestBuildPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		days    int
		want    string
		wantErr bool
	}{
		{"default linear", mergeWithDefaults(Config{}), 15, "25", false},
		{"custom cap", mergeWithDefaults(Config{MaxDiscountPercent: 40, DiscountWindowDays: 10}), 5, "20", false},
		{"clearance", mergeWithDefaults(Config{DiscountCurve: CurveClearance}), 1, "70", false},
		{"unknown curve", mergeWithDefaults(Config{DiscountCurve: "steep"}), 0, "", true},
		{"cap out of range", mergeWithDefaults(Config{MaxDiscountPercent: 100}), 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPolicy(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildPolicy: %v", err)
			}
			if got := p.SuggestedPercent(tt.days); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("SuggestedPercent(%d): got %s, want %s", tt.days, got, tt.want)
			}
		})
	}
}

func TestBuildLedgerOptsRejectsUnknownBillNumbers(t *testing.T) {
	e := New(WithConfig(mergeWithDefaults(Config{BillNumbers: "uuid"})))
	if _, err := e.buildLedgerOpts(); err == nil {
		t.Fatal("expected error for unknown bill number format")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{"memory", StoreConfig{Driver: DriverMemory}, false},
		{"default", StoreConfig{}, false},
		{"sqlite", StoreConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "stock.db")}, false},
		{"postgres without dsn", StoreConfig{Driver: DriverPostgres}, true},
		{"unknown", StoreConfig{Driver: "cassandra"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := openStore(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer s.Close()
			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}
