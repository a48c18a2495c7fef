package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/store/sqlite"
	"github.com/xraph/stockledger/store/storetest"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "stockledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
