// Package testutil provides shared test helpers: an in-memory database with
// migrations applied and builders for raw owner and transaction tables.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Decisions      []model.ReviewDecision
	OnDisk         bool
	SkipMigrations bool
}

// SetupTestDB creates a new in-memory test database with migrations applied.
// Cleanup is registered on t.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
// OnDisk places the database under t.TempDir(), which checkpoints require.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	path := ":memory:"
	if opts.OnDisk {
		path = filepath.Join(t.TempDir(), "unitlink.db")
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if len(opts.Decisions) > 0 {
		if _, err := store.UpsertDecisions(ctx, opts.Decisions); err != nil {
			t.Fatalf("failed to seed decisions: %v", err)
		}
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustDecide stores decisions or fails the test.
func (db *TestDB) MustDecide(decisions ...model.ReviewDecision) {
	db.t.Helper()
	if _, err := db.Storage.UpsertDecisions(context.Background(), decisions); err != nil {
		db.t.Fatalf("failed to store decisions: %v", err)
	}
}
