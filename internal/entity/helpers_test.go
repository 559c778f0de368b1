package entity

import (
	"context"
	"testing"

	"github.com/nerrad567/pihome/internal/infrastructure/config"
	"github.com/nerrad567/pihome/internal/infrastructure/database"
	"github.com/nerrad567/pihome/migrations"
)

// setupTestStore opens a migrated in-memory database.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(db.DB)
}

func mustCreate(t *testing.T, s Store, e Entity) {
	t.Helper()
	if err := s.Create(context.Background(), e); err != nil {
		t.Fatalf("Create(%s): %v", e.Kind(), err)
	}
}
