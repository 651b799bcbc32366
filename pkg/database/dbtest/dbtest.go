// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/garyjia/contract-approvals/pkg/database"
	"go.uber.org/zap"
)

// Open creates a migrated database in a temp directory that is closed with the test.
// A file is used instead of :memory: so every pooled connection sees the same data.
func Open(t testing.TB) *database.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
	}, logger)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.NewMigrator(db, logger).Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
