package testutil

import (
	"testing"

	"github.com/livinlefevreloca/outreach/internal/db"
	_ "github.com/mattn/go-sqlite3"
)

// NewDB opens a migrated in-memory database closed at test cleanup
func NewDB(t testing.TB) *db.DB {
	t.Helper()

	database, err := db.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	database.SetMaxOpenConns(1)

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})
	return database
}
