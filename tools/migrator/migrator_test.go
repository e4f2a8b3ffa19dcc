package migrator

import (
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// A single connection keeps the in-memory database alive across queries
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("failed to check if table exists: %v", err)
	}
	return true
}

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func validFS() fstest.MapFS {
	return fstest.MapFS{
		"001_create_profiles.sql": file("-- +migrate Up\nCREATE TABLE profiles (id TEXT PRIMARY KEY);"),
		"002_create_runs.sql":     file("-- +migrate Up\n-- +migrate Depends: 1\nCREATE TABLE runs (\n  id TEXT PRIMARY KEY,\n  profile_id TEXT REFERENCES profiles(id)\n);"),
		"README.md":               file("not a migration"),
	}
}

// =============================================================================
// Parser Tests
// =============================================================================

func TestParseMigration_Valid(t *testing.T) {
	migration, err := ParseMigration("001_create_profiles.sql", []byte("-- leading comment\n-- +migrate Up\nCREATE TABLE profiles (id TEXT);\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if migration.Version != 1 {
		t.Errorf("expected version 1, got %d", migration.Version)
	}
	if migration.Name != "create_profiles" {
		t.Errorf("expected name 'create_profiles', got '%s'", migration.Name)
	}
	if migration.UpSQL != "CREATE TABLE profiles (id TEXT);" {
		t.Errorf("unexpected UpSQL: %q", migration.UpSQL)
	}
	if len(migration.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %v", migration.Dependencies)
	}
}

func TestParseMigration_MultipleDependencies(t *testing.T) {
	migration, err := ParseMigration("003_add_index.sql", []byte("-- +migrate Up\n-- +migrate Depends: 1 2\nCREATE INDEX idx ON profiles(id);"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(migration.Dependencies) != 2 || migration.Dependencies[0] != 1 || migration.Dependencies[1] != 2 {
		t.Errorf("expected dependencies [1 2], got %v", migration.Dependencies)
	}
	if strings.Contains(migration.UpSQL, "Depends") {
		t.Errorf("dependency directive leaked into SQL: %q", migration.UpSQL)
	}
}

func TestParseMigration_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		errPart  string
	}{
		{"bad filename", "create.sql", "-- +migrate Up\nSELECT 1;", "invalid migration filename"},
		{"short version", "1_short.sql", "-- +migrate Up\nSELECT 1;", "invalid migration filename"},
		{"missing up marker", "001_x.sql", "CREATE TABLE x (id INTEGER);", "missing '-- +migrate Up'"},
		{"empty sql", "001_x.sql", "-- +migrate Up\n\n-- nothing here", "no SQL statements"},
		{"empty depends", "002_x.sql", "-- +migrate Up\n-- +migrate Depends:\nSELECT 1;", "empty dependency list"},
		{"non numeric depends", "002_x.sql", "-- +migrate Up\n-- +migrate Depends: one\nSELECT 1;", "invalid dependency version"},
		{"forward depends", "002_x.sql", "-- +migrate Up\n-- +migrate Depends: 3\nSELECT 1;", "dependencies must be older"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMigration(tt.filename, []byte(tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("expected error containing %q, got %v", tt.errPart, err)
			}
		})
	}
}

// =============================================================================
// Loader Tests
// =============================================================================

func TestLoadMigrations_SortedAndFiltered(t *testing.T) {
	migrations, err := LoadMigrations(validFS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("expected versions [1 2], got [%d %d]", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_Gap(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": file("-- +migrate Up\nCREATE TABLE a (id INTEGER);"),
		"003_c.sql": file("-- +migrate Up\nCREATE TABLE c (id INTEGER);"),
	}

	_, err := LoadMigrations(fsys)
	if err == nil || !strings.Contains(err.Error(), "gap in migration versions") {
		t.Errorf("expected gap error, got %v", err)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": file("-- +migrate Up\nCREATE TABLE a (id INTEGER);"),
		"001_b.sql": file("-- +migrate Up\nCREATE TABLE b (id INTEGER);"),
	}

	_, err := LoadMigrations(fsys)
	if err == nil || !strings.Contains(err.Error(), "duplicate migration version") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

// =============================================================================
// Runner Tests
// =============================================================================

func TestRunMigrations_AppliesAll(t *testing.T) {
	db := setupTestDB(t)

	if err := RunMigrations(db, validFS()); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	for _, table := range []string{"schema_migrations", "profiles", "runs"} {
		if !tableExists(t, db, table) {
			t.Errorf("expected table %s to exist", table)
		}
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := RunMigrations(db, validFS()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := RunMigrations(db, validFS()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	applied, err := GetAppliedMigrations(db)
	if err != nil {
		t.Fatalf("GetAppliedMigrations failed: %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 applied migrations, got %v", applied)
	}
}

func TestRunMigrations_Incremental(t *testing.T) {
	db := setupTestDB(t)

	first := fstest.MapFS{"001_create_profiles.sql": validFS()["001_create_profiles.sql"]}
	if err := RunMigrations(db, first); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if tableExists(t, db, "runs") {
		t.Fatal("runs table should not exist yet")
	}

	if err := RunMigrations(db, validFS()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !tableExists(t, db, "runs") {
		t.Error("expected runs table after second run")
	}
}

func TestRunMigrations_FailedMigrationRollsBack(t *testing.T) {
	db := setupTestDB(t)

	fsys := fstest.MapFS{
		"001_ok.sql":     file("-- +migrate Up\nCREATE TABLE ok (id INTEGER);"),
		"002_broken.sql": file("-- +migrate Up\nCREATE TABLE broken (id INTEGER);\nTHIS IS NOT SQL;"),
	}

	err := RunMigrations(db, fsys)
	if err == nil {
		t.Fatal("expected error from broken migration")
	}

	if tableExists(t, db, "broken") {
		t.Error("broken migration should have been rolled back")
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after failure, got %d", version)
	}
}

func TestGetCurrentVersion_NoTable(t *testing.T) {
	db := setupTestDB(t)

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}

	applied, err := GetAppliedMigrations(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no applied migrations, got %v", applied)
	}
}
