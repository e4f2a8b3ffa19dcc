package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/tools/migrator"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations is the schema shipped with this package, rooted at the migration files
var Migrations fs.FS = mustSub(migrationFiles, "migrations")

// DB wraps sql.DB with additional context
type DB struct {
	*sql.DB
	driver string
	now    func() time.Time
}

// Tx wraps sql.Tx with additional context
type Tx struct {
	*sql.Tx
	db *DB
}

// Config holds database connection configuration
type Config struct {
	Driver          string        `toml:"driver" yaml:"driver"`
	DSN             string        `toml:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	SkipMigrations  bool          `toml:"skip_migrations" yaml:"skip_migrations"`
}

// Standard errors
var (
	ErrNotFound  = errors.New("db: not found")
	ErrDuplicate = errors.New("db: duplicate key")
)

// Open creates a new database connection
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s database", driver)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "enable foreign keys")
		}
	}

	return &DB{
		DB:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// OpenWithConfig creates a connection with custom configuration
func OpenWithConfig(config Config) (*DB, error) {
	db, err := Open(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	return db, nil
}

// Driver returns the database driver name
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies the embedded schema
func (db *DB) Migrate() error {
	return errors.Wrap(migrator.RunMigrations(db.DB, Migrations), "migrate")
}

// SchemaVersion reports the highest applied migration
func (db *DB) SchemaVersion() (int, error) {
	return migrator.GetCurrentVersion(db.DB)
}

// WithTransaction executes a function within a transaction
// Automatically commits on success, rolls back on error
func (db *DB) WithTransaction(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	tx := &Tx{Tx: sqlTx, db: db}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
