package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu sqlite dialect
	_ "github.com/jackc/pgx/v5/stdlib"                  // pgx database/sql driver
	_ "modernc.org/sqlite"                              // sqlite database/sql driver

	"github.com/vortechron/nightwatch-testing/internal/config"
)

// Supported drivers
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// ErrUnsupportedDriver is returned for a driver other than pgx or sqlite.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// DB bundles the connection pool with its goqu dialect wrapper.
type DB struct {
	SQL         *sql.DB
	Goqu        *goqu.Database
	driver      string
	nativeSleep bool
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.SQL.Close()
}

// Open establishes a connection to the configured database and verifies it
// with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	dialect, err := goquDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// a single connection keeps writers from tripping over SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
			if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	logger.Info("database connection established",
		"driver", cfg.Driver,
		"native_sleep", cfg.NativeSleep)

	return &DB{
		SQL:         sqlDB,
		Goqu:        goqu.New(dialect, sqlDB),
		driver:      cfg.Driver,
		nativeSleep: cfg.NativeSleep,
	}, nil
}

func goquDialect(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
