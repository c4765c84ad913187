package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Config holds the connection parameters for the record store.
type Config struct {
	// Driver is one of sqlite, postgres, mysql or sqlserver. Empty means
	// infer from DSN, falling back to sqlite.
	Driver string
	// DSN is the driver-specific connection string. For sqlite an empty
	// DSN opens an in-memory database.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is the relational record store. It owns all persisted state: API
// key records and imported subprojects. A Store is safe for concurrent use.
type Store struct {
	db      *sqlx.DB
	dialect *dialect
}

// Open connects to the database described by cfg and makes sure the
// tables exist. The caller owns the returned Store and must Close it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := resolveDialect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	dsn, err := d.prepareDSN(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}

	if d.singleConn {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 && !d.singleConn {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db, dialect: d}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}
	return s, nil
}

// OpenFile opens (creating if needed) a SQLite store at dataDir/fmrgate.db.
func OpenFile(ctx context.Context, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return Open(ctx, Config{
		Driver: "sqlite",
		DSN:    filepath.Join(dataDir, "fmrgate.db"),
	})
}

// Close closes the underlying database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DriverName returns the canonical driver name (sqlite, postgres, mysql
// or sqlserver).
func (s *Store) DriverName() string {
	return s.dialect.name
}

// DB returns the underlying sqlx handle, useful for tests.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// resolveDialect picks the dialect from an explicit driver name or, when
// that is empty, from the shape of the DSN.
func resolveDialect(driver, dsn string) (*dialect, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		name = inferDriver(dsn)
	}
	switch name {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	case "mysql", "mariadb":
		return mysqlDialect, nil
	case "sqlserver", "mssql":
		return sqlserverDialect, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func inferDriver(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "sqlserver://"):
		return "sqlserver"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	}
	if _, err := mysqldriver.ParseDSN(dsn); err == nil && strings.Contains(dsn, "@") {
		return "mysql"
	}
	return "sqlite"
}
