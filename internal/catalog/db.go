package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the catalog SQLite connection (drives + jobs)
type DB struct {
	conn   *sqlx.DB
	path   string
	logger hclog.Logger
}

// DBConfig holds database connection configuration
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the connection string used for every catalog and shard database
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
}

// Open opens the catalog with default pool settings and ensures its schema
func Open(path string, logger hclog.Logger) (*DB, error) {
	return OpenWithConfig(path, logger, DBConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
}

// OpenWithConfig opens the catalog with custom pool settings
func OpenWithConfig(path string, logger hclog.Logger, cfg DBConfig) (*DB, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	// Ensure the database directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	conn, err := sqlx.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	db := &DB{conn: conn, path: path, logger: logger.Named("catalog")}

	if err := db.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return db, nil
}

// NewWithConn wraps an existing connection without touching the schema
func NewWithConn(conn *sqlx.DB, logger hclog.Logger) *DB {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &DB{conn: conn, logger: logger.Named("catalog")}
}

// EnsureSchema creates the tables and applies additive column migrations.
// It is safe to call on every startup.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := db.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations adds every missing column listed in migrations
func (db *DB) runMigrations(ctx context.Context) error {
	for _, m := range migrations {
		var count int
		err := db.conn.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to inspect %s.%s: %w", m.table, m.column, err)
		}
		if count > 0 {
			continue
		}

		if _, err := db.conn.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", m.table, m.column, err)
		}
		db.logger.Info("migrated catalog", "table", m.table, "column", m.column)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("failed to checkpoint catalog: %w", err)
	}
	return nil
}

// Path returns the catalog file path
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
