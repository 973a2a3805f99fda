package shard

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	drive_label TEXT NOT NULL,
	path TEXT NOT NULL,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	mtime_utc TEXT,
	hash_blake3 TEXT,
	media_json TEXT,
	integrity_ok INTEGER NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_files_path ON files(path);
CREATE INDEX IF NOT EXISTS idx_files_drive_label ON files(drive_label);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash_blake3);
`

// columns added after the first shard layout
var migrations = []struct {
	column string
	ddl    string
}{
	{"scan_run", `ALTER TABLE files ADD COLUMN scan_run TEXT NOT NULL DEFAULT ''`},
}

// Store is one drive's file listing
type Store struct {
	conn *sqlx.DB
	path string
}

// Open opens (creating if needed) the shard at path and ensures its schema.
// The connection pool is limited to one connection: a shard has one owner.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}

	conn, err := sqlx.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open shard: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path}
	if err := s.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize shard schema: %w", err)
	}
	return s, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
}

// EnsureSchema creates the files table and indexes; safe to repeat
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute shard schema: %w", err)
	}

	for _, m := range migrations {
		var n int
		if err := s.conn.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM pragma_table_info('files') WHERE name = ?`, m.column); err != nil {
			return fmt.Errorf("failed to inspect files.%s: %w", m.column, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("failed to add files.%s: %w", m.column, err)
		}
	}
	return nil
}

// Checkpoint flushes and truncates the WAL
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("failed to checkpoint shard: %w", err)
	}
	return nil
}

// Vacuum rebuilds the shard file to reclaim space
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("failed to vacuum shard: %w", err)
	}
	return nil
}

// Path returns the shard file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the connection
func (s *Store) Close() error {
	return s.conn.Close()
}

var unsafeLabelChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileName maps a drive label to a filesystem-safe shard file name.
// Labels that needed rewriting get a short hash suffix so that "My Drive"
// and "My_Drive" never share a shard.
func FileName(label string) string {
	label = strings.TrimSpace(label)
	name := unsafeLabelChars.ReplaceAllString(label, "_")
	name = strings.Trim(name, ".")
	if name == "" {
		name = "drive"
	}
	if name != label {
		sum := blake3.Sum256([]byte(label))
		name += "_" + hex.EncodeToString(sum[:4])
	}
	return name + ".db"
}

// PathFor returns the shard path for label inside dir
func PathFor(dir, label string) string {
	return filepath.Join(dir, FileName(label))
}
