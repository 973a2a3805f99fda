package shard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mmenanno/drive-catalog/internal/constants"
)

// ErrFileNotFound is returned when a path has no row
var ErrFileNotFound = errors.New("file not found in shard")

// FileRow is one file as stored in a shard
type FileRow struct {
	ID          int64          `db:"id" json:"id"`
	DriveLabel  string         `db:"drive_label" json:"drive_label"`
	Path        string         `db:"path" json:"path"`
	SizeBytes   int64          `db:"size_bytes" json:"size_bytes"`
	MtimeUTC    sql.NullString `db:"mtime_utc" json:"-"`
	HashBlake3  sql.NullString `db:"hash_blake3" json:"-"`
	MediaJSON   sql.NullString `db:"media_json" json:"-"`
	IntegrityOK bool           `db:"integrity_ok" json:"integrity_ok"`
	ScanRun     string         `db:"scan_run" json:"scan_run"`
}

const fileColumns = `id, drive_label, path, size_bytes, mtime_utc, hash_blake3, media_json, integrity_ok, scan_run`

// Summary aggregates a shard
type Summary struct {
	Rows       int64 `db:"row_count"`
	TotalBytes int64 `db:"total_bytes"`
	Failed     int64 `db:"failed"`
	Hashed     int64 `db:"hashed"`
	Skipped    int64 `db:"skipped"`
	Enriched   int64 `db:"enriched"`
	Pending    int64 `db:"pending"`
}

// DuplicateGroup is a set of files with the same BLAKE3 hash
type DuplicateGroup struct {
	Hash      string
	SizeBytes int64
	Paths     []string
}

// HashEntry is one hashed file, used for cross-drive duplicate reports
type HashEntry struct {
	Hash      string `db:"hash_blake3"`
	Path      string `db:"path"`
	SizeBytes int64  `db:"size_bytes"`
}

// Count returns the number of rows
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM files`); err != nil {
		return 0, fmt.Errorf("failed to count shard rows: %w", err)
	}
	return n, nil
}

// Summary returns row counts by enrichment state
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.conn.GetContext(ctx, &sum, `
		SELECT
			COUNT(*) AS row_count,
			COALESCE(SUM(size_bytes), 0) AS total_bytes,
			COALESCE(SUM(CASE WHEN integrity_ok = 0 THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN hash_blake3 IS NOT NULL THEN 1 ELSE 0 END), 0) AS hashed,
			COALESCE(SUM(CASE WHEN media_json = ? THEN 1 ELSE 0 END), 0) AS skipped,
			COALESCE(SUM(CASE WHEN media_json IS NOT NULL AND media_json <> ? THEN 1 ELSE 0 END), 0) AS enriched,
			COALESCE(SUM(CASE WHEN media_json IS NULL THEN 1 ELSE 0 END), 0) AS pending
		FROM files
	`, constants.SkippedNonAV, constants.SkippedNonAV)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize shard: %w", err)
	}
	return &sum, nil
}

// Get returns the row for path
func (s *Store) Get(ctx context.Context, path string) (*FileRow, error) {
	var row FileRow
	err := s.conn.GetContext(ctx, &row, `SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return &row, nil
}

// Failed returns rows flagged integrity_ok = 0
func (s *Store) Failed(ctx context.Context, limit int) ([]*FileRow, error) {
	if limit <= 0 {
		limit = constants.DefaultFailedListLimit
	}
	var rows []*FileRow
	if err := s.conn.SelectContext(ctx, &rows,
		`SELECT `+fileColumns+` FROM files WHERE integrity_ok = 0 ORDER BY path LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("failed to list failed rows: %w", err)
	}
	return rows, nil
}

// DuplicateGroups returns hashes shared by at least minCount files, largest first.
// Matching is exact: same BLAKE3 digest.
func (s *Store) DuplicateGroups(ctx context.Context, minCount int) ([]DuplicateGroup, error) {
	if minCount < 2 {
		minCount = 2
	}

	var rows []struct {
		Hash  string `db:"hash_blake3"`
		Size  int64  `db:"size_bytes"`
		Paths string `db:"paths"`
	}
	err := s.conn.SelectContext(ctx, &rows, `
		SELECT hash_blake3, MAX(size_bytes) AS size_bytes, GROUP_CONCAT(path, char(10)) AS paths
		FROM files
		WHERE hash_blake3 IS NOT NULL
		GROUP BY hash_blake3
		HAVING COUNT(*) >= ?
		ORDER BY MAX(size_bytes) DESC, hash_blake3
	`, minCount)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicates: %w", err)
	}

	groups := make([]DuplicateGroup, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, DuplicateGroup{
			Hash:      r.Hash,
			SizeBytes: r.Size,
			Paths:     strings.Split(r.Paths, "\n"),
		})
	}
	return groups, nil
}

// HashEntries returns every hashed file
func (s *Store) HashEntries(ctx context.Context) ([]HashEntry, error) {
	var entries []HashEntry
	if err := s.conn.SelectContext(ctx, &entries,
		`SELECT hash_blake3, path, size_bytes FROM files WHERE hash_blake3 IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("failed to list hashes: %w", err)
	}
	return entries, nil
}
