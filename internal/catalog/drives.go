package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDriveNotFound is returned when no drive has the requested label
var ErrDriveNotFound = errors.New("drive not found")

// Drive is one labeled storage volume. Its identity is the label, never the mount path.
type Drive struct {
	ID         int64      `db:"id" json:"id"`
	Label      string     `db:"label" json:"label"`
	MountPath  string     `db:"mount_path" json:"mount_path"`
	DriveType  string     `db:"drive_type" json:"drive_type"`
	Notes      string     `db:"notes" json:"notes"`
	TotalBytes int64      `db:"total_bytes" json:"total_bytes"`
	FreeBytes  int64      `db:"free_bytes" json:"free_bytes"`
	SmartScan  *string    `db:"smart_scan" json:"smart_scan,omitempty"`
	Serial     *string    `db:"serial" json:"serial,omitempty"`
	Model      *string    `db:"model" json:"model,omitempty"`
	ScannedAt  *time.Time `db:"scanned_at" json:"scanned_at,omitempty"`
}

// DriveUpsert carries the values recorded for a drive at scan time.
// Empty SmartBlob, Serial and Model mean "unknown" and never overwrite a known value.
type DriveUpsert struct {
	Label      string
	MountPath  string
	DriveType  string
	Notes      string
	TotalBytes int64
	FreeBytes  int64
	SmartBlob  string
	Serial     string
	Model      string
	ScannedAt  time.Time
}

const driveColumns = `id, label, mount_path, drive_type, notes, total_bytes, free_bytes,
	smart_scan, serial, model, scanned_at`

// UpsertDrive inserts a drive or updates the row matched by label
func (db *DB) UpsertDrive(ctx context.Context, d DriveUpsert) error {
	label := strings.TrimSpace(d.Label)
	if label == "" {
		return fmt.Errorf("drive label is required")
	}

	scannedAt := d.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now()
	}

	query := `
		INSERT INTO drives (label, mount_path, drive_type, notes, total_bytes, free_bytes,
			smart_scan, serial, model, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			mount_path = excluded.mount_path,
			drive_type = COALESCE(NULLIF(excluded.drive_type, ''), drives.drive_type),
			notes = COALESCE(NULLIF(excluded.notes, ''), drives.notes),
			total_bytes = excluded.total_bytes,
			free_bytes = excluded.free_bytes,
			smart_scan = COALESCE(excluded.smart_scan, drives.smart_scan),
			serial = COALESCE(excluded.serial, drives.serial),
			model = COALESCE(excluded.model, drives.model),
			scanned_at = excluded.scanned_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		label,
		d.MountPath,
		strings.TrimSpace(d.DriveType),
		d.Notes,
		d.TotalBytes,
		d.FreeBytes,
		nullIfEmpty(d.SmartBlob),
		nullIfEmpty(strings.TrimSpace(d.Serial)),
		nullIfEmpty(strings.TrimSpace(d.Model)),
		scannedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert drive %s: %w", label, err)
	}
	return nil
}

// GetDrive returns the drive with the given label
func (db *DB) GetDrive(ctx context.Context, label string) (*Drive, error) {
	var d Drive
	err := db.conn.GetContext(ctx, &d, `SELECT `+driveColumns+` FROM drives WHERE label = ?`, label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDriveNotFound, label)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drive %s: %w", label, err)
	}
	return &d, nil
}

// ListDrives returns every drive ordered by label
func (db *DB) ListDrives(ctx context.Context) ([]*Drive, error) {
	var drives []*Drive
	if err := db.conn.SelectContext(ctx, &drives, `SELECT `+driveColumns+` FROM drives ORDER BY label COLLATE NOCASE`); err != nil {
		return nil, fmt.Errorf("failed to list drives: %w", err)
	}
	return drives, nil
}

// UpdateDriveMeta edits the user-maintained fields. Nil leaves a field unchanged.
func (db *DB) UpdateDriveMeta(ctx context.Context, label string, driveType, notes *string) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)

	if driveType != nil {
		sets = append(sets, "drive_type = ?")
		args = append(args, strings.TrimSpace(*driveType))
	}
	if notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *notes)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, label)

	res, err := db.conn.ExecContext(ctx, `UPDATE drives SET `+strings.Join(sets, ", ")+` WHERE label = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update drive %s: %w", label, err)
	}
	return requireAffected(res, ErrDriveNotFound, label)
}

// DeleteDrive removes the catalog row only. The drive's shard file is left in place.
func (db *DB) DeleteDrive(ctx context.Context, label string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM drives WHERE label = ?`, label)
	if err != nil {
		return fmt.Errorf("failed to delete drive %s: %w", label, err)
	}
	return requireAffected(res, ErrDriveNotFound, label)
}

func requireAffected(res sql.Result, notFound error, key interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %v", notFound, key)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
