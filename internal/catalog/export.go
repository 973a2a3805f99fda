package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Export copies the catalog file to destDir as catalog_YYYYMMDD_HHMMSS.db.
// The WAL is checkpointed first so the copy is self-contained.
func (db *DB) Export(ctx context.Context, destDir string, now time.Time) (string, error) {
	if db.path == "" {
		return "", fmt.Errorf("catalog has no backing file")
	}

	if err := db.Checkpoint(ctx); err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	dest := filepath.Join(destDir, fmt.Sprintf("catalog_%s.db", now.Format("20060102_150405")))
	if err := copyFile(db.path, dest); err != nil {
		return "", fmt.Errorf("failed to export catalog: %w", err)
	}

	db.logger.Info("exported catalog", "dest", dest)
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
