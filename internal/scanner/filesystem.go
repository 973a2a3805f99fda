package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileInfo is one entry produced by the enumeration walk. Err is set when
// the entry could not be read; such entries are still recorded.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	Err     error
}

// WalkFiles walks root and calls fn for every regular file and for every
// entry that failed with a filesystem error. Directories whose base name
// matches skipDir are not descended into. Symlinks and special files are
// ignored, except a symlinked root, which is walked through to its target.
// Only an unreadable root, a cancelled ctx or an error from fn stops the walk.
func WalkFiles(ctx context.Context, root string, skipDir func(name string) bool, fn func(FileInfo) error) error {
	walkRoot := root
	if info, err := os.Lstat(root); err == nil && info.Mode()&fs.ModeSymlink != 0 &&
		!os.IsPathSeparator(root[len(root)-1]) {
		// A trailing separator makes WalkDir resolve the link; entry paths stay under root
		walkRoot = root + string(filepath.Separator)
	}

	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == walkRoot {
				return err
			}
			// Unreadable directory or entry that vanished mid-walk
			if cbErr := fn(FileInfo{Path: path, Err: err}); cbErr != nil {
				return cbErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != walkRoot && skipDir != nil && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fn(FileInfo{Path: path, Err: err})
		}

		return fn(FileInfo{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return nil
}
