package scanner

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/mmenanno/drive-catalog/internal/constants"
	"github.com/zeebo/blake3"
)

// FileHasher computes BLAKE3 digests by streaming files in fixed-size chunks
type FileHasher struct {
	bufferSize int
}

// NewFileHasher creates a hasher reading bufferSize bytes at a time
func NewFileHasher(bufferSize int) *FileHasher {
	if bufferSize <= 0 {
		bufferSize = constants.DefaultHashBufferSize
	}
	return &FileHasher{bufferSize: bufferSize}
}

// FullHash returns the hex BLAKE3 digest of the whole file.
// The read stops early when ctx is cancelled.
func (h *FileHasher) FullHash(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	applySequentialHint(f)

	hasher := blake3.New()
	buf := make([]byte, h.bufferSize)
	if _, err := io.CopyBuffer(hasher, &ctxReader{ctx: ctx, r: f}, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	if stat, err := f.Stat(); err == nil {
		releaseCacheForLargeFile(f, stat.Size())
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ctxReader checks for cancellation between chunks
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
