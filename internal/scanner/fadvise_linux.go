//go:build linux

package scanner

import (
	"os"

	"golang.org/x/sys/unix"
)

// largeFileCacheLimit is the size above which hashed files are dropped from the page cache
const largeFileCacheLimit = 1 << 30

// applySequentialHint tells the kernel the file is read front to back,
// which widens read-ahead on spinning disks
func applySequentialHint(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// releaseCacheForLargeFile frees page cache after hashing a large video so a
// scan of a multi-terabyte drive does not evict everything else
func releaseCacheForLargeFile(f *os.File, size int64) {
	if size > largeFileCacheLimit {
		_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
	}
}
