//go:build !linux

package scanner

import "os"

// applySequentialHint is a no-op off Linux
func applySequentialHint(f *os.File) {}

// releaseCacheForLargeFile is a no-op off Linux
func releaseCacheForLargeFile(f *os.File, size int64) {}
