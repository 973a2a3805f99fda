package probe

import (
	"errors"
	"os/exec"
	"sync"
	"time"
)

// ErrToolUnavailable is returned when an external tool is not installed
var ErrToolUnavailable = errors.New("tool not available")

// Tool caches whether an external binary can be found.
// The lookup is repeated at most once per interval.
type Tool struct {
	name     string
	interval time.Duration
	lookPath func(string) (string, error)

	mu        sync.RWMutex
	checkedAt time.Time
	resolved  string
	available bool
}

// NewTool creates an availability cache for the binary at path (or on PATH)
func NewTool(path string, interval time.Duration) *Tool {
	return &Tool{
		name:     path,
		interval: interval,
		lookPath: exec.LookPath,
	}
}

// Name returns the configured binary name
func (t *Tool) Name() string {
	return t.name
}

// Available reports whether the binary was found
func (t *Tool) Available() bool {
	t.mu.RLock()
	fresh := !t.checkedAt.IsZero() && time.Since(t.checkedAt) < t.interval
	available := t.available
	t.mu.RUnlock()
	if fresh {
		return available
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock
	if !t.checkedAt.IsZero() && time.Since(t.checkedAt) < t.interval {
		return t.available
	}

	resolved, err := t.lookPath(t.name)
	t.checkedAt = time.Now()
	t.available = err == nil
	t.resolved = resolved
	return t.available
}

// Path returns the resolved executable path, or the configured name if unresolved
func (t *Tool) Path() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.resolved != "" {
		return t.resolved
	}
	return t.name
}

// Invalidate forces the next Available call to look again
func (t *Tool) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkedAt = time.Time{}
}
