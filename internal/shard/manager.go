package shard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	// ErrShardBusy is returned when deleting a shard that a scan is writing
	ErrShardBusy = errors.New("shard is in use by a running scan")

	// ErrShardNotFound is returned when no shard file exists for a label
	ErrShardNotFound = errors.New("shard not found")
)

// Manager maps drive labels to shard files and guards their lifetime
type Manager struct {
	dir        string
	retries    int
	retryDelay time.Duration
	logger     hclog.Logger

	mu     sync.Mutex
	active map[string]int
}

// NewManager creates a manager for shards stored in dir
func NewManager(dir string, retries int, retryDelay time.Duration, logger hclog.Logger) *Manager {
	if retries < 1 {
		retries = 1
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		dir:        dir,
		retries:    retries,
		retryDelay: retryDelay,
		logger:     logger.Named("shard"),
		active:     make(map[string]int),
	}
}

// Dir returns the shard directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the shard file path for label
func (m *Manager) Path(label string) string {
	return PathFor(m.dir, label)
}

// Exists reports whether label has a shard file
func (m *Manager) Exists(label string) bool {
	_, err := os.Stat(m.Path(label))
	return err == nil
}

// Open opens the shard for label
func (m *Manager) Open(label string) (*Store, error) {
	return Open(m.Path(label))
}

// OpenExisting opens the shard for label without creating it
func (m *Manager) OpenExisting(label string) (*Store, error) {
	if !m.Exists(label) {
		return nil, fmt.Errorf("%w: %s", ErrShardNotFound, label)
	}
	return m.Open(label)
}

// Acquire marks label as being written. The returned func releases it.
func (m *Manager) Acquire(label string) func() {
	key := FileName(label)

	m.mu.Lock()
	m.active[key]++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.active[key]--; m.active[key] <= 0 {
				delete(m.active, key)
			}
		})
	}
}

// InUse reports whether a writer currently holds label
func (m *Manager) InUse(label string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[FileName(label)] > 0
}

// Delete removes the shard for label. The WAL is checkpointed and the
// connection closed before the .db, -wal and -shm files are unlinked; each
// unlink is retried to ride out transient file locks.
func (m *Manager) Delete(ctx context.Context, label string) error {
	if m.InUse(label) {
		return fmt.Errorf("%w: %s", ErrShardBusy, label)
	}

	path := m.Path(label)
	files := []string{path, path + "-wal", path + "-shm"}

	found := false
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrShardNotFound, label)
	}

	if _, err := os.Stat(path); err == nil {
		if err := checkpointAndClose(ctx, path); err != nil {
			m.logger.Warn("checkpoint before delete failed", "label", label, "error", err)
		}
	}

	for _, f := range files {
		if err := m.removeWithRetry(ctx, f); err != nil {
			return err
		}
	}

	m.logger.Info("deleted shard", "label", label, "path", path)
	return nil
}

func checkpointAndClose(ctx context.Context, path string) error {
	s, err := Open(path)
	if err != nil {
		return err
	}
	cpErr := s.Checkpoint(ctx)
	if err := s.Close(); err != nil && cpErr == nil {
		cpErr = err
	}
	return cpErr
}

func (m *Manager) removeWithRetry(ctx context.Context, path string) error {
	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		lastErr = err
		m.logger.Debug("unlink failed, retrying", "path", path, "attempt", attempt, "error", err)

		if attempt == m.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
	return fmt.Errorf("failed to delete %s after %d attempts: %w", path, m.retries, lastErr)
}
