package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyPreset is returned when adding a blank drive type
var ErrEmptyPreset = errors.New("drive type cannot be empty")

// DefaultDriveTypes seed a new presets file
var DefaultDriveTypes = []string{
	"HDD 3.5",
	"HDD 2.5",
	"SSD SATA",
	"SSD NVMe",
	"USB Flash",
	"SD Card",
	"Optical",
	"Network Share",
}

type document struct {
	DriveTypes []string `json:"drive_types"`
}

// Store is the drive-type preset list persisted as JSON
type Store struct {
	path string

	mu    sync.Mutex
	types []string
}

// Load reads the presets file, falling back to the defaults when it is absent
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.types = append([]string(nil), DefaultDriveTypes...)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse presets %s: %w", path, err)
	}
	for _, t := range doc.DriveTypes {
		s.add(t)
	}
	return s, nil
}

// List returns the presets in display order
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.types...)
}

// Add appends a drive type unless an entry differing only in case exists.
// It reports whether the list changed.
func (s *Store) Add(driveType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(driveType) == "" {
		return false, ErrEmptyPreset
	}
	return s.add(driveType), nil
}

func (s *Store) add(driveType string) bool {
	driveType = strings.TrimSpace(driveType)
	if driveType == "" || s.indexOf(driveType) >= 0 {
		return false
	}
	s.types = append(s.types, driveType)
	return true
}

// Remove deletes a drive type, matched case-insensitively
func (s *Store) Remove(driveType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(strings.TrimSpace(driveType))
	if i < 0 {
		return false
	}
	s.types = append(s.types[:i], s.types[i+1:]...)
	return true
}

// Sorted returns the presets alphabetically, ignoring case
func (s *Store) Sorted() []string {
	out := s.List()
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func (s *Store) indexOf(driveType string) int {
	for i, t := range s.types {
		if strings.EqualFold(t, driveType) {
			return i
		}
	}
	return -1
}

// Save writes the presets file atomically
func (s *Store) Save() error {
	s.mu.Lock()
	doc := document{DriveTypes: append([]string{}, s.types...)}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create presets directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace presets: %w", err)
	}
	return nil
}

// Path returns the presets file path
func (s *Store) Path() string {
	return s.path
}
