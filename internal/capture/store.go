// Package capture writes camera captures to the local upload directory.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FilenameLayout is the time layout used to name saved captures.
const FilenameLayout = "capture_batik_20060102_150405.png"

// Store writes captures under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates dir if needed and returns a store writing into it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// WithClock replaces the clock used to name files.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Dir is the directory captures are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data verbatim and returns the generated filename and its
// full path. A capture taken within the same second replaces the earlier one.
func (s *Store) Save(data []byte) (string, string, error) {
	filename := s.now().Format(FilenameLayout)
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write capture %s: %w", filename, err)
	}
	return filename, path, nil
}
