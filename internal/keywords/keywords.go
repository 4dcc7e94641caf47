// Package keywords persists the keywords and authors the bot watches for.
package keywords

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

type file struct {
	Keywords []string `yaml:"keywords"`
	Authors  []string `yaml:"authors"`
}

// Store is a YAML-backed keyword list, safe for concurrent use.
type Store struct {
	path string

	mu   sync.RWMutex
	data file
}

// DefaultPath is where the store lives when no path is configured.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "paperbot", "bot.yaml")
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keywords: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("keywords: failed to parse %s: %w", path, err)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Keywords returns a copy of the stored keywords.
func (s *Store) Keywords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.Keywords)
}

// Authors returns a copy of the stored authors.
func (s *Store) Authors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.Authors)
}

// Add lowercases words, stores those not already present and persists the
// store. It returns the newly added keywords.
func (s *Store) Add(words ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || slices.Contains(s.data.Keywords, w) {
			continue
		}
		s.data.Keywords = append(s.data.Keywords, w)
		added = append(added, w)
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, s.save()
}

// save writes the store atomically. Callers hold mu.
func (s *Store) save() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("keywords: failed to encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("keywords: failed to create directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("keywords: failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("keywords: failed to replace %s: %w", s.path, err)
	}
	return nil
}
