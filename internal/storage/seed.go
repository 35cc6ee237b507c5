// Parses the YAML seed manifest used to bootstrap a data directory.

package storage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedManifest lists entries to create at startup.
//
// Example:
//
//	entries:
//	  - key: welcome
//	    content: Hello!
type SeedManifest struct {
	Entries []SeedEntry `yaml:"entries"`
}

// SeedEntry is one entry of a SeedManifest.
type SeedEntry struct {
	Key     string `yaml:"key"`
	Content string `yaml:"content"`
}

// ParseSeedFile reads and parses a seed manifest.
// The path is provided by the CLI user, so file inclusion is expected.
func ParseSeedFile(path string) (*SeedManifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-specified manifest path
	if err != nil {
		return nil, fmt.Errorf("failed to read seed manifest: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses a seed manifest from bytes.
func ParseSeed(data []byte) (*SeedManifest, error) {
	var m SeedManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse seed manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed manifest: %w", err)
	}
	return &m, nil
}

// Validate checks that every key is set and unique.
func (m *SeedManifest) Validate() error {
	seen := make(map[string]bool, len(m.Entries))
	for i, e := range m.Entries {
		if e.Key == "" {
			return fmt.Errorf("entry %d: %w", i, errKeyRequired)
		}
		if seen[e.Key] {
			return fmt.Errorf("entry %d: duplicate key %q", i, e.Key)
		}
		seen[e.Key] = true
	}
	if len(m.Entries) == 0 {
		return errors.New("no entries")
	}
	return nil
}
