// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var supportedFormats = map[string]bool{
	"pmml-random-forest": true,
	"pmml-gbm":           true,
	"lightgbm":           true,
}

func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ModelRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// NewRegistry returns an empty manifest.
func NewRegistry() *ModelRegistry {
	return &ModelRegistry{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Models:      []ModelEntry{},
	}
}

// SaveRegistry writes reg as indented JSON, creating parent directories.
func SaveRegistry(reg *ModelRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the entry for name and version. An empty version selects the
// newest entry for name.
func (r *ModelRegistry) Find(name, version string) (ModelEntry, bool) {
	var (
		best  ModelEntry
		found bool
	)
	for _, e := range r.Models {
		if e.Name != name {
			continue
		}
		if version != "" {
			if e.Version == version {
				return e, true
			}
			continue
		}
		if !found || e.Newer(best) {
			best, found = e, true
		}
	}
	return best, found
}

// Add appends entry, rejecting a duplicate name/version pair.
func (r *ModelRegistry) Add(entry ModelEntry) error {
	if _, exists := r.Find(entry.Name, entry.Version); exists && entry.Version != "" {
		return fmt.Errorf("model %s version %s already exists", entry.Name, entry.Version)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.Models = append(r.Models, entry)
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Validate checks required fields, formats and name/version uniqueness.
func (r *ModelRegistry) Validate() error {
	if len(r.Models) == 0 {
		return fmt.Errorf("registry contains no models")
	}
	seen := make(map[string]bool)
	for _, m := range r.Models {
		if m.Name == "" {
			return fmt.Errorf("model missing required field: name")
		}
		if m.Version == "" {
			return fmt.Errorf("model %s missing required field: version", m.Name)
		}
		if m.Path == "" {
			return fmt.Errorf("model %s@%s missing required field: path", m.Name, m.Version)
		}
		if !supportedFormats[m.Format] {
			return fmt.Errorf("model %s@%s has unsupported format %q", m.Name, m.Version, m.Format)
		}
		if m.Threshold < 0 || m.Threshold >= 1 {
			return fmt.Errorf("model %s@%s threshold must be in [0, 1)", m.Name, m.Version)
		}
		key := m.Name + "@" + m.Version
		if seen[key] {
			return fmt.Errorf("duplicate model version: %s", key)
		}
		seen[key] = true
	}
	return nil
}

// ResolvePath returns entry's artifact path made absolute against the
// directory holding the manifest at manifestPath.
func ResolvePath(manifestPath string, entry ModelEntry) (string, error) {
	if filepath.IsAbs(entry.Path) {
		return entry.Path, nil
	}
	return filepath.Abs(filepath.Join(filepath.Dir(manifestPath), entry.Path))
}
