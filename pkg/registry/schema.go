// pkg/registry/schema.go
package registry

import "time"

// ModelRegistry is the JSON manifest listing every deployable model artifact.
type ModelRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Models      []ModelEntry `json:"models"`
}

// ModelEntry describes one version of one model. Path is relative to the
// manifest file unless absolute.
type ModelEntry struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	Format        string    `json:"format"`
	Path          string    `json:"path"`
	Features      []string  `json:"features,omitempty"`
	Threshold     float64   `json:"threshold,omitempty"`
	PositiveLabel string    `json:"positiveLabel,omitempty"`
	NegativeLabel string    `json:"negativeLabel,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Tags          []string  `json:"tags,omitempty"`
}

// Newer reports whether e should be preferred over other when no version is
// requested: later createdAt wins, then the lexically greater version.
func (e ModelEntry) Newer(other ModelEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.After(other.CreatedAt)
	}
	return e.Version > other.Version
}
