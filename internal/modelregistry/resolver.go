// Package modelregistry resolves a model name (and optional version) to a
// loadable artifact.
package modelregistry

import (
	"context"
	"fmt"
	"time"

	"inclusion-scoring/internal/common/config"
	apphttp "inclusion-scoring/internal/common/http"
	"inclusion-scoring/internal/predictor"
	"inclusion-scoring/pkg/registry"
)

// Resolver returns the registry entry for name/version with an absolute
// artifact path. An empty version selects the latest entry.
type Resolver interface {
	Resolve(ctx context.Context, name, version string) (registry.ModelEntry, error)
}

// Spec converts a resolved entry into a loader spec.
func Spec(e registry.ModelEntry) predictor.Spec {
	return predictor.Spec{
		Name:          e.Name,
		Version:       e.Version,
		Format:        e.Format,
		Path:          e.Path,
		Features:      e.Features,
		Threshold:     e.Threshold,
		PositiveLabel: e.PositiveLabel,
		NegativeLabel: e.NegativeLabel,
	}
}

// New builds the resolver selected by cfg.Type. db is required for the
// postgres resolver and ignored otherwise.
func New(cfg config.RegistryConfig, db Querier) (Resolver, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileResolver(cfg.ManifestPath), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres registry requires a database connection")
		}
		return NewPostgresResolver(db), nil
	case "remote":
		timeout := time.Duration(cfg.Timeout) * time.Millisecond
		return NewRemoteResolver(cfg.RemoteURL, cfg.CacheDir, apphttp.NewClient(timeout)), nil
	default:
		return nil, fmt.Errorf("unsupported registry type %q", cfg.Type)
	}
}
