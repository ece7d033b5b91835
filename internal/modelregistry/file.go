package modelregistry

import (
	"context"
	"os"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/pkg/registry"
)

// FileResolver reads a JSON manifest from disk on every call.
type FileResolver struct {
	manifestPath string
}

func NewFileResolver(manifestPath string) *FileResolver {
	return &FileResolver{manifestPath: manifestPath}
}

func (r *FileResolver) Resolve(ctx context.Context, name, version string) (registry.ModelEntry, error) {
	if err := ctx.Err(); err != nil {
		return registry.ModelEntry{}, err
	}
	reg, err := registry.LoadRegistry(r.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return registry.ModelEntry{}, apperrors.NewModelNotFoundError(name, version)
		}
		return registry.ModelEntry{}, apperrors.NewRegistryFailedError(err)
	}

	entry, ok := reg.Find(name, version)
	if !ok {
		return registry.ModelEntry{}, apperrors.NewModelNotFoundError(name, version)
	}
	path, err := registry.ResolvePath(r.manifestPath, entry)
	if err != nil {
		return registry.ModelEntry{}, apperrors.NewRegistryFailedError(err)
	}
	entry.Path = path
	return entry, nil
}
