package modelregistry

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/pkg/registry"
)

// Querier is the subset of *sql.DB the resolver needs.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const selectModelColumns = `SELECT name, version, format, path, features, threshold,
       positive_label, negative_label, description, created_at
  FROM model_registry`

const (
	queryExactModel  = selectModelColumns + ` WHERE name = $1 AND version = $2`
	queryLatestModel = selectModelColumns + ` WHERE name = $1 ORDER BY created_at DESC, version DESC LIMIT 1`
)

// PostgresResolver looks models up in the model_registry table.
type PostgresResolver struct {
	db Querier
}

func NewPostgresResolver(db Querier) *PostgresResolver {
	return &PostgresResolver{db: db}
}

func (r *PostgresResolver) Resolve(ctx context.Context, name, version string) (registry.ModelEntry, error) {
	var row *sql.Row
	if version == "" {
		row = r.db.QueryRowContext(ctx, queryLatestModel, name)
	} else {
		row = r.db.QueryRowContext(ctx, queryExactModel, name, version)
	}

	var (
		e           registry.ModelEntry
		features    pq.StringArray
		threshold   sql.NullFloat64
		positive    sql.NullString
		negative    sql.NullString
		description sql.NullString
	)
	err := row.Scan(&e.Name, &e.Version, &e.Format, &e.Path, &features, &threshold,
		&positive, &negative, &description, &e.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return registry.ModelEntry{}, apperrors.NewModelNotFoundError(name, version)
	}
	if err != nil {
		return registry.ModelEntry{}, apperrors.NewRegistryFailedError(err)
	}

	e.Features = []string(features)
	e.Threshold = threshold.Float64
	e.PositiveLabel = positive.String
	e.NegativeLabel = negative.String
	e.Description = description.String
	return e, nil
}
