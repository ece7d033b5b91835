package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inclusion-scoring/internal/models"
)

// AuditLog persists one record per scoring call.
type AuditLog interface {
	Record(ctx context.Context, rec models.ScoringRecord) error
}

// Execer is the subset of *sql.DB the audit log needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const insertAuditRecord = `INSERT INTO scoring_audit
    (request_id, source, model_name, model_version, row_count, status, error_code, duration_ms, cache_hit, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// PostgresAudit writes to the scoring_audit table.
type PostgresAudit struct {
	db Execer
}

func NewPostgresAudit(db Execer) *PostgresAudit {
	return &PostgresAudit{db: db}
}

func (a *PostgresAudit) Record(ctx context.Context, rec models.ScoringRecord) error {
	errorCode := sql.NullString{String: rec.ErrorCode, Valid: rec.ErrorCode != ""}
	_, err := a.db.ExecContext(ctx, insertAuditRecord,
		rec.RequestID,
		string(rec.Source),
		rec.ModelName,
		rec.ModelVersion,
		rec.RowCount,
		rec.Status,
		errorCode,
		rec.DurationMs,
		rec.CacheHit,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// IndexAudit ships each record to a search index as a new document.
type IndexAudit struct {
	indexer Indexer
}

func NewIndexAudit(indexer Indexer) *IndexAudit {
	return &IndexAudit{indexer: indexer}
}

func (a *IndexAudit) Record(ctx context.Context, rec models.ScoringRecord) error {
	// request ids repeat on retries; let the index assign document ids
	if err := a.indexer.Index(ctx, "", rec); err != nil {
		return fmt.Errorf("failed to index audit record: %w", err)
	}
	return nil
}

// MultiAudit writes every record to each log in turn and joins the failures.
type MultiAudit []AuditLog

// NewMultiAudit drops nil logs. It returns nil when none remain.
func NewMultiAudit(logs ...AuditLog) AuditLog {
	var m MultiAudit
	for _, l := range logs {
		if l != nil {
			m = append(m, l)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m MultiAudit) Record(ctx context.Context, rec models.ScoringRecord) error {
	var errs []error
	for _, l := range m {
		if err := l.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
