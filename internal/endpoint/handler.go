// Package endpoint implements the scoring handler: Init loads the model
// once, Run scores one JSON request per call.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/common/metrics"
	"inclusion-scoring/internal/common/observability"
	"inclusion-scoring/internal/common/validation"
	"inclusion-scoring/internal/frame"
	"inclusion-scoring/internal/modelregistry"
	"inclusion-scoring/internal/models"
	"inclusion-scoring/internal/predictor"
	"inclusion-scoring/internal/store"
)

// Options configures Init. Resolver, Loader and Logger are required; the
// remaining collaborators are optional.
type Options struct {
	ModelName    string
	ModelVersion string
	Columns      []string

	Resolver modelregistry.Resolver
	Loader   predictor.Loader
	Logger   logger.Logger

	Cache       store.PredictionCache
	CachePrefix string
	Audit       store.AuditLog

	Observability *observability.Observability
	Tracing       *observability.Tracing
}

// Handler owns one loaded model. It is immutable after Init and safe for
// concurrent use.
type Handler struct {
	model   predictor.Predictor
	info    models.ModelInfo
	columns []string

	cache       store.PredictionCache
	cachePrefix string
	audit       store.AuditLog

	log     logger.Logger
	obs     *observability.Observability
	tracing *observability.Tracing
}

// Init resolves and loads the model exactly once.
func Init(ctx context.Context, opts Options) (*Handler, error) {
	if opts.Resolver == nil || opts.Loader == nil {
		return nil, fmt.Errorf("endpoint: resolver and loader are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	columns := opts.Columns
	if len(columns) == 0 {
		columns = models.Columns
	}

	entry, err := opts.Resolver.Resolve(ctx, opts.ModelName, opts.ModelVersion)
	if err != nil {
		return nil, err
	}
	model, err := opts.Loader.Load(ctx, modelregistry.Spec(entry))
	if err != nil {
		return nil, err
	}

	info := models.ModelInfo{
		Name:     entry.Name,
		Version:  entry.Version,
		Format:   entry.Format,
		Path:     entry.Path,
		Columns:  len(columns),
		LoadedAt: time.Now().UTC(),
	}
	metrics.LoadedModel.WithLabelValues(info.Name, info.Version, info.Format).Set(1)
	opts.Logger.Info("model loaded", map[string]interface{}{
		"model":   info.Name,
		"version": info.Version,
		"format":  info.Format,
		"path":    info.Path,
	})

	prefix := opts.CachePrefix
	if prefix == "" {
		prefix = "score"
	}

	return &Handler{
		model:       model,
		info:        info,
		columns:     append([]string(nil), columns...),
		cache:       opts.Cache,
		cachePrefix: prefix,
		audit:       opts.Audit,
		log:         opts.Logger,
		obs:         opts.Observability,
		tracing:     opts.Tracing,
	}, nil
}

// Info describes the served model.
func (h *Handler) Info() models.ModelInfo {
	return h.info
}

// Run scores one raw JSON request and always returns a JSON document:
// {"result": [...]} on success or an error object without "result".
func (h *Handler) Run(ctx context.Context, raw []byte) []byte {
	_, body := h.Respond(ctx, raw, models.SourceHTTP, "")
	return body
}

// Respond is Run plus the HTTP status of the outcome.
func (h *Handler) Respond(ctx context.Context, raw []byte, source models.Source, requestID string) (status int, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			status, body = errorBody(apperrors.AsStandardError(fmt.Errorf("panic while scoring: %v", r)))
		}
	}()

	labels, err := h.Score(ctx, raw, source, requestID)
	if err != nil {
		return errorBody(err)
	}
	body, err = json.Marshal(models.ScoreResponse{Result: labels})
	if err != nil {
		return errorBody(err)
	}
	return http.StatusOK, body
}

func errorBody(err error) (int, []byte) {
	status, resp := apperrors.ToResponse(err)
	body, mErr := json.Marshal(resp)
	if mErr != nil {
		return http.StatusInternalServerError, []byte(`{"error":"internal error","code":"INTERNAL_ERROR"}`)
	}
	return status, body
}

// Score parses raw and returns one label per row.
func (h *Handler) Score(ctx context.Context, raw []byte, source models.Source, requestID string) ([]interface{}, error) {
	if h == nil || h.model == nil {
		return nil, apperrors.NewModelNotLoadedError()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, h.finish(ctx, source, requestID, 0, time.Now(), false, apperrors.NewParseError(err.Error(), err))
	}
	if result := validation.ValidateScoreRequest(doc); !result.Valid {
		err := apperrors.NewParseError(strings.Join(result.GetErrorMessages(), "; "), nil)
		return nil, h.finish(ctx, source, requestID, 0, time.Now(), false, err)
	}

	data := doc.(map[string]interface{})["data"].([]interface{})
	return h.ScoreRows(ctx, data, source, requestID)
}

// ScoreRows scores already decoded rows. Each row is either a positional
// []interface{} or a map keyed by column name.
func (h *Handler) ScoreRows(ctx context.Context, data []interface{}, source models.Source, requestID string) ([]interface{}, error) {
	if h == nil || h.model == nil {
		return nil, apperrors.NewModelNotLoadedError()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	start := time.Now()

	ctx, span := h.tracing.Start(ctx, "score",
		attribute.String("source", string(source)),
		attribute.String("model", h.info.Name),
		attribute.Int("rows", len(data)),
	)
	defer span.End()

	f, err := frame.FromRows(h.columns, data)
	if err != nil {
		return nil, h.finish(ctx, source, requestID, len(data), start, false, err)
	}
	if f.Len() == 0 {
		return []interface{}{}, h.finish(ctx, source, requestID, 0, start, false, nil)
	}

	key := h.cacheKey(f)
	if labels, ok := h.cached(ctx, key); ok {
		return labels, h.finish(ctx, source, requestID, f.Len(), start, true, nil)
	}

	labels, err := h.model.Predict(ctx, f)
	if err != nil {
		if apperrors.AsStandardError(err).Code == apperrors.ErrCodeInternal {
			err = apperrors.NewPredictionFailedError(-1, err)
		}
		span.RecordError(err)
		return nil, h.finish(ctx, source, requestID, f.Len(), start, false, err)
	}
	if len(labels) != f.Len() {
		err := apperrors.NewPredictionFailedError(-1,
			fmt.Errorf("model returned %d labels for %d rows", len(labels), f.Len()))
		return nil, h.finish(ctx, source, requestID, f.Len(), start, false, err)
	}

	if h.cache != nil && key != "" {
		if err := h.cache.Set(ctx, key, labels); err != nil {
			h.log.Warn("failed to cache predictions", map[string]interface{}{"requestId": requestID, "error": err})
		}
	}
	return labels, h.finish(ctx, source, requestID, f.Len(), start, false, nil)
}

func (h *Handler) cacheKey(f *frame.Frame) string {
	if h.cache == nil {
		return ""
	}
	rows := make([][]interface{}, f.Len())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	key, err := store.CacheKey(h.cachePrefix, h.info.Name, h.info.Version, rows)
	if err != nil {
		h.log.Warn("failed to build cache key", map[string]interface{}{"error": err})
		return ""
	}
	return key
}

func (h *Handler) cached(ctx context.Context, key string) ([]interface{}, bool) {
	if h.cache == nil || key == "" {
		return nil, false
	}
	labels, hit, err := h.cache.Get(ctx, key)
	if err != nil {
		h.log.Warn("prediction cache unavailable", map[string]interface{}{"error": err})
		return nil, false
	}
	metrics.ObserveCache(hit)
	return labels, hit
}

// finish records metrics and the audit entry for one call and passes err
// through unchanged.
func (h *Handler) finish(ctx context.Context, source models.Source, requestID string, rows int, start time.Time, cacheHit bool, err error) error {
	elapsed := time.Since(start)
	rec := models.ScoringRecord{
		RequestID:    requestID,
		Source:       source,
		ModelName:    h.info.Name,
		ModelVersion: h.info.Version,
		RowCount:     rows,
		Status:       models.StatusSucceeded,
		DurationMs:   elapsed.Milliseconds(),
		CacheHit:     cacheHit,
		CreatedAt:    time.Now().UTC(),
	}
	fields := map[string]interface{}{
		"requestId": requestID,
		"source":    string(source),
		"rows":      rows,
		"duration":  elapsed.String(),
		"cacheHit":  cacheHit,
	}

	code := ""
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		code = string(stdErr.Code)
		rec.Status = models.StatusFailed
		rec.ErrorCode = code
		fields["errorCode"] = code
		fields["error"] = stdErr.Error()
		h.log.Warn("scoring request failed", fields)
	} else {
		h.log.Debug("scoring request completed", fields)
	}

	metrics.ObserveScoring(string(source), code, rows, elapsed)
	h.obs.RecordScore(ctx, string(source), rec.Status, rows, elapsed)

	if h.audit != nil {
		if aErr := h.audit.Record(ctx, rec); aErr != nil {
			h.log.Warn("failed to write audit record", map[string]interface{}{"requestId": requestID, "error": aErr})
		}
	}
	return err
}
