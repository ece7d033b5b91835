// Package batch scores a CSV table end to end: read, drop label columns,
// predict, append the scored column and write the result.
package batch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"inclusion-scoring/internal/common/config"
	apperrors "inclusion-scoring/internal/common/errors"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/common/metrics"
	"inclusion-scoring/internal/frame"
	"inclusion-scoring/internal/models"
	"inclusion-scoring/internal/predictor"
	"inclusion-scoring/internal/store"
)

const previewRows = 5

// Job describes one batch run.
type Job struct {
	RunID        string
	InputPath    string
	OutputPath   string
	Model        predictor.Spec
	LabelColumns []string
	TargetColumn string
	OutputColumn string
}

func (j *Job) normalize() error {
	if j.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if j.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if j.Model.Path == "" {
		return fmt.Errorf("model path is required")
	}
	if j.OutputColumn == "" {
		j.OutputColumn = config.DefaultOutputColumn
	}
	if j.LabelColumns == nil {
		j.LabelColumns = config.DefaultLabelColumns
	}
	if j.RunID == "" {
		j.RunID = uuid.NewString()
	}
	return nil
}

// Summary reports the outcome of a completed run.
type Summary struct {
	RunID        string         `json:"runId"`
	InputPath    string         `json:"inputPath"`
	OutputPath   string         `json:"outputPath"`
	ModelName    string         `json:"modelName"`
	ModelVersion string         `json:"modelVersion"`
	Rows         int            `json:"rows"`
	Columns      int            `json:"columns"`
	LabelCounts  map[string]int `json:"labelCounts"`
	Accuracy     *float64       `json:"accuracy,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	DurationMs   int64          `json:"durationMs"`
}

// Runner executes batch jobs. Indexer, notifiers and audit log are optional
// and never fail a run whose output was written.
type Runner struct {
	loader    predictor.Loader
	log       logger.Logger
	indexer   store.Indexer
	audit     store.AuditLog
	notifiers []Notifier
}

type Option func(*Runner)

func WithIndexer(i store.Indexer) Option {
	return func(r *Runner) { r.indexer = i }
}

func WithAudit(a store.AuditLog) Option {
	return func(r *Runner) { r.audit = a }
}

func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifiers = append(r.notifiers, n) }
}

func NewRunner(loader predictor.Loader, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{loader: loader, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes job and returns its summary. Any failure before the output
// file is in place is returned as an error.
func (r *Runner) Run(ctx context.Context, job Job) (*Summary, error) {
	start := time.Now()
	if err := job.normalize(); err != nil {
		return nil, err
	}
	log := r.log.WithFields(map[string]interface{}{
		"runId": job.RunID,
		"input": job.InputPath,
		"model": job.Model.Name,
	})

	summary, err := r.run(ctx, job, log, start)
	code := ""
	if err != nil {
		code = string(apperrors.AsStandardError(err).Code)
		log.Error("batch scoring failed", map[string]interface{}{"error": err, "errorCode": code})
	}
	rows := 0
	if summary != nil {
		rows = summary.Rows
	}
	metrics.ObserveScoring(string(models.SourceBatch), code, rows, time.Since(start))
	r.recordAudit(ctx, job, rows, code, time.Since(start), log)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, summary, log)
	return summary, nil
}

func (r *Runner) run(ctx context.Context, job Job, log logger.Logger, start time.Time) (*Summary, error) {
	table, err := frame.ReadCSVFile(job.InputPath)
	if err != nil {
		return nil, err
	}
	log.Info("input table loaded", map[string]interface{}{"rows": table.Len(), "columns": len(table.Columns())})

	features, err := table.Drop(job.LabelColumns...)
	if err != nil {
		return nil, err
	}
	logPreview(log, features)

	model, err := r.loader.Load(ctx, job.Model)
	if err != nil {
		return nil, err
	}

	labels := []interface{}{}
	if features.Len() > 0 {
		labels, err = model.Predict(ctx, features)
		if err != nil {
			if apperrors.AsStandardError(err).Code == apperrors.ErrCodeInternal {
				err = apperrors.NewPredictionFailedError(-1, err)
			}
			return nil, err
		}
	}
	if len(labels) != table.Len() {
		return nil, apperrors.NewPredictionFailedError(-1,
			fmt.Errorf("model returned %d labels for %d rows", len(labels), table.Len()))
	}

	scored, err := table.WithColumn(job.OutputColumn, labels)
	if err != nil {
		return nil, err
	}
	if err := scored.WriteCSVFile(job.OutputPath); err != nil {
		return nil, err
	}

	finished := time.Now()
	summary := &Summary{
		RunID:        job.RunID,
		InputPath:    job.InputPath,
		OutputPath:   job.OutputPath,
		ModelName:    job.Model.Name,
		ModelVersion: job.Model.Version,
		Rows:         scored.Len(),
		Columns:      len(scored.Columns()),
		LabelCounts:  countLabels(labels),
		StartedAt:    start.UTC(),
		FinishedAt:   finished.UTC(),
		DurationMs:   finished.Sub(start).Milliseconds(),
	}
	if job.TargetColumn != "" && table.Has(job.TargetColumn) {
		truth, _ := table.Column(job.TargetColumn)
		summary.Accuracy = accuracy(truth, labels)
	}

	fields := map[string]interface{}{
		"output":   job.OutputPath,
		"rows":     summary.Rows,
		"duration": finished.Sub(start).String(),
	}
	if summary.Accuracy != nil {
		fields["accuracy"] = *summary.Accuracy
	}
	log.Info("batch scoring completed", fields)
	return summary, nil
}

func logPreview(log logger.Logger, f *frame.Frame) {
	head := f.Head(previewRows)
	columns := head.Columns()
	for i := 0; i < head.Len(); i++ {
		row := head.Row(i)
		cells := make(map[string]interface{}, len(columns))
		for j, c := range columns {
			cells[c] = row[j]
		}
		log.Debug("feature preview", map[string]interface{}{"row": i, "values": cells})
	}
}

// labelKey renders truth and predicted labels comparably: "1", "1.0" and
// int64(1) all become "1".
func labelKey(v interface{}) string {
	switch t := frame.Infer(v).(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return frame.FormatCell(t)
	}
}

func countLabels(labels []interface{}) map[string]int {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[labelKey(l)]++
	}
	return counts
}

// accuracy is the share of rows whose truth value is present and equal to
// the prediction. Rows without a truth value are skipped.
func accuracy(truth, predicted []interface{}) *float64 {
	var matched, total int
	for i, t := range truth {
		if frame.Infer(t) == nil {
			continue
		}
		total++
		if labelKey(t) == labelKey(predicted[i]) {
			matched++
		}
	}
	if total == 0 {
		return nil
	}
	acc := float64(matched) / float64(total)
	return &acc
}

func (r *Runner) recordAudit(ctx context.Context, job Job, rows int, code string, elapsed time.Duration, log logger.Logger) {
	if r.audit == nil {
		return
	}
	rec := models.ScoringRecord{
		RequestID:    job.RunID,
		Source:       models.SourceBatch,
		ModelName:    job.Model.Name,
		ModelVersion: job.Model.Version,
		RowCount:     rows,
		Status:       models.StatusSucceeded,
		ErrorCode:    code,
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if code != "" {
		rec.Status = models.StatusFailed
	}
	if err := r.audit.Record(ctx, rec); err != nil {
		log.Warn("failed to write audit record", map[string]interface{}{"error": err})
	}
}

func (r *Runner) publish(ctx context.Context, summary *Summary, log logger.Logger) {
	if r.indexer != nil {
		if err := r.indexer.Index(ctx, summary.RunID, summary); err != nil {
			log.Warn("failed to index run summary", map[string]interface{}{"error": err})
		}
	}
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			log.Warn("failed to send completion notice", map[string]interface{}{"notifier": n.Name(), "error": err})
		}
	}
}
