// internal/models/scoring.go
package models

import "time"

// Source identifies the entry point that produced a scoring record.
type Source string

const (
	SourceHTTP   Source = "http"
	SourceWorker Source = "worker"
	SourceBatch  Source = "batch"
)

// Status values stored in the audit log.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ScoreResponse is the success body of a scoring call.
type ScoreResponse struct {
	Result []interface{} `json:"result"`
}

// ModelInfo describes the model a handler serves.
type ModelInfo struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Format   string    `json:"format"`
	Path     string    `json:"path"`
	Columns  int       `json:"columns"`
	LoadedAt time.Time `json:"loadedAt"`
}

// ScoringRecord is one row of the scoring audit log.
type ScoringRecord struct {
	RequestID    string    `json:"requestId"`
	Source       Source    `json:"source"`
	ModelName    string    `json:"modelName"`
	ModelVersion string    `json:"modelVersion"`
	RowCount     int       `json:"rowCount"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	DurationMs   int64     `json:"durationMs"`
	CacheHit     bool      `json:"cacheHit"`
	CreatedAt    time.Time `json:"createdAt"`
}
