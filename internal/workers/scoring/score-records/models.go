// internal/workers/scoring/score-records/models.go
package scorerecords

// Input carries the rows to score. Each row is a positional array or an
// object keyed by column name.
type Input struct {
	Data      []interface{} `json:"data"`
	RequestID string        `json:"requestId,omitempty"`
}

type Output struct {
	Result       []interface{} `json:"result"`
	ModelName    string        `json:"modelName"`
	ModelVersion string        `json:"modelVersion"`
	RowCount     int           `json:"rowCount"`
}
