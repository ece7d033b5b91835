// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusion-scoring/internal/batch"
	"inclusion-scoring/internal/common/config"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/endpoint"
	"inclusion-scoring/internal/frame"
	"inclusion-scoring/internal/modelregistry"
	"inclusion-scoring/internal/models"
	"inclusion-scoring/internal/predictor"

	sr "inclusion-scoring/internal/workers/scoring/score-records"
)

const manifestPath = "../../configs/model-registry.json"

func init() {
	gin.SetMode(gin.TestMode)
}

// ==========================
// Helpers
// ==========================

func initHandler(t *testing.T) *endpoint.Handler {
	t.Helper()
	resolver, err := modelregistry.New(config.RegistryConfig{Type: "file", ManifestPath: manifestPath}, nil)
	require.NoError(t, err)

	h, err := endpoint.Init(context.Background(), endpoint.Options{
		ModelName: config.DefaultModelName,
		Resolver:  resolver,
		Loader:    predictor.NewFileLoader(),
		Logger:    logger.NewTestLogger(t),
	})
	require.NoError(t, err, "demo model from configs/ must load")
	return h
}

// surveyRow returns a full positional row with the demo model's features set.
func surveyRow(id int, age, literacy, savings float64) []interface{} {
	row := make([]interface{}, len(models.Columns))
	for i, c := range models.Columns {
		switch c {
		case "row_id":
			row[i] = id
		case "age":
			row[i] = age
		case "literacy":
			row[i] = literacy
		case "formal_savings":
			row[i] = savings
		default:
			row[i] = 0
		}
	}
	return row
}

// ==========================
// Endpoint
// ==========================

func TestE2E_HTTPScoring(t *testing.T) {
	h := initHandler(t)
	server := httptest.NewServer(endpoint.NewServer(h, config.ServerConfig{MaxBodyBytes: 1 << 20}, logger.NewTestLogger(t)).Handler())
	defer server.Close()

	body, err := json.Marshal(map[string]interface{}{
		"data": []interface{}{
			surveyRow(1, 25, 1, 0),
			surveyRow(2, 60, 0, 1),
			map[string]interface{}{"age": 30, "literacy": 1, "formal_savings": 1},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/score", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.ScoreResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []interface{}{1.0, 0.0, 1.0}, out.Result)

	short, err := json.Marshal(map[string]interface{}{"data": []interface{}{[]interface{}{1, 2, 3}}})
	require.NoError(t, err)
	resp2, err := http.Post(server.URL+"/score", "application/json", strings.NewReader(string(short)))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp2.StatusCode)
}

func TestE2E_RunIsIdempotent(t *testing.T) {
	h := initHandler(t)
	raw := []byte(`{"data": [{"age": 25, "literacy": 1, "formal_savings": 0}]}`)
	first := h.Run(context.Background(), raw)
	assert.JSONEq(t, `{"result": [1]}`, string(first))
	assert.Equal(t, first, h.Run(context.Background(), raw))
}

// ==========================
// Worker
// ==========================

func TestE2E_WorkerExecute(t *testing.T) {
	h := initHandler(t)
	worker := sr.NewHandler(sr.LoadConfig(config.WorkerConfig{Timeout: 5000}), h, logger.NewTestLogger(t))

	out, err := worker.Execute(context.Background(), &sr.Input{
		Data:      []interface{}{surveyRow(1, 70, 0, 0)},
		RequestID: "e2e-worker",
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(0)}, out.Result)
	assert.Equal(t, config.DefaultModelName, out.ModelName)
	assert.Equal(t, 1, out.RowCount)
}

// ==========================
// Batch
// ==========================

func TestE2E_BatchRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "test.csv")
	output := filepath.Join(dir, "scored.csv")

	csv := "row_id,age,literacy,formal_savings,ActionTaken,ClassInd\n" +
		"1,25,1,0,1,2\n" +
		"2,60,0,1,0,1\n" +
		"3,33,0,1,0,1\n"
	require.NoError(t, os.WriteFile(input, []byte(csv), 0o644))

	resolver := modelregistry.NewFileResolver(manifestPath)
	entry, err := resolver.Resolve(context.Background(), config.DefaultModelName, "")
	require.NoError(t, err)

	runner := batch.NewRunner(predictor.NewFileLoader(), logger.NewTestLogger(t))
	summary, err := runner.Run(context.Background(), batch.Job{
		InputPath:    input,
		OutputPath:   output,
		Model:        modelregistry.Spec(entry),
		TargetColumn: "ActionTaken",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	require.NotNil(t, summary.Accuracy)
	assert.InDelta(t, 2.0/3.0, *summary.Accuracy, 1e-9)

	scored, err := frame.ReadCSVFile(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"row_id", "age", "literacy", "formal_savings", "ActionTaken", "ClassInd", "ScoredLabel"}, scored.Columns())
	labels, err := scored.Column("ScoredLabel")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"1", "0", "1"}, labels)
}
