package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusion-scoring/internal/models"
)

// ==========================
// Prediction Cache
// ==========================

func TestCacheKey(t *testing.T) {
	rows := [][]interface{}{{1.0, "Kenya"}, {2.0, nil}}
	a, err := CacheKey("score", "Capstone_Project", "3", rows)
	require.NoError(t, err)
	b, err := CacheKey("score", "Capstone_Project", "3", rows)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^score:Capstone_Project:3:[0-9a-f]{64}$`, a)

	other, _ := CacheKey("score", "Capstone_Project", "4", rows)
	assert.NotEqual(t, a, other, "model version is part of the key")
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", []interface{}{int64(1), "no", 0.5}))
	labels, hit, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)

	raw, err := json.Marshal(labels)
	require.NoError(t, err)
	assert.Equal(t, `[1,"no",0.5]`, string(raw), "labels re-encode to the same bytes")

	mr.FastForward(2 * time.Minute)
	_, hit, _ = cache.Get(ctx, "k")
	assert.False(t, hit, "entry expires after ttl")
}

func TestRedisCache_Mocked(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, 10*time.Second)
	ctx := context.Background()

	mock.ExpectGet("miss").RedisNil()
	mock.ExpectSet("k", `[1,0]`, 10*time.Second).SetVal("OK")
	mock.ExpectGet("broken").SetErr(fmt.Errorf("connection reset"))
	mock.ExpectGet("corrupt").SetVal("{not json")

	_, hit, err := cache.Get(ctx, "miss")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", []interface{}{int64(1), int64(0)}))

	_, _, err = cache.Get(ctx, "broken")
	assert.ErrorContains(t, err, "connection reset")

	_, _, err = cache.Get(ctx, "corrupt")
	assert.ErrorContains(t, err, "corrupt")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Audit Log
// ==========================

func TestPostgresAudit_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	rec := models.ScoringRecord{
		RequestID:    "req-1",
		Source:       models.SourceHTTP,
		ModelName:    "Capstone_Project",
		ModelVersion: "3",
		RowCount:     2,
		Status:       models.StatusFailed,
		ErrorCode:    "SCHEMA_MISMATCH",
		DurationMs:   4,
		CreatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO scoring_audit`).
		WithArgs("req-1", "http", "Capstone_Project", "3", 2, "failed", "SCHEMA_MISMATCH", int64(4), false, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO scoring_audit`).
		WillReturnError(fmt.Errorf("relation does not exist"))

	audit := NewPostgresAudit(db)
	require.NoError(t, audit.Record(context.Background(), rec))
	assert.ErrorContains(t, audit.Record(context.Background(), rec), "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingAudit struct {
	records []models.ScoringRecord
	err     error
}

func (a *recordingAudit) Record(ctx context.Context, rec models.ScoringRecord) error {
	a.records = append(a.records, rec)
	return a.err
}

func TestMultiAudit(t *testing.T) {
	assert.Nil(t, NewMultiAudit(nil, nil))

	single := &recordingAudit{}
	assert.Same(t, single, NewMultiAudit(nil, single))

	ok := &recordingAudit{}
	failing := &recordingAudit{err: fmt.Errorf("index unavailable")}
	audit := NewMultiAudit(failing, ok)

	rec := models.ScoringRecord{RequestID: "req-9", Source: models.SourceWorker}
	err := audit.Record(context.Background(), rec)
	assert.ErrorContains(t, err, "index unavailable")
	require.Len(t, ok.records, 1, "a failing log does not stop the others")
	assert.Equal(t, "req-9", ok.records[0].RequestID)
}

// ==========================
// Search Index
// ==========================

func TestESIndexer_Index(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	idx := NewESIndexer(client, "scoring-events")
	require.NoError(t, idx.Index(context.Background(), "run-1", map[string]interface{}{"rows": 3}))
	assert.Equal(t, "/scoring-events/_doc/run-1", gotPath)
	assert.Equal(t, 3.0, gotBody["rows"])
}

func TestESIndexer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.Error(t, NewESIndexer(client, "scoring-events").Index(context.Background(), "", map[string]int{"a": 1}))
}

func TestIndexAudit_Record(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	audit := NewIndexAudit(NewESIndexer(client, "scoring-events"))
	require.NoError(t, audit.Record(context.Background(), models.ScoringRecord{
		RequestID: "req-1",
		Source:    models.SourceHTTP,
		RowCount:  2,
		Status:    models.StatusSucceeded,
	}))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/scoring-events/_doc", gotPath)
	assert.Equal(t, "req-1", gotBody["requestId"])
	assert.Equal(t, "http", gotBody["source"])
	assert.Equal(t, 2.0, gotBody["rowCount"])
}
