package modelregistry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusion-scoring/internal/common/config"
	apperrors "inclusion-scoring/internal/common/errors"
	apphttp "inclusion-scoring/internal/common/http"
	"inclusion-scoring/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeManifest(t *testing.T, dir string, entries ...registry.ModelEntry) string {
	t.Helper()
	reg := registry.NewRegistry()
	reg.Models = entries
	path := filepath.Join(dir, "model-registry.json")
	require.NoError(t, registry.SaveRegistry(reg, path))
	return path
}

func modelColumns() []string {
	return []string{"name", "version", "format", "path", "features", "threshold",
		"positive_label", "negative_label", "description", "created_at"}
}

// ==========================
// File Resolver
// ==========================

func TestFileResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir,
		registry.ModelEntry{Name: "Capstone_Project", Version: "1", Format: "pmml-random-forest", Path: "models/v1.pmml", CreatedAt: created},
		registry.ModelEntry{Name: "Capstone_Project", Version: "2", Format: "pmml-random-forest", Path: "models/v2.pmml", CreatedAt: created.Add(time.Hour)},
	)
	r := NewFileResolver(manifest)

	latest, err := r.Resolve(context.Background(), "Capstone_Project", "")
	require.NoError(t, err)
	assert.Equal(t, "2", latest.Version)
	assert.Equal(t, filepath.Join(dir, "models", "v2.pmml"), latest.Path)

	v1, err := r.Resolve(context.Background(), "Capstone_Project", "1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "models", "v1.pmml"), v1.Path)

	_, err = r.Resolve(context.Background(), "Unknown", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeModelNotFound))
}

func TestFileResolver_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileResolver(filepath.Join(dir, "absent.json")).Resolve(context.Background(), "m", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeModelNotFound))

	garbled := filepath.Join(dir, "garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte("{not json"), 0o644))
	_, err = NewFileResolver(garbled).Resolve(context.Background(), "m", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRegistryFailed))
}

// ==========================
// Postgres Resolver
// ==========================

func TestPostgresResolver_Latest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(modelColumns()).
		AddRow("Capstone_Project", "3", "lightgbm", "/models/v3.txt", "{age,income}", 0.6, "1", "0", nil, created)
	mock.ExpectQuery(`FROM model_registry WHERE name = \$1 ORDER BY created_at DESC, version DESC LIMIT 1`).
		WithArgs("Capstone_Project").
		WillReturnRows(rows)

	entry, err := NewPostgresResolver(db).Resolve(context.Background(), "Capstone_Project", "")
	require.NoError(t, err)
	assert.Equal(t, "3", entry.Version)
	assert.Equal(t, []string{"age", "income"}, entry.Features)
	assert.Equal(t, 0.6, entry.Threshold)
	assert.Equal(t, "", entry.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolver_Errors(t *testing.T) {
	tests := []struct {
		name     string
		queryErr error
		wantCode apperrors.ErrorCode
	}{
		{name: "no rows", queryErr: sql.ErrNoRows, wantCode: apperrors.ErrCodeModelNotFound},
		{name: "connection lost", queryErr: fmt.Errorf("connection refused"), wantCode: apperrors.ErrCodeRegistryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(`FROM model_registry WHERE name = \$1 AND version = \$2`).
				WithArgs("m", "7").
				WillReturnError(tt.queryErr)

			_, err = NewPostgresResolver(db).Resolve(context.Background(), "m", "7")
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Remote Resolver
// ==========================

func newHub(t *testing.T, downloads *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/Capstone_Project", func(w http.ResponseWriter, r *http.Request) {
		version := r.URL.Query().Get("version")
		if version == "" {
			version = "4"
		}
		if version != "4" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(registry.ModelEntry{
			Name: "Capstone_Project", Version: "4", Format: "pmml-gbm",
			Path: "bundles/model.pmml", CreatedAt: created,
		})
	})
	mux.HandleFunc("/models/Capstone_Project/download", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(downloads, 1)
		assert.Equal(t, "4", r.URL.Query().Get("version"))
		w.Write([]byte("<PMML/>"))
	})
	return httptest.NewServer(mux)
}

func TestRemoteResolver_DownloadsOnce(t *testing.T) {
	var downloads int32
	hub := newHub(t, &downloads)
	defer hub.Close()

	cacheDir := t.TempDir()
	r := NewRemoteResolver(hub.URL+"/", cacheDir, apphttp.NewClient(5*time.Second))

	entry, err := r.Resolve(context.Background(), "Capstone_Project", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "Capstone_Project", "4", "model.pmml"), entry.Path)
	data, err := os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, "<PMML/>", string(data))

	_, err = r.Resolve(context.Background(), "Capstone_Project", "4")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&downloads), "cached artifact is reused")
}

func TestRemoteResolver_Errors(t *testing.T) {
	var downloads int32
	hub := newHub(t, &downloads)
	defer hub.Close()
	r := NewRemoteResolver(hub.URL, t.TempDir(), apphttp.NewClient(5*time.Second))

	_, err := r.Resolve(context.Background(), "Capstone_Project", "9")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeModelNotFound))

	down := NewRemoteResolver("http://127.0.0.1:1", t.TempDir(), apphttp.NewClient(time.Second))
	_, err = down.Resolve(context.Background(), "Capstone_Project", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRegistryFailed))
}

func TestRemoteResolver_RejectsUnsafeEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"version traversal", `{"name":"Capstone_Project","version":"../../../escaped","path":"x.pmml"}`},
		{"name traversal", `{"name":"../other","version":"1","path":"x.pmml"}`},
		{"version with separator", `{"name":"Capstone_Project","version":"1/2","path":"x.pmml"}`},
		{"empty path", `{"name":"Capstone_Project","version":"1","path":""}`},
		{"empty version", `{"name":"Capstone_Project","version":"","path":"x.pmml"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var downloads int32
			mux := http.NewServeMux()
			mux.HandleFunc("/models/Capstone_Project", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.entry))
			})
			mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&downloads, 1)
				w.Write([]byte("<PMML/>"))
			})
			hub := httptest.NewServer(mux)
			defer hub.Close()

			root := t.TempDir()
			cacheDir := filepath.Join(root, "a", "b", "cache")
			r := NewRemoteResolver(hub.URL, cacheDir, apphttp.NewClient(5*time.Second))

			_, err := r.Resolve(context.Background(), "Capstone_Project", "")
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRegistryFailed))
			assert.Equal(t, int32(0), atomic.LoadInt32(&downloads))
			_, statErr := os.Stat(filepath.Join(root, "escaped"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

// ==========================
// Factory
// ==========================

func TestNew(t *testing.T) {
	r, err := New(config.RegistryConfig{Type: "file", ManifestPath: "x.json"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileResolver{}, r)

	_, err = New(config.RegistryConfig{Type: "postgres"}, nil)
	assert.Error(t, err)

	r, err = New(config.RegistryConfig{Type: "remote", RemoteURL: "http://hub", Timeout: 1000}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RemoteResolver{}, r)

	_, err = New(config.RegistryConfig{Type: "mlflow"}, nil)
	assert.Error(t, err)
}

func TestSpec(t *testing.T) {
	s := Spec(registry.ModelEntry{Name: "m", Version: "1", Format: "lightgbm", Path: "/a", Threshold: 0.3, Features: []string{"x"}})
	assert.Equal(t, "lightgbm", s.Format)
	assert.Equal(t, 0.3, s.Threshold)
	assert.Equal(t, []string{"x"}, s.Features)
}
