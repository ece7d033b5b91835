package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name, version string, created time.Time) ModelEntry {
	return ModelEntry{
		Name:      name,
		Version:   version,
		Format:    "pmml-random-forest",
		Path:      "models/" + name + "-" + version + ".pmml",
		CreatedAt: created,
	}
}

func TestFind_LatestAndExact(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := &ModelRegistry{Models: []ModelEntry{
		entry("Capstone_Project", "1", base),
		entry("Capstone_Project", "3", base.Add(time.Hour)),
		entry("Capstone_Project", "2", base.Add(2*time.Hour)),
		entry("Other", "9", base.Add(3*time.Hour)),
	}}

	latest, ok := reg.Find("Capstone_Project", "")
	require.True(t, ok)
	assert.Equal(t, "2", latest.Version)

	exact, ok := reg.Find("Capstone_Project", "1")
	require.True(t, ok)
	assert.Equal(t, "1", exact.Version)

	_, ok = reg.Find("Capstone_Project", "7")
	assert.False(t, ok)
	_, ok = reg.Find("Missing", "")
	assert.False(t, ok)
}

func TestFind_TieBreaksOnVersion(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := &ModelRegistry{Models: []ModelEntry{entry("m", "a", ts), entry("m", "b", ts)}}
	got, _ := reg.Find("m", "")
	assert.Equal(t, "b", got.Version)
}

func TestAddAndValidate(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Validate(), "empty registry is invalid")

	require.NoError(t, reg.Add(entry("m", "1", time.Time{})))
	assert.Error(t, reg.Add(entry("m", "1", time.Time{})))
	assert.False(t, reg.Models[0].CreatedAt.IsZero())
	require.NoError(t, reg.Validate())

	bad := entry("m", "2", time.Now())
	bad.Format = "pickle"
	reg.Models = append(reg.Models, bad)
	assert.ErrorContains(t, reg.Validate(), "unsupported format")

	reg.Models[1].Format = "lightgbm"
	reg.Models[1].Threshold = 1.5
	assert.ErrorContains(t, reg.Validate(), "threshold")
}

func TestSaveAndLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model-registry.json")
	reg := NewRegistry()
	require.NoError(t, reg.Add(entry("m", "1", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, SaveRegistry(reg, path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, loaded.Models, 1)
	assert.Equal(t, reg.Models[0], loaded.Models[0])
}

func TestResolvePath(t *testing.T) {
	abs, err := ResolvePath("/etc/scoring/model-registry.json", ModelEntry{Path: "models/a.pmml"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/scoring/models/a.pmml", abs)

	abs, err = ResolvePath("/etc/scoring/model-registry.json", ModelEntry{Path: "/opt/a.pmml"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/a.pmml", abs)
}
