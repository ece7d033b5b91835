package modelregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	apperrors "inclusion-scoring/internal/common/errors"
	apphttp "inclusion-scoring/internal/common/http"
	"inclusion-scoring/pkg/registry"
)

// RemoteResolver asks a model hub for an entry and downloads its artifact
// into a local cache directory:
//
//	GET {base}/models/{name}?version=v           entry metadata as JSON
//	GET {base}/models/{name}/download?version=v  artifact bytes
type RemoteResolver struct {
	baseURL  string
	cacheDir string
	client   *apphttp.Client
}

func NewRemoteResolver(baseURL, cacheDir string, client *apphttp.Client) *RemoteResolver {
	return &RemoteResolver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
		client:   client,
	}
}

func (r *RemoteResolver) Resolve(ctx context.Context, name, version string) (registry.ModelEntry, error) {
	var entry registry.ModelEntry
	if err := r.getJSON(ctx, r.modelURL(name, version, false), &entry); err != nil {
		return registry.ModelEntry{}, r.classify(err, name, version)
	}
	if entry.Name == "" {
		entry.Name = name
	}

	local, err := r.localPath(entry)
	if err != nil {
		return registry.ModelEntry{}, apperrors.NewRegistryFailedError(err)
	}
	if _, err := os.Stat(local); err == nil {
		entry.Path = local
		return entry, nil
	}

	// download the version the hub reported, not the one asked for
	if err := r.download(ctx, r.modelURL(entry.Name, entry.Version, true), local); err != nil {
		return registry.ModelEntry{}, r.classify(err, name, version)
	}
	entry.Path = local
	return entry, nil
}

// localPath places the artifact at cacheDir/name/version/file. Hub-supplied
// segments must be plain names so the artifact cannot land outside cacheDir.
func (r *RemoteResolver) localPath(entry registry.ModelEntry) (string, error) {
	file := filepath.Base(filepath.FromSlash(entry.Path))
	for field, seg := range map[string]string{"name": entry.Name, "version": entry.Version, "path": file} {
		if !safeSegment(seg) {
			return "", fmt.Errorf("model hub returned invalid %s %q", field, seg)
		}
	}

	local := filepath.Join(r.cacheDir, entry.Name, entry.Version, file)
	rel, err := filepath.Rel(r.cacheDir, local)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q escapes cache directory", local)
	}
	return local, nil
}

func safeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.Contains(s, "..")
}

func (r *RemoteResolver) modelURL(name, version string, download bool) string {
	u := fmt.Sprintf("%s/models/%s", r.baseURL, url.PathEscape(name))
	if download {
		u += "/download"
	}
	if version != "" {
		u += "?version=" + url.QueryEscape(version)
	}
	return u
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model hub returned status %d", e.status)
}

func (r *RemoteResolver) classify(err error, name, version string) error {
	if se, ok := err.(*statusError); ok && se.status == http.StatusNotFound {
		return apperrors.NewModelNotFoundError(name, version)
	}
	return apperrors.NewRegistryFailedError(err)
}

func (r *RemoteResolver) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &statusError{status: resp.StatusCode}
	}
	return resp, nil
}

func (r *RemoteResolver) getJSON(ctx context.Context, u string, out interface{}) error {
	resp, err := r.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *RemoteResolver) download(ctx context.Context, u, dest string) error {
	resp, err := r.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
