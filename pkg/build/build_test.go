package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[YouTube]
package-name = "com.google.android.youtube"
app-source = "peachmeow/apks"
version = "19.47.53"

[Reddit]
enabled = false
package-name = "com.reddit.frontpage"
app-source = "peachmeow/apks"
`

func newAPI(t *testing.T, calls *[]string) *httptest.Server {
	t.Helper()
	cli := types.Release{
		TagName: "v1.5.0",
		Assets:  []types.Asset{{Name: "morphe-cli-1.5.0-all.jar", BrowserDownloadURL: "https://dl/cli.jar"}},
	}
	routes := map[string]any{
		"/repos/MorpheApp/morphe-patches/releases":         []types.Release{{TagName: "v5.2.0"}},
		"/repos/MorpheApp/morphe-cli/releases":             []types.Release{{TagName: "v1.5.0"}},
		"/repos/MorpheApp/morphe-cli/releases/tags/v1.5.0": cli,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *github.Client {
	return &github.Client{BaseURL: srv.URL, UploadURL: srv.URL, HTTP: srv.Client()}
}

func TestBuildRequiresCredentials(t *testing.T) {
	err := Build(context.Background(), &types.Options{}, config.Settings{})
	var mce *types.MissingCredentialError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, config.EnvKeystorePassword, mce.Name)
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o600))

	var calls []string
	srv := newAPI(t, &calls)
	s := config.Settings{
		ConfigFile:   cfgPath,
		VersionsFile: filepath.Join(dir, "versions.json"),
		WorkDir:      dir,
	}

	out := new(bytes.Buffer)
	require.NoError(t, run(context.Background(), &types.Options{DryRun: true}, s, testClient(srv), out))
	assert.Contains(t, out.String(), "file: YouTube-v19.47.53-Morphe-v5.2.0.apk")
	assert.Contains(t, out.String(), "release: Morphe-v5.2.0")
	assert.Contains(t, out.String(), "[✓] Dry run complete")

	// Nothing is downloaded, written or published.
	assert.NoFileExists(t, filepath.Join(dir, "versions.json"))
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	for _, c := range calls {
		assert.Contains(t, c, "GET ")
	}
}

func TestRunMissingConfig(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	srv := newAPI(t, &calls)
	s := config.Settings{
		ConfigFile:   filepath.Join(dir, "config.toml"),
		VersionsFile: filepath.Join(dir, "versions.json"),
	}
	err := run(context.Background(), &types.Options{DryRun: true}, s, testClient(srv), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Empty(t, calls)
}

type fakeTags struct {
	err     error
	deleted []string
}

func (f *fakeTags) DeleteTag(_ context.Context, tag string) error {
	f.deleted = append(f.deleted, tag)
	return f.err
}

func TestReleaseHostDeleteTag(t *testing.T) {
	testCases := []struct {
		name      string
		tags      *fakeTags
		wantCalls []string
	}{
		{name: "git", tags: &fakeTags{}},
		{
			name:      "api fallback",
			tags:      &fakeTags{err: errors.New("push rejected")},
			wantCalls: []string{"DELETE /repos/me/builds/git/refs/tags/Morphe-v1.0.0"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			srv := newAPI(t, &calls)
			h := &releaseHost{client: testClient(srv), tags: tc.tags, repository: "me/builds"}
			require.NoError(t, h.DeleteTag(context.Background(), "Morphe-v1.0.0"))
			assert.Equal(t, []string{"Morphe-v1.0.0"}, tc.tags.deleted)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestReleaseHostListReleases(t *testing.T) {
	var calls []string
	srv := newAPI(t, &calls)
	h := &releaseHost{client: testClient(srv), repository: "MorpheApp/morphe-patches"}
	rels, err := h.ListReleases(context.Background())
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "v5.2.0", rels[0].TagName)
}
