package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/plan"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apkBytes(t *testing.T) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range []string{"AndroidManifest.xml", "classes.dex"} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write(bytes.Repeat([]byte{0x42}, 8000))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testDownloader() *Downloader {
	d := NewDownloader()
	d.Delay = time.Millisecond
	return d
}

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls  []call
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return f.err
	}
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return os.WriteFile(args[i+1], f.output, 0o600)
		}
	}
	return nil
}

type fakeLister struct {
	releases []types.Release
}

func (f *fakeLister) ListReleases(_ context.Context, _ string, _ int) ([]types.Release, error) {
	return f.releases, nil
}

func TestFetch(t *testing.T) {
	var hits int32
	big := bytes.Repeat([]byte("x"), MinSize+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/flaky":
			if n < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write(big)
		case "/small":
			_, _ = w.Write([]byte("tiny"))
		case "/ok":
			_, _ = w.Write(big)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	testCases := []struct {
		name     string
		path     string
		wantErr  bool
		wantHits int32
	}{
		{name: "ok", path: "/ok", wantHits: 1},
		{name: "retried until success", path: "/flaky", wantHits: 3},
		{name: "too small", path: "/small", wantErr: true, wantHits: 3},
		{name: "not found", path: "/missing", wantErr: true, wantHits: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			atomic.StoreInt32(&hits, 0)
			dest := filepath.Join(t.TempDir(), "sub", "file")
			err := testDownloader().Fetch(context.Background(), srv.URL+tc.path, dest)
			assert.Equal(t, tc.wantHits, atomic.LoadInt32(&hits))
			if tc.wantErr {
				var de *types.DownloadError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, srv.URL+tc.path, de.URL)
				assert.NoFileExists(t, dest)
				return
			}
			require.NoError(t, err)
			assert.FileExists(t, dest)
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	apk := filepath.Join(dir, "app.apk")
	require.NoError(t, os.WriteFile(apk, apkBytes(t), 0o600))
	assert.NoError(t, Validate(apk))

	txt := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(txt, []byte("<html><body>Not Found</body></html>"), 0o600))
	err := Validate(txt)
	var iae *types.InvalidArtifactError
	require.ErrorAs(t, err, &iae)
	assert.Equal(t, txt, iae.Path)

	assert.Error(t, Validate(filepath.Join(dir, "missing.apk")))
}

func TestRedact(t *testing.T) {
	args := []string{"--keystore", "ks.bks", "--keystore-password", "s1", "--keystore-entry-alias", "a", "--keystore-entry-password", "s2", "--purge"}
	assert.Equal(t,
		[]string{"--keystore", "ks.bks", "--keystore-password", "***", "--keystore-entry-alias", "a", "--keystore-entry-password", "***", "--purge"},
		Redact(args))
	assert.Equal(t, "s1", args[3])
}

func TestExecRunner(t *testing.T) {
	r := ExecRunner{Dir: t.TempDir()}
	assert.NoError(t, r.Run(context.Background(), "echo", "hello"))

	err := r.Run(context.Background(), "false")
	var te *types.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "false", te.Tool)
}

func TestNewPipelineRelativeDir(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join("checkout", ToolsDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("checkout", ToolsDir, "cli.jar"), []byte("jar"), 0o600))

	p := NewPipeline("checkout", config.Signing{}, &fakeLister{})
	assert.True(t, filepath.IsAbs(p.Dir))
	assert.NoError(t, p.Runner.Run(context.Background(), "test", "-f", p.path(ToolsDir, "cli.jar")))
}

func newTestServer(t *testing.T, apk []byte, serveAPK bool) *httptest.Server {
	t.Helper()
	big := bytes.Repeat([]byte("j"), MinSize+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cli.jar", "/patches.mpp", "/apkeditor.jar", "/app.apkm":
			_, _ = w.Write(big)
		case "/app.apk":
			if !serveAPK {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(apk)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testBuild(base string, args ...string) plan.Build {
	return plan.Build{
		App:        types.AppSpec{Key: "YouTube", AppName: "YouTube", Variant: "arm64", PatcherArgs: args},
		Key:        "YouTube",
		FileName:   "YouTube-Morphe-arm64-v5.2.0.apk",
		AppVersion: "19.47.53",
		CLIURL:     base + "/cli.jar",
		CLIFile:    "morphe-cli-1.5.0.jar",
		PatchURL:   base + "/patches.mpp",
		PatchFile:  "morphe-patches-5.2.0.mpp",
		APKURL:     base + "/app.apk",
		APKMURL:    base + "/app.apkm",
	}
}

func newTestPipeline(t *testing.T, srv *httptest.Server, runner Runner) *Pipeline {
	t.Helper()
	lister := &fakeLister{releases: []types.Release{
		{TagName: "V1.5.0", Prerelease: true, Assets: []types.Asset{{Name: "APKEditor-1.5.0.jar", BrowserDownloadURL: srv.URL + "/beta.jar"}}},
		{TagName: "V1.4.2", Assets: []types.Asset{{Name: "APKEditor-1.4.2.jar", BrowserDownloadURL: srv.URL + "/apkeditor.jar"}}},
	}}
	p := NewPipeline(t.TempDir(), config.Signing{
		Keystore:         "release.bks",
		KeystorePassword: "ks-secret",
		KeyAlias:         "alias",
		KeyPassword:      "key-secret",
	}, lister)
	p.Downloader = testDownloader()
	p.Runner = runner
	require.NoError(t, p.Prepare(context.Background()))
	return p
}

func TestPipelineRun(t *testing.T) {
	apk := apkBytes(t)
	srv := newTestServer(t, apk, true)
	runner := &fakeRunner{output: apk}
	p := newTestPipeline(t, srv, runner)

	for _, d := range []string{TempDir, ToolsDir, PatchesDir, BuildDir} {
		assert.DirExists(t, filepath.Join(p.Dir, d))
	}
	assert.FileExists(t, filepath.Join(p.Dir, ToolsDir, apkEditorJar))

	rec, err := p.Run(context.Background(), testBuild(srv.URL, "-e", "Hide ads"))
	require.NoError(t, err)
	assert.Equal(t, types.BuildRecord{
		App:        "YouTube",
		File:       filepath.Join(p.Dir, BuildDir, "YouTube-Morphe-arm64-v5.2.0.apk"),
		AppVersion: "19.47.53",
		Variant:    "arm64",
	}, rec)
	assert.FileExists(t, rec.File)

	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	assert.Equal(t, "java", c.name)
	assert.Equal(t, []string{
		"-jar", filepath.Join(p.Dir, ToolsDir, "morphe-cli-1.5.0.jar"), "patch",
		"--keystore", "release.bks",
		"--keystore-password", "ks-secret",
		"--keystore-entry-alias", "alias",
		"--keystore-entry-password", "key-secret",
		"-p", filepath.Join(p.Dir, PatchesDir, "morphe-patches-5.2.0.mpp"),
		"-o", rec.File,
		"--purge",
		filepath.Join(p.Dir, TempDir, "YouTube.apk"),
		"-e", "Hide ads",
	}, c.args)
}

func TestPipelineBundleFallback(t *testing.T) {
	apk := apkBytes(t)
	srv := newTestServer(t, apk, false)
	runner := &fakeRunner{output: apk}
	p := newTestPipeline(t, srv, runner)

	_, err := p.Run(context.Background(), testBuild(srv.URL))
	require.NoError(t, err)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{
		"-jar", filepath.Join(p.Dir, ToolsDir, apkEditorJar), "m", "-f",
		"-i", filepath.Join(p.Dir, TempDir, "YouTube.apkm"),
		"-o", filepath.Join(p.Dir, TempDir, "YouTube.apk"),
	}, runner.calls[0].args)
}

func TestPipelineRejectsInvalidPackage(t *testing.T) {
	srv := newTestServer(t, bytes.Repeat([]byte("<html>"), 5000), true)
	runner := &fakeRunner{}
	p := newTestPipeline(t, srv, runner)

	_, err := p.Run(context.Background(), testBuild(srv.URL))
	var iae *types.InvalidArtifactError
	require.ErrorAs(t, err, &iae)
	assert.Empty(t, runner.calls)
}

func TestPipelineToolFailureAborts(t *testing.T) {
	apk := apkBytes(t)
	srv := newTestServer(t, apk, true)
	runner := &fakeRunner{err: &types.ToolError{Tool: "java"}}
	p := newTestPipeline(t, srv, runner)

	_, err := p.Run(context.Background(), testBuild(srv.URL))
	var te *types.ToolError
	assert.ErrorAs(t, err, &te)
}
