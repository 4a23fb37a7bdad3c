// Package artifact downloads the inputs of each planned build, converts
// split bundles into a single package and runs the patcher over it.
package artifact

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/plan"
	"github.com/peachmeow/peachmeow/pkg/resolve"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/peachmeow/peachmeow/pkg/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Working directories, relative to the pipeline root.
const (
	TempDir    = "temp"
	ToolsDir   = "tools"
	PatchesDir = "patches"
	BuildDir   = "build"
)

const (
	// APKEditorSource publishes the bundle converter.
	APKEditorSource = "REAndroid/APKEditor"
	apkEditorJar    = "apkeditor.jar"
	apkEditorLimit  = 30
)

// Pipeline produces the signed artefacts of a plan, one build at a time.
type Pipeline struct {
	Dir        string
	Signing    config.Signing
	Releases   resolve.Lister
	Downloader *Downloader
	Runner     Runner

	apkEditor string
	fetched   map[string]bool
}

// NewPipeline returns a pipeline working under dir. Tools run inside dir, so
// a relative dir is made absolute first.
func NewPipeline(dir string, signing config.Signing, releases resolve.Lister) *Pipeline {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Pipeline{
		Dir:        dir,
		Signing:    signing,
		Releases:   releases,
		Downloader: NewDownloader(),
		Runner:     ExecRunner{Dir: dir},
		fetched:    make(map[string]bool),
	}
}

func (p *Pipeline) path(elem ...string) string {
	return filepath.Join(append([]string{p.Dir}, elem...)...)
}

// Prepare resets the working directories and fetches the bundle converter.
func (p *Pipeline) Prepare(ctx context.Context) error {
	if err := utils.CleanDirs(p.Dir, TempDir, ToolsDir, PatchesDir, BuildDir); err != nil {
		return err
	}

	rels, err := p.Releases.ListReleases(ctx, APKEditorSource, apkEditorLimit)
	if err != nil {
		return errors.Wrap(err, "failed to list APKEditor releases")
	}
	url := ""
	for _, r := range rels {
		if r.Prerelease {
			continue
		}
		for _, a := range r.Assets {
			if strings.HasSuffix(strings.ToLower(a.Name), ".jar") {
				url = a.BrowserDownloadURL
				break
			}
		}
		break
	}
	if url == "" {
		log.Warnf("No APKEditor jar found in %s, bundle conversion unavailable", APKEditorSource)
		return nil
	}

	dest := p.path(ToolsDir, apkEditorJar)
	if err := p.Downloader.Fetch(ctx, url, dest); err != nil {
		return errors.Wrap(err, "apkeditor download failed")
	}
	p.apkEditor = dest
	return nil
}

// Run produces the artefact of b under the build directory.
func (p *Pipeline) Run(ctx context.Context, b plan.Build) (types.BuildRecord, error) {
	cliJar := p.path(ToolsDir, b.CLIFile)
	if err := p.fetchOnce(ctx, b.CLIURL, cliJar); err != nil {
		return types.BuildRecord{}, errors.Wrap(err, "CLI download failed")
	}
	patchFile := p.path(PatchesDir, b.PatchFile)
	if err := p.fetchOnce(ctx, b.PatchURL, patchFile); err != nil {
		return types.BuildRecord{}, errors.Wrap(err, "patch download failed")
	}

	apk, err := p.fetchPackage(ctx, b)
	if err != nil {
		return types.BuildRecord{}, fmt.Errorf("%s: %w", b.Key, err)
	}
	if err := Validate(apk); err != nil {
		return types.BuildRecord{}, fmt.Errorf("%s: %w", b.Key, err)
	}

	out := p.path(BuildDir, b.FileName)
	args := []string{
		"-jar", cliJar, "patch",
		"--keystore", p.Signing.Keystore,
		"--keystore-password", p.Signing.KeystorePassword,
		"--keystore-entry-alias", p.Signing.KeyAlias,
		"--keystore-entry-password", p.Signing.KeyPassword,
		"-p", patchFile,
		"-o", out,
		"--purge",
		apk,
	}
	args = append(args, b.App.PatcherArgs...)
	if err := p.Runner.Run(ctx, "java", args...); err != nil {
		return types.BuildRecord{}, err
	}

	log.Infof("Built %s", b.FileName)
	return types.BuildRecord{
		App:        b.Key,
		File:       out,
		AppVersion: b.AppVersion,
		Variant:    b.App.Variant,
	}, nil
}

// fetchPackage downloads the plain package, falling back to the split bundle.
func (p *Pipeline) fetchPackage(ctx context.Context, b plan.Build) (string, error) {
	apk := p.path(TempDir, b.App.AppName+".apk")
	err := p.Downloader.Fetch(ctx, b.APKURL, apk)
	if err == nil {
		return apk, nil
	}
	log.Infof("No package at %s, trying bundle", b.APKURL)

	apkm := p.path(TempDir, b.App.AppName+".apkm")
	if err := p.Downloader.Fetch(ctx, b.APKMURL, apkm); err != nil {
		return "", err
	}
	if p.apkEditor == "" {
		return "", fmt.Errorf("cannot convert %s: APKEditor not available", apkm)
	}
	if err := p.Runner.Run(ctx, "java", "-jar", p.apkEditor, "m", "-f", "-i", apkm, "-o", apk); err != nil {
		return "", err
	}
	return apk, nil
}

func (p *Pipeline) fetchOnce(ctx context.Context, url, dest string) error {
	if p.fetched == nil {
		p.fetched = make(map[string]bool)
	}
	if p.fetched[dest] {
		return nil
	}
	if err := p.Downloader.Fetch(ctx, url, dest); err != nil {
		return err
	}
	p.fetched[dest] = true
	return nil
}
