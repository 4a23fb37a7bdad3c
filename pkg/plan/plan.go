// Package plan turns the app configuration into an ordered list of builds
// with every upstream version resolved.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/peachmeow/peachmeow/pkg/compat"
	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/resolve"
	"github.com/peachmeow/peachmeow/pkg/types"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultDownloadBaseURL = "https://github.com"
	DefaultRawBaseURL      = "https://raw.githubusercontent.com"

	appReleaseLimit = 100
)

// ReleaseSource is the upstream API the planner reads from.
type ReleaseSource interface {
	resolve.Lister
	compat.JSONFetcher
	ReleaseByTag(ctx context.Context, repo, tag string) (*types.Release, error)
}

// Build is one planned app build.
type Build struct {
	App types.AppSpec `yaml:"-"`

	Key             string `yaml:"app"`
	FileName        string `yaml:"file"`
	AppVersion      string `yaml:"appVersion"`
	PatchSource     string `yaml:"patchSource"`
	PatchVersion    string `yaml:"patchVersion"`
	PatchPrerelease bool   `yaml:"patchPrerelease"`
	CLISource       string `yaml:"cliSource"`
	CLIVersion      string `yaml:"cliVersion"`

	PatchURL  string `yaml:"patchURL"`
	PatchFile string `yaml:"-"`
	CLIURL    string `yaml:"cliURL"`
	CLIFile   string `yaml:"-"`
	APKURL    string `yaml:"apkURL"`
	APKMURL   string `yaml:"-"`
}

// SourceVersion is the ledger-to-be entry of one patch source.
type SourceVersion struct {
	Source     string `yaml:"source"`
	Version    string `yaml:"version"`
	CLI        string `yaml:"cli"`
	Prerelease bool   `yaml:"prerelease"`
}

// Plan is the ordered outcome of planning one run.
type Plan struct {
	Builds []Build `yaml:"builds"`

	// Sources holds one entry per patch source in first-use order.
	Sources []SourceVersion `yaml:"sources"`
}

// First returns the first patch source processed.
func (p *Plan) First() (SourceVersion, bool) {
	if len(p.Sources) == 0 {
		return SourceVersion{}, false
	}
	return p.Sources[0], true
}

// Brand returns the brand of the last planned build.
func (p *Plan) Brand() string {
	if len(p.Builds) == 0 {
		return ""
	}
	return p.Builds[len(p.Builds)-1].App.Brand
}

// CLI returns the CLI version of the last planned build.
func (p *Plan) CLI() string {
	if len(p.Builds) == 0 {
		return ""
	}
	return p.Builds[len(p.Builds)-1].CLIVersion
}

func (p *Plan) record(source string, patch types.ResolvedVersion, cli string) {
	for i := range p.Sources {
		if p.Sources[i].Source == source {
			p.Sources[i].Version = patch.Version
			p.Sources[i].Prerelease = patch.Prerelease
			p.Sources[i].CLI = cli
			return
		}
	}
	p.Sources = append(p.Sources, SourceVersion{Source: source, Version: patch.Version, CLI: cli, Prerelease: patch.Prerelease})
}

// Planner builds plans. Resolutions are memoised for the planner's lifetime,
// so one planner must serve exactly one run.
type Planner struct {
	api      ReleaseSource
	patches  *resolve.Cache
	cliModes *resolve.Cache
	cliJars  map[resolve.Key]string

	DownloadBaseURL string
	RawBaseURL      string
}

// NewPlanner returns a planner reading from api.
func NewPlanner(api ReleaseSource) *Planner {
	resolver := resolve.New(api)
	return &Planner{
		api:             api,
		patches:         resolve.NewCache(resolver),
		cliModes:        resolve.NewCache(resolver),
		cliJars:         make(map[resolve.Key]string),
		DownloadBaseURL: DefaultDownloadBaseURL,
		RawBaseURL:      DefaultRawBaseURL,
	}
}

// Build plans every enabled app whose patch source is targeted by filter.
// The first failing app aborts planning.
func (p *Planner) Build(ctx context.Context, cfg *config.Config, filter string) (*Plan, error) {
	targets := cfg.Targets(filter)

	var apps []types.AppSpec
	for _, app := range cfg.Enabled() {
		if !targets[app.PatchSource] {
			log.Debugf("Skipping %s: patch source %s not targeted", app.Key, app.PatchSource)
			continue
		}
		apps = append(apps, app)
	}
	if err := config.Validate(apps); err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, app := range apps {
		b, err := p.plan(ctx, plan, app)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", app.Key, err)
		}
		log.Infof("Build: %s", b.FileName)
		plan.Builds = append(plan.Builds, b)
	}
	return plan, nil
}

func (p *Planner) plan(ctx context.Context, plan *Plan, app types.AppSpec) (Build, error) {
	patch, err := p.patches.Resolve(ctx, app.PatchSource, app.PatchMode)
	if err != nil {
		return Build{}, err
	}

	cli, err := p.cliModes.Resolve(ctx, app.CLISource, app.CLIMode)
	if err != nil {
		return Build{}, err
	}
	cliURL, err := p.cliJar(ctx, app.CLISource, cli.Version)
	if err != nil {
		return Build{}, err
	}
	plan.record(app.PatchSource, patch, cli.Version)

	appVersion := app.Version
	if app.IsAuto() {
		appVersion, err = p.selectAppVersion(ctx, app, patch)
		if err != nil {
			return Build{}, err
		}
	}

	tag := fmt.Sprintf("%s-%s", app.AppName, appVersion)
	base := fmt.Sprintf("%s/%s/releases/download/%s/%s", p.DownloadBaseURL, app.AppSource, tag, tag)
	return Build{
		App:             app,
		Key:             app.Key,
		FileName:        FileName(app, appVersion, patch.Version),
		AppVersion:      appVersion,
		PatchSource:     app.PatchSource,
		PatchVersion:    patch.Version,
		PatchPrerelease: patch.Prerelease,
		CLISource:       app.CLISource,
		CLIVersion:      cli.Version,
		PatchURL:        fmt.Sprintf("%s/%s/releases/download/v%s/patches-%s.mpp", p.DownloadBaseURL, app.PatchSource, patch.Version, patch.Version),
		PatchFile:       fmt.Sprintf("%s-%s.mpp", repoName(app.PatchSource), patch.Version),
		CLIURL:          cliURL,
		CLIFile:         fmt.Sprintf("%s-%s.jar", repoName(app.CLISource), cli.Version),
		APKURL:          base + ".apk",
		APKMURL:         base + ".apkm",
	}, nil
}

// cliJar locates the patcher jar of a CLI release, once per (source, version).
func (p *Planner) cliJar(ctx context.Context, source, version string) (string, error) {
	key := resolve.Key{Source: source, Mode: version}
	if u, ok := p.cliJars[key]; ok {
		return u, nil
	}

	rel, err := p.api.ReleaseByTag(ctx, source, "v"+version)
	if err != nil {
		return "", err
	}
	for _, a := range rel.Assets {
		n := strings.ToLower(a.Name)
		if strings.HasPrefix(n, "morphe-cli") && strings.HasSuffix(n, "-all.jar") {
			p.cliJars[key] = a.BrowserDownloadURL
			return a.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("morphe-cli all.jar not found for v%s", version)
}

func (p *Planner) selectAppVersion(ctx context.Context, app types.AppSpec, patch types.ResolvedVersion) (string, error) {
	m, err := compat.Fetch(ctx, p.api, p.PatchesListURL(app, patch))
	if err != nil {
		return "", err
	}

	rels, err := p.api.ListReleases(ctx, app.AppSource, appReleaseLimit)
	if err != nil {
		return "", fmt.Errorf("failed to list releases of %s: %w", app.AppSource, err)
	}
	tags := make([]string, 0, len(rels))
	for _, r := range rels {
		tags = append(tags, r.TagName)
	}

	available := compat.AvailableVersions(tags, app.AppName)
	if len(available) == 0 {
		return "", fmt.Errorf("no %s- releases found in %s", app.AppName, app.AppSource)
	}
	return compat.Select(m, app.Key, app.PackageName, available)
}

// PatchesListURL returns the compatibility document of the resolved patch release.
func (p *Planner) PatchesListURL(app types.AppSpec, patch types.ResolvedVersion) string {
	if app.PatchesList != "" {
		return github.BlobToRaw(app.PatchesList)
	}
	branch := "main"
	if patch.Prerelease {
		branch = "dev"
	}
	return fmt.Sprintf("%s/%s/%s/patches-list.json", p.RawBaseURL, app.PatchSource, branch)
}

// FileName composes the artefact name
// {appName}[-v{appVersion}]-{brand}[-{variant}]-v{patchVersion}.apk.
// The app version is only part of the name when it is pinned.
func FileName(app types.AppSpec, appVersion, patchVersion string) string {
	parts := []string{app.AppName}
	if !app.IsAuto() {
		parts = append(parts, "v"+appVersion)
	}
	parts = append(parts, app.Brand)
	if app.Variant != "" {
		parts = append(parts, app.Variant)
	}
	parts = append(parts, "v"+patchVersion)
	return strings.Join(parts, "-") + ".apk"
}

func repoName(source string) string {
	if i := strings.LastIndex(source, "/"); i >= 0 {
		return source[i+1:]
	}
	return source
}
