// Package config loads the multi-app build configuration and the process settings.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/google/shlex"
	"github.com/hashicorp/go-multierror"
	"github.com/peachmeow/peachmeow/pkg/types"
)

const (
	DefaultPatchesSource = "MorpheApp/morphe-patches"
	DefaultCLISource     = "MorpheApp/morphe-cli"
	DefaultBrand         = "Morphe"
)

// Defaults are the top-level keys applied to every app table.
type Defaults struct {
	PatchesSource  string
	CLISource      string
	Brand          string
	PatchesVersion string
	CLIVersion     string
}

// Config is the parsed configuration document. Apps keep document order.
type Config struct {
	Defaults Defaults
	Apps     []types.AppSpec
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s missing", path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a TOML configuration document.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Defaults: Defaults{
			PatchesSource:  stringOr(raw, "patches-source", DefaultPatchesSource),
			CLISource:      stringOr(raw, "cli-source", DefaultCLISource),
			Brand:          stringOr(raw, "morphe-brand", DefaultBrand),
			PatchesVersion: stringOr(raw, "patches-version", types.ModeLatest),
			CLIVersion:     stringOr(raw, "cli-version", types.ModeLatest),
		},
	}

	// md.Keys is in document order; top-level tables are the apps.
	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		table, ok := raw[key[0]].(map[string]any)
		if !ok {
			continue
		}
		app, err := cfg.appSpec(key[0], table)
		if err != nil {
			return nil, err
		}
		cfg.Apps = append(cfg.Apps, app)
	}
	return cfg, nil
}

func (c *Config) appSpec(key string, t map[string]any) (types.AppSpec, error) {
	d := c.Defaults
	app := types.AppSpec{
		Key:         key,
		Enabled:     true,
		PackageName: stringOr(t, "package-name", ""),
		AppSource:   stringOr(t, "app-source", ""),
		AppName:     stringOr(t, "app-name", key),
		Variant:     stringOr(t, "variant", ""),
		Version:     stringOr(t, "version", types.VersionAuto),
		PatchSource: stringOr(t, "patches-source", d.PatchesSource),
		PatchMode:   stringOr(t, "patches-version", d.PatchesVersion),
		CLISource:   stringOr(t, "cli-source", d.CLISource),
		CLIMode:     stringOr(t, "cli-version", d.CLIVersion),
		Brand:       stringOr(t, "morphe-brand", d.Brand),
		PatchesList: stringOr(t, "patches-list", ""),
	}
	if enabled, ok := t["enabled"].(bool); ok {
		app.Enabled = enabled
	}

	switch args := t["patcher-args"].(type) {
	case string:
		tokens, err := shlex.Split(args)
		if err != nil {
			return app, fmt.Errorf("%s: invalid patcher-args: %w", key, err)
		}
		app.PatcherArgs = tokens
	case []any:
		for _, a := range args {
			app.PatcherArgs = append(app.PatcherArgs, fmt.Sprint(a))
		}
	}
	return app, nil
}

// Enabled returns the enabled apps in document order.
func (c *Config) Enabled() []types.AppSpec {
	var out []types.AppSpec
	for _, app := range c.Apps {
		if app.Enabled {
			out = append(out, app)
		}
	}
	return out
}

// Targets returns the patch sources to build: only filter when set, otherwise
// the source of every enabled app.
func (c *Config) Targets(filter string) map[string]bool {
	if filter != "" {
		return map[string]bool{filter: true}
	}
	targets := map[string]bool{}
	for _, app := range c.Enabled() {
		targets[app.PatchSource] = true
	}
	return targets
}

// ActiveBrands returns the brands of every enabled app.
func (c *Config) ActiveBrands() map[string]bool {
	brands := map[string]bool{}
	for _, app := range c.Enabled() {
		brands[app.Brand] = true
	}
	return brands
}

// Source is an active patch source with the mode it is resolved with.
type Source struct {
	Name string
	Mode string
}

// ActiveSources returns the distinct patch sources of the enabled apps in first
// appearance order. When apps disagree on the mode the last one wins.
func (c *Config) ActiveSources() []Source {
	var out []Source
	index := map[string]int{}
	for _, app := range c.Enabled() {
		if i, ok := index[app.PatchSource]; ok {
			out[i].Mode = app.PatchMode
			continue
		}
		index[app.PatchSource] = len(out)
		out = append(out, Source{Name: app.PatchSource, Mode: app.PatchMode})
	}
	return out
}

// Validate checks the required keys of the given apps.
func Validate(apps []types.AppSpec) error {
	var result *multierror.Error
	for _, app := range apps {
		if app.PackageName == "" {
			result = multierror.Append(result, &types.MissingFieldError{App: app.Key, Field: "package-name"})
		}
		if app.AppSource == "" {
			result = multierror.Append(result, &types.MissingFieldError{App: app.Key, Field: "app-source"})
		}
	}
	return result.ErrorOrNil()
}

// stringOr returns m[key] as a string, or def when it is absent or empty.
func stringOr(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return def
	}
	return s
}
