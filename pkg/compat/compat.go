// Package compat selects the app version a patch bundle release supports.
package compat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/peachmeow/peachmeow/pkg/version"
	log "github.com/sirupsen/logrus"
)

// Map is the merged package compatibility of one patch bundle release.
// A present key with a nil set means every version of the package is compatible.
type Map map[string]map[string]struct{}

// Document is the patches-list.json layout.
type Document struct {
	Patches []struct {
		Name               string               `json:"name"`
		CompatiblePackages map[string]*[]string `json:"compatiblePackages"`
	} `json:"patches"`
}

// JSONFetcher retrieves a JSON document.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

// Fetch downloads and merges the compatibility document at url.
func Fetch(ctx context.Context, f JSONFetcher, url string) (Map, error) {
	var doc Document
	if err := f.FetchJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch patches list %s: %w", url, err)
	}
	return doc.Merge(), nil
}

// Parse decodes and merges a patches-list.json document.
func Parse(data []byte) (Map, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid patches list: %w", err)
	}
	return doc.Merge(), nil
}

// Merge unions the compatible versions of every patch. A wildcard for a
// package wins over any explicit list.
func (d Document) Merge() Map {
	m := Map{}
	for _, p := range d.Patches {
		for pkg, versions := range p.CompatiblePackages {
			set, seen := m[pkg]
			if seen && set == nil {
				continue
			}
			if versions == nil {
				m[pkg] = nil
				continue
			}
			if set == nil {
				set = map[string]struct{}{}
				m[pkg] = set
			}
			for _, v := range *versions {
				set[v] = struct{}{}
			}
		}
	}
	return m
}

// AvailableVersions returns the versions encoded in tags of the form {appName}-{version}.
func AvailableVersions(tags []string, appName string) []string {
	prefix := appName + "-"
	var out []string
	for _, tag := range tags {
		if strings.HasPrefix(tag, prefix) {
			out = append(out, strings.TrimPrefix(tag, prefix))
		}
	}
	return out
}

// Select returns the highest version of pkg that is both compatible and available.
// app names the configuration entry in the error.
func Select(m Map, app, pkg string, available []string) (string, error) {
	var candidates []string
	set, ok := m[pkg]
	switch {
	case ok && set == nil:
		candidates = available
	case ok:
		for _, v := range available {
			if _, hit := set[v]; hit {
				candidates = append(candidates, v)
			}
		}
	}

	best, found := version.Max(candidates)
	if !found {
		return "", &types.NoCompatibleVersionError{App: app, Package: pkg}
	}
	log.Debugf("%s: selected %s from %d candidate(s)", app, best, len(candidates))
	return best, nil
}
