// Package release composes the release notes of a build run and publishes
// the artefacts as one release.
package release

import (
	"fmt"
	"strings"

	"github.com/peachmeow/peachmeow/pkg/types"
	"golang.org/x/exp/slices"
)

// Apps listed first, in this order. The rest follow alphabetically.
var priority = []string{"youtube", "music"}

// Info carries the build-wide facts of the notes.
type Info struct {
	Patch     string
	CLI       string
	Changelog string
}

type variantVersion struct {
	variant string
	version string
}

// Changelog renders the release notes for records.
func Changelog(records []types.BuildRecord, info Info) string {
	grouped := make(map[string][]variantVersion)
	var apps []string
	for _, r := range records {
		if _, ok := grouped[r.App]; !ok {
			apps = append(apps, r.App)
		}
		grouped[r.App] = append(grouped[r.App], variantVersion{variant: r.Variant, version: r.AppVersion})
	}
	slices.SortStableFunc(apps, compareApps)

	hasVariants := false
	for _, items := range grouped {
		if len(items) > 1 || items[0].variant != "" {
			hasVariants = true
			break
		}
	}

	lines := []string{"## App Versions\n"}
	if !hasVariants {
		for _, app := range apps {
			lines = append(lines, fmt.Sprintf("%s: %s", label(app), grouped[app][0].version))
		}
		lines = append(lines, "")
	} else {
		for _, app := range apps {
			lines = append(lines, "### "+label(app))
			items := grouped[app]
			slices.SortStableFunc(items, compareVariants)
			for _, it := range items {
				switch {
				case len(items) == 1 && it.variant == "":
					lines = append(lines, "- "+it.version)
				case it.variant == "":
					lines = append(lines, "- Base: "+it.version)
				default:
					lines = append(lines, fmt.Sprintf("- %s: %s", label(it.variant), it.version))
				}
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines,
		"## Build Info\n",
		"- Patch: "+info.Patch,
		"- CLI: "+info.CLI,
		"",
		"## Patch Changelog\n",
		info.Changelog,
	)
	return strings.Join(lines, "\n")
}

func compareApps(a, b string) int {
	pa, pb := rank(a), rank(b)
	if pa != pb {
		return pa - pb
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func rank(app string) int {
	if i := slices.Index(priority, strings.ToLower(app)); i >= 0 {
		return i
	}
	return len(priority)
}

// The base package sorts before every variant.
func compareVariants(a, b variantVersion) int {
	if a.variant == "" || b.variant == "" {
		switch {
		case a.variant == b.variant:
			return 0
		case a.variant == "":
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(strings.ToLower(a.variant), strings.ToLower(b.variant))
}

func label(s string) string {
	return strings.ReplaceAll(s, "-", " ")
}

// Tag returns the release tag {brand}-v{patch}.
func Tag(brand, patch string) string {
	return fmt.Sprintf("%s-v%s", brand, patch)
}

// Name returns the human readable release title.
func Name(brand, patch string) string {
	return fmt.Sprintf("%s 🐱 PeachMeow v%s", label(brand), patch)
}
