// Package version orders the version strings found in release tags.
//
// Tags are ordered by PEP 440, which also covers four component Android
// build numbers. Tags only semver accepts, such as free-form prerelease
// labels, still parse and sort below the rest.
package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	pep440 "github.com/aquasecurity/go-pep440-version"
	log "github.com/sirupsen/logrus"
)

// Version is a parsed release version.
type Version struct {
	raw string
	sem *semver.Version
	pep *pep440.Version
}

// Parse parses s as a release version.
func Parse(s string) (*Version, error) {
	v := &Version{raw: s}
	if sv, err := semver.NewVersion(s); err == nil {
		v.sem = sv
	}
	if pv, err := pep440.Parse(strings.TrimPrefix(s, "v")); err == nil {
		v.pep = &pv
	}
	if v.sem == nil && v.pep == nil {
		return nil, fmt.Errorf("invalid version %q", s)
	}
	return v, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original input.
func (v *Version) String() string {
	return v.raw
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than o.
// PEP 440 ordering is used whenever both sides have it. Versions only semver
// accepts order among themselves and below every PEP 440 version.
func (v *Version) Compare(o *Version) int {
	switch {
	case v.pep != nil && o.pep != nil:
		return v.pep.Compare(*o.pep)
	case v.pep != nil:
		return 1
	case o.pep != nil:
		return -1
	default:
		return v.sem.Compare(o.sem)
	}
}

// LessThan reports whether v is lower than o.
func (v *Version) LessThan(o *Version) bool {
	return v.Compare(o) < 0
}

// Sort returns the parsable entries of versions in ascending order.
// Entries that fail to parse are dropped.
func Sort(versions []string) []string {
	parsed := make([]*Version, 0, len(versions))
	for _, s := range versions {
		v, err := Parse(s)
		if err != nil {
			log.Debugf("Could not parse %q as a version, skipping", s)
			continue
		}
		parsed = append(parsed, v)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].LessThan(parsed[j])
	})

	out := make([]string, len(parsed))
	for i, v := range parsed {
		out[i] = v.raw
	}
	return out
}

// Max returns the highest parsable entry of versions.
func Max(versions []string) (string, bool) {
	sorted := Sort(versions)
	if len(sorted) == 0 {
		return "", false
	}
	return sorted[len(sorted)-1], true
}
