// Package resolve picks one upstream release of a repository according to a
// version mode.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/peachmeow/peachmeow/pkg/types"
	log "github.com/sirupsen/logrus"
)

// listLimit matches the size of the first page of the upstream listing.
const listLimit = 30

// Lister lists the releases of a repository, newest first.
type Lister interface {
	ListReleases(ctx context.Context, repo string, limit int) ([]types.Release, error)
}

// Resolver resolves (source, mode) pairs against the upstream release list.
type Resolver struct {
	lister Lister
}

// New returns a resolver backed by lister.
func New(lister Lister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve picks a release of source according to mode.
//
// An empty release list yields types.ErrNoReleases. A pinned mode that
// matches no release resolves to the pinned tag as a stable release; callers
// building download URLs from it must be prepared for the release not to exist.
func (r *Resolver) Resolve(ctx context.Context, source, mode string) (types.ResolvedVersion, error) {
	releases, err := r.lister.ListReleases(ctx, source, listLimit)
	if err != nil {
		return types.ResolvedVersion{}, fmt.Errorf("failed to list releases of %s: %w", source, err)
	}
	if len(releases) == 0 {
		return types.ResolvedVersion{}, fmt.Errorf("%s: %w", source, types.ErrNoReleases)
	}

	rv, err := Select(releases, source, mode)
	if err != nil {
		return types.ResolvedVersion{}, err
	}
	log.Debugf("Resolved %s@%s to %s (prerelease: %t)", source, mode, rv.Version, rv.Prerelease)
	return rv, nil
}

// Select applies mode to a newest-first release list. The list is not re-sorted.
func Select(releases []types.Release, source, mode string) (types.ResolvedVersion, error) {
	switch mode {
	case types.ModeLatest:
		for _, rel := range releases {
			if !rel.Prerelease {
				return resolved(rel), nil
			}
		}
		return types.ResolvedVersion{}, &types.NotFoundError{Source: source, Mode: mode}
	case types.ModeDev:
		for _, rel := range releases {
			if rel.Prerelease {
				return resolved(rel), nil
			}
		}
		return types.ResolvedVersion{}, &types.NotFoundError{Source: source, Mode: mode}
	case types.ModeAll:
		if len(releases) == 0 {
			return types.ResolvedVersion{}, &types.NotFoundError{Source: source, Mode: mode}
		}
		return resolved(releases[0]), nil
	}

	tag := TrimV(mode)
	for _, rel := range releases {
		if TrimV(rel.TagName) == tag {
			return types.ResolvedVersion{Version: tag, Prerelease: rel.Prerelease}, nil
		}
	}
	log.Debugf("Pinned tag %s not found among releases of %s, assuming stable", tag, source)
	return types.ResolvedVersion{Version: tag}, nil
}

// TrimV strips every leading "v" from a tag.
func TrimV(tag string) string {
	return strings.TrimLeft(tag, "v")
}

func resolved(rel types.Release) types.ResolvedVersion {
	return types.ResolvedVersion{Version: TrimV(rel.TagName), Prerelease: rel.Prerelease}
}
