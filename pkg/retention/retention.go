// Package retention prunes old releases of the build repository.
package retention

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/peachmeow/peachmeow/pkg/version"
	log "github.com/sirupsen/logrus"
)

const (
	// SmallFleet is the largest brand count that receives bonus retention.
	SmallFleet = 5

	// Target is the number of releases kept in total for a small fleet.
	Target = 10

	separator = "-v"
)

// Host lists and deletes releases of the build repository.
type Host interface {
	ListReleases(ctx context.Context) ([]types.Release, error)
	DeleteRelease(ctx context.Context, tag string) error
	DeleteTag(ctx context.Context, tag string) error
}

// Decision is the outcome of planning a cleanup. Tags present in neither
// list are left alone.
type Decision struct {
	Keep   []string
	Delete []string
}

type entry struct {
	tag        string
	brand      string
	version    *version.Version
	created    time.Time
	prerelease bool
}

func parse(releases []types.Release) []entry {
	var out []entry
	for _, r := range releases {
		brand, raw, ok := strings.Cut(r.TagName, separator)
		if !ok {
			continue
		}
		v, err := version.Parse(raw)
		if err != nil || r.CreatedAt.IsZero() {
			log.Debugf("Retention ignores %s", r.TagName)
			continue
		}
		out = append(out, entry{tag: r.TagName, brand: brand, version: v, created: r.CreatedAt, prerelease: r.Prerelease})
	}
	return out
}

// Plan decides which releases to keep and which to delete. keepTag is
// always kept.
func Plan(releases []types.Release, activeBrands map[string]bool, keepTag string) Decision {
	entries := parse(releases)

	byVersion := make([]entry, len(entries))
	copy(byVersion, entries)
	sort.SliceStable(byVersion, func(i, j int) bool {
		return byVersion[j].version.LessThan(byVersion[i].version)
	})

	var d Decision
	brands := make(map[string][]entry)
	var order []string
	for _, e := range byVersion {
		if !activeBrands[e.brand] {
			if e.tag != keepTag {
				d.Delete = append(d.Delete, e.tag)
			}
			continue
		}
		if _, ok := brands[e.brand]; !ok {
			order = append(order, e.brand)
		}
		brands[e.brand] = append(brands[e.brand], e)
	}

	keep := make(map[string]bool)
	add := func(tag string) {
		if !keep[tag] {
			keep[tag] = true
			d.Keep = append(d.Keep, tag)
		}
	}
	if keepTag != "" {
		for _, e := range entries {
			if e.tag == keepTag {
				add(keepTag)
			}
		}
	}
	for _, brand := range order {
		stable, pre := false, false
		for _, e := range brands[brand] {
			if e.prerelease && !pre {
				add(e.tag)
				pre = true
			}
			if !e.prerelease && !stable {
				add(e.tag)
				stable = true
			}
		}
	}

	if len(brands) <= SmallFleet {
		byDate := make([]entry, len(entries))
		copy(byDate, entries)
		sort.SliceStable(byDate, func(i, j int) bool {
			return byDate[i].created.After(byDate[j].created)
		})
		for _, e := range byDate {
			if len(keep) >= Target {
				break
			}
			if _, ok := brands[e.brand]; ok {
				add(e.tag)
			}
		}
	}

	for _, e := range entries {
		if _, ok := brands[e.brand]; ok && !keep[e.tag] {
			d.Delete = append(d.Delete, e.tag)
		}
	}
	return d
}

// Cleanup deletes the releases Plan selects. Deletion failures are logged
// and do not stop the cleanup.
func Cleanup(ctx context.Context, host Host, activeBrands map[string]bool, keepTag string) error {
	releases, err := host.ListReleases(ctx)
	if err != nil {
		return err
	}
	d := Plan(releases, activeBrands, keepTag)
	log.Infof("Retention keeps %d releases, deletes %d", len(d.Keep), len(d.Delete))

	var errs *multierror.Error
	for _, tag := range d.Delete {
		log.Infof("Deleting release %s", tag)
		if err := host.DeleteRelease(ctx, tag); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := host.DeleteTag(ctx, tag); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		log.Warnf("Retention cleanup incomplete: %v", err)
	}
	return nil
}
