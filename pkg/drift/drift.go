// Package drift compares the upstream patch releases against the version
// ledger and starts a build for every source that moved.
package drift

import (
	"context"
	"errors"
	"fmt"

	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/ledger"
	"github.com/peachmeow/peachmeow/pkg/types"
	log "github.com/sirupsen/logrus"
)

// VersionResolver resolves the current version of a patch source.
type VersionResolver interface {
	Resolve(ctx context.Context, source, mode string) (types.ResolvedVersion, error)
}

// Repo publishes ledger changes.
type Repo interface {
	Pull(ctx context.Context) error
	CommitAndPush(ctx context.Context, message string, paths ...string) error
}

// Trigger starts a build limited to one patch source.
type Trigger interface {
	Trigger(ctx context.Context, source string) error
}

// Detector runs drift passes.
type Detector struct {
	Resolver   VersionResolver
	Repo       Repo
	Trigger    Trigger
	LedgerPath string
}

// Result summarises one pass.
type Result struct {
	Pruned  []string
	Changed []string
}

// Run performs one pass over cfg: it prunes stale ledger keys, then triggers
// one build per source whose resolved version differs from the ledger.
func (d *Detector) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	log.Info("[+] Resolver started")

	if d.Repo != nil {
		if err := d.Repo.Pull(ctx); err != nil {
			return nil, err
		}
	}
	l, err := ledger.Load(d.LedgerPath)
	if err != nil {
		return nil, err
	}

	sources := cfg.ActiveSources()
	active := make(map[string]bool, len(sources))
	for _, s := range sources {
		active[s.Name] = true
	}

	res := &Result{}
	res.Pruned = l.Prune(active)
	if len(res.Pruned) > 0 {
		for _, k := range res.Pruned {
			log.Infof("[-] Removing stale source from ledger: %s", k)
		}
		if err := l.Save(d.LedgerPath); err != nil {
			return nil, err
		}
		if d.Repo != nil {
			if err := d.Repo.CommitAndPush(ctx, ledger.CleanupMessage(res.Pruned), d.LedgerPath); err != nil {
				return nil, err
			}
		}
	}

	for _, s := range sources {
		latest, err := d.Resolver.Resolve(ctx, s.Name, s.Mode)
		if errors.Is(err, types.ErrNoReleases) {
			log.Warnf("%s: no releases, skipping", s.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}

		stored := l[s.Name].Version
		log.Infof("%s latest=%s stored=%s", s.Name, latest.Version, stored)
		if latest.Version != "" && latest.Version != stored {
			res.Changed = append(res.Changed, s.Name)
		}
	}

	if len(res.Changed) == 0 {
		log.Info("[✓] No patch updates")
		return res, nil
	}
	for _, s := range res.Changed {
		log.Infof("[+] Trigger build: %s", s)
		if err := d.Trigger.Trigger(ctx, s); err != nil {
			return res, err
		}
	}
	log.Info("[✓] Resolver done")
	return res, nil
}
