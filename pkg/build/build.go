// Package build runs the release pipeline: plan, build every app, publish
// the release, record the ledger and prune old releases.
package build

import (
	"context"
	"io"
	"os"

	"github.com/peachmeow/peachmeow/pkg/artifact"
	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/dryrun"
	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/gitrepo"
	"github.com/peachmeow/peachmeow/pkg/ledger"
	"github.com/peachmeow/peachmeow/pkg/plan"
	"github.com/peachmeow/peachmeow/pkg/release"
	"github.com/peachmeow/peachmeow/pkg/retention"
	"github.com/peachmeow/peachmeow/pkg/types"
	log "github.com/sirupsen/logrus"
)

// Build is the main entrypoint of the build command.
func Build(ctx context.Context, opts *types.Options, s config.Settings) error {
	if err := s.RequireCredentials(); err != nil {
		return err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	return run(ctx, opts, s, github.NewClient(s.Token), os.Stdout)
}

func run(ctx context.Context, opts *types.Options, s config.Settings, client *github.Client, out io.Writer) error {
	lock, err := ledger.Acquire(ctx, s.VersionsFile)
	if err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck

	cfg, err := config.Load(s.ConfigFile)
	if err != nil {
		return err
	}

	p, err := plan.NewPlanner(client).Build(ctx, cfg, opts.Source)
	if err != nil {
		return err
	}
	if opts.DryRun {
		return dryrun.Execute(out, p)
	}
	if len(p.Builds) == 0 {
		return types.ErrNothingBuilt
	}

	repo, err := gitrepo.Open(s.WorkDir, s.Token)
	if err != nil {
		return err
	}
	if err := repo.Pull(ctx); err != nil {
		return err
	}

	pipeline := artifact.NewPipeline(s.WorkDir, s.Signing, client)
	if err := pipeline.Prepare(ctx); err != nil {
		return err
	}
	records := make([]types.BuildRecord, 0, len(p.Builds))
	for _, b := range p.Builds {
		rec, err := pipeline.Run(ctx, b)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	publisher := &release.Publisher{Host: client, Repository: s.Repository, Dir: s.WorkDir}
	tag, err := publisher.Publish(ctx, p, records)
	if err != nil {
		return err
	}

	if err := recordLedger(ctx, repo, s.VersionsFile, p); err != nil {
		return err
	}

	host := &releaseHost{client: client, tags: repo, repository: s.Repository}
	if err := retention.Cleanup(ctx, host, cfg.ActiveBrands(), tag); err != nil {
		log.Warnf("Retention skipped: %v", err)
	}

	log.Info("[✓] Release complete")
	return nil
}

func recordLedger(ctx context.Context, repo *gitrepo.Repo, path string, p *plan.Plan) error {
	l, err := ledger.Load(path)
	if err != nil {
		return err
	}
	changes := make([]ledger.Change, 0, len(p.Sources))
	for _, src := range p.Sources {
		l.Set(src.Source, src.Version, src.CLI)
		changes = append(changes, ledger.Change{Source: src.Source, Version: src.Version})
	}
	if err := l.Save(path); err != nil {
		return err
	}
	return repo.CommitAndPush(ctx, ledger.UpdateMessage(changes), path)
}
