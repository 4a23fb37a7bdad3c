package release

import (
	"context"
	"os"
	"path/filepath"

	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/plan"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NotesFile is the file the rendered notes are written to.
const NotesFile = "release.md"

// Host reads upstream releases and creates the published one.
type Host interface {
	ReleaseByTag(ctx context.Context, repo, tag string) (*types.Release, error)
	CreateRelease(ctx context.Context, repo string, rel github.NewRelease, assets []string) (*types.Release, error)
}

// Publisher publishes the artefacts of a run to Repository.
type Publisher struct {
	Host       Host
	Repository string
	Dir        string
}

// Publish creates the release of p and returns its tag. The notes and the
// prerelease flag come from the release of the first patch source. The CLI
// line reports the CLI of the last build.
func (p *Publisher) Publish(ctx context.Context, pl *plan.Plan, records []types.BuildRecord) (string, error) {
	if len(records) == 0 {
		return "", types.ErrNothingBuilt
	}
	first, ok := pl.First()
	if !ok {
		return "", types.ErrNothingBuilt
	}

	upstream, err := p.Host.ReleaseByTag(ctx, first.Source, "v"+first.Version)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read release v%s of %s", first.Version, first.Source)
	}

	notes := Changelog(records, Info{Patch: first.Version, CLI: pl.CLI(), Changelog: upstream.Body})
	if err := os.WriteFile(filepath.Join(p.Dir, NotesFile), []byte(notes), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write release notes")
	}

	brand := pl.Brand()
	tag := Tag(brand, first.Version)
	assets := make([]string, 0, len(records))
	for _, r := range records {
		assets = append(assets, r.File)
	}

	_, err = p.Host.CreateRelease(ctx, p.Repository, github.NewRelease{
		TagName:    tag,
		Name:       Name(brand, first.Version),
		Body:       notes,
		Prerelease: upstream.Prerelease,
	}, assets)
	if err != nil {
		return "", err
	}
	log.Infof("Published %s with %d artefacts", tag, len(assets))
	return tag, nil
}
