// Package gitrepo commits and pushes from the checkout the pipeline runs in.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
)

// Commit identity of automated changes.
const (
	AuthorName  = "github-actions[bot]"
	AuthorEmail = "41898282+github-actions[bot]@users.noreply.github.com"

	DefaultRemote = "origin"
	tokenUser     = "x-access-token"
)

// Repo is an opened working checkout.
type Repo struct {
	Remote string

	repo *git.Repository
	root string
	auth transport.AuthMethod
}

// Open opens the checkout containing dir. A non-empty token authenticates
// pushes over HTTPS.
func Open(dir, token string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}

	r := &Repo{Remote: DefaultRemote, repo: repo, root: wt.Filesystem.Root()}
	if token != "" {
		r.auth = &http.BasicAuth{Username: tokenUser, Password: token}
	}
	return r, nil
}

// Pull fast-forwards the current branch. It must run before the worktree is
// modified.
func (r *Repo) Pull(ctx context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: r.Remote, Auth: r.auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// CommitAndPush commits paths with message and pushes the current branch.
// Nothing is pushed when paths carry no change.
func (r *Repo) CommitAndPush(ctx context.Context, message string, paths ...string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	for _, p := range paths {
		rel, err := r.rel(p)
		if err != nil {
			return err
		}
		if _, err := wt.Add(rel); err != nil {
			return fmt.Errorf("failed to stage %s: %w", rel, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: AuthorName, Email: AuthorEmail, When: time.Now()},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		log.Infof("Nothing to commit for %q", message)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	log.Infof("Committed %s: %s", hash.String()[:7], message)

	return r.push(ctx)
}

// DeleteTag removes tag from the remote and from the local repository.
func (r *Repo) DeleteTag(ctx context.Context, tag string) error {
	refSpec := config.RefSpec(":" + plumbing.NewTagReferenceName(tag).String())
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.Remote,
		Auth:       r.auth,
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	if err := r.repo.DeleteTag(tag); err != nil && !errors.Is(err, git.ErrTagNotFound) {
		return fmt.Errorf("failed to delete local tag %s: %w", tag, err)
	}
	return nil
}

func (r *Repo) push(ctx context.Context) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	refSpec := config.RefSpec(fmt.Sprintf("%s:%s", head.Name(), head.Name()))
	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.Remote,
		Auth:       r.auth,
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

func (r *Repo) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
