package build

import (
	"context"

	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/types"
	log "github.com/sirupsen/logrus"
)

const retentionLimit = 200

// TagDeleter removes tags through the checkout.
type TagDeleter interface {
	DeleteTag(ctx context.Context, tag string) error
}

// releaseHost exposes the build repository to retention.
type releaseHost struct {
	client     *github.Client
	tags       TagDeleter
	repository string
}

func (h *releaseHost) ListReleases(ctx context.Context) ([]types.Release, error) {
	return h.client.ListReleases(ctx, h.repository, retentionLimit)
}

func (h *releaseHost) DeleteRelease(ctx context.Context, tag string) error {
	return h.client.DeleteRelease(ctx, h.repository, tag)
}

// DeleteTag pushes the deletion through git and falls back to the API.
func (h *releaseHost) DeleteTag(ctx context.Context, tag string) error {
	if h.tags != nil {
		err := h.tags.DeleteTag(ctx, tag)
		if err == nil {
			return nil
		}
		log.Debugf("git tag deletion of %s failed, using API: %v", tag, err)
	}
	return h.client.DeleteTagRef(ctx, h.repository, tag)
}
