package retention

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/peachmeow/peachmeow/mocks"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func rel(tag string, day int, pre bool) types.Release {
	return types.Release{TagName: tag, Prerelease: pre, CreatedAt: epoch.AddDate(0, 0, day)}
}

func TestPlan(t *testing.T) {
	releases := []types.Release{
		rel("A-v1.2.0-dev.1", 3, true),
		rel("A-v1.1.0", 2, false),
		rel("A-v1.0.0", 1, false),
		rel("C-v1.0.0", 0, false),
		rel("nightly", 4, false),
		rel("B-vgarbage", 5, false),
		{TagName: "B-v1.0.0"},
	}

	d := Plan(releases, map[string]bool{"A": true, "B": true}, "A-v1.2.0-dev.1")
	assert.ElementsMatch(t, []string{"A-v1.2.0-dev.1", "A-v1.1.0", "A-v1.0.0"}, d.Keep)
	assert.Equal(t, []string{"C-v1.0.0"}, d.Delete)
}

func TestPlanLatestByVersion(t *testing.T) {
	// The release created last is not the highest version.
	releases := []types.Release{
		rel("A-v1.0.1", 9, false),
		rel("A-v1.2.0", 1, false),
	}
	brands := map[string]bool{"A": true}
	for i := 0; i < SmallFleet+1; i++ {
		b := fmt.Sprintf("B%d", i)
		brands[b] = true
		releases = append(releases, rel(b+"-v1.0.0", 0, false))
	}

	d := Plan(releases, brands, "")
	assert.Contains(t, d.Keep, "A-v1.2.0")
	assert.Equal(t, []string{"A-v1.0.1"}, d.Delete)
}

func TestPlanBonusRetention(t *testing.T) {
	var releases []types.Release
	for i := 0; i < 14; i++ {
		releases = append(releases, rel(fmt.Sprintf("A-v1.%d.0", i), i, false))
	}
	releases = append(releases, rel("B-v2.0.0-dev.1", 20, true))

	d := Plan(releases, map[string]bool{"A": true, "B": true}, "")
	require.Len(t, d.Keep, Target)
	assert.Contains(t, d.Keep, "A-v1.13.0")
	assert.Contains(t, d.Keep, "B-v2.0.0-dev.1")
	for i := 5; i < 13; i++ {
		assert.Contains(t, d.Keep, fmt.Sprintf("A-v1.%d.0", i))
	}
	assert.ElementsMatch(t, []string{"A-v1.0.0", "A-v1.1.0", "A-v1.2.0", "A-v1.3.0", "A-v1.4.0"}, d.Delete)
}

func TestPlanLargeFleet(t *testing.T) {
	brands := map[string]bool{}
	var releases []types.Release
	for i := 0; i < SmallFleet+1; i++ {
		b := fmt.Sprintf("B%d", i)
		brands[b] = true
		releases = append(releases,
			rel(b+"-v1.0.0", 0, false),
			rel(b+"-v1.1.0", 1, false),
			rel(b+"-v1.2.0-dev.1", 2, true),
		)
	}

	d := Plan(releases, brands, "")
	assert.Len(t, d.Keep, 2*(SmallFleet+1))
	assert.Len(t, d.Delete, SmallFleet+1)
	for b := range brands {
		assert.Contains(t, d.Delete, b+"-v1.0.0")
	}
}

func TestPlanKeepsPublishedTag(t *testing.T) {
	d := Plan([]types.Release{rel("Old-v1.0.0", 0, false)}, map[string]bool{"New": true}, "Old-v1.0.0")
	assert.Equal(t, []string{"Old-v1.0.0"}, d.Keep)
	assert.Empty(t, d.Delete)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	host := new(mocks.MockReleaseHost)
	host.On("ListReleases", ctx).Return([]types.Release{
		rel("A-v1.0.0", 0, false),
		rel("C-v1.0.0", 0, false),
		rel("D-v1.0.0", 0, false),
	}, nil)
	host.On("DeleteRelease", ctx, "C-v1.0.0").Return(errors.New("gone"))
	host.On("DeleteTag", ctx, "C-v1.0.0").Return(nil)
	host.On("DeleteRelease", ctx, "D-v1.0.0").Return(nil)
	host.On("DeleteTag", ctx, "D-v1.0.0").Return(errors.New("gone"))

	assert.NoError(t, Cleanup(ctx, host, map[string]bool{"A": true}, "A-v1.0.0"))
	host.AssertExpectations(t)
	host.AssertNotCalled(t, "DeleteRelease", ctx, "A-v1.0.0")
}

func TestCleanupListFailure(t *testing.T) {
	ctx := context.Background()
	host := new(mocks.MockReleaseHost)
	host.On("ListReleases", ctx).Return(nil, errors.New("unavailable"))

	assert.Error(t, Cleanup(ctx, host, map[string]bool{"A": true}, ""))
	host.AssertNotCalled(t, "DeleteRelease", mock.Anything, mock.Anything)
}
