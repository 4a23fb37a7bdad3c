package mocks

import (
	"context"
	"fmt"

	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/stretchr/testify/mock"
)

// Mock for retention.Host.
type MockReleaseHost struct {
	mock.Mock
}

func (m *MockReleaseHost) ListReleases(ctx context.Context) ([]types.Release, error) {
	args := m.Called(ctx)

	releases, ok := args.Get(0).([]types.Release)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("type assertion to []types.Release failed")
	}

	return releases, args.Error(1)
}

func (m *MockReleaseHost) DeleteRelease(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockReleaseHost) DeleteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

// Mock for release.Host.
type MockPublishHost struct {
	mock.Mock
}

func (m *MockPublishHost) ReleaseByTag(ctx context.Context, repo, tag string) (*types.Release, error) {
	args := m.Called(ctx, repo, tag)

	rel, ok := args.Get(0).(*types.Release)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("type assertion to *types.Release failed")
	}

	return rel, args.Error(1)
}

//nolint:gocritic
func (m *MockPublishHost) CreateRelease(ctx context.Context, repo string, rel github.NewRelease, assets []string) (*types.Release, error) {
	args := m.Called(ctx, repo, rel, assets)

	created, ok := args.Get(0).(*types.Release)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("type assertion to *types.Release failed")
	}

	return created, args.Error(1)
}

// Mock for drift.Trigger.
type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) Trigger(ctx context.Context, source string) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}
