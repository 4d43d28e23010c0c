// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mia-platform/devboard/internal/source"
)

var _ source.DevOps = &DevOps{}
var _ source.ClosableSource = &DevOps{}

// DevOps is an in memory source.DevOps. Every collection can be replaced or made to fail
// while the board is running.
type DevOps struct {
	tb testing.TB

	lock         sync.Mutex
	pullRequests []source.PullRequest
	reviewers    map[string][]source.Reviewer
	builds       []source.Build
	releases     []source.Release
	workItems    []source.WorkItem
	errs         map[string]error
	calls        map[string]int
	closed       bool
}

// Operation names accepted by SetError and Calls.
const (
	OperationPullRequests = "pullrequests"
	OperationReviewers    = "reviewers"
	OperationBuilds       = "builds"
	OperationReleases     = "releases"
	OperationWorkItems    = "workitems"
)

// NewDevOps returns an empty fake.
func NewDevOps(tb testing.TB) *DevOps {
	tb.Helper()

	return &DevOps{
		tb:        tb,
		reviewers: make(map[string][]source.Reviewer),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// SetPullRequests replaces the pull requests returned by the fake.
func (f *DevOps) SetPullRequests(items ...source.PullRequest) *DevOps {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pullRequests = items
	return f
}

// SetReviewers sets the reviewers of a pull request.
func (f *DevOps) SetReviewers(repositoryID string, pullRequestID int, reviewers ...source.Reviewer) *DevOps {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.reviewers[reviewersKey(repositoryID, pullRequestID)] = reviewers
	return f
}

// SetBuilds replaces the builds returned by the fake.
func (f *DevOps) SetBuilds(items ...source.Build) *DevOps {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.builds = items
	return f
}

// SetReleases replaces the releases returned by the fake.
func (f *DevOps) SetReleases(items ...source.Release) *DevOps {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.releases = items
	return f
}

// SetWorkItems replaces the work items returned by the fake.
func (f *DevOps) SetWorkItems(items ...source.WorkItem) *DevOps {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.workItems = items
	return f
}

// SetError makes operation fail with err, a nil err restores it.
func (f *DevOps) SetError(operation string, err error) *DevOps {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err == nil {
		delete(f.errs, operation)
		return f
	}
	f.errs[operation] = err
	return f
}

// Calls returns how many times operation has been invoked.
func (f *DevOps) Calls(operation string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[operation]
}

// Closed reports whether Close has been called.
func (f *DevOps) Closed() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.closed
}

// PullRequests implement source.DevOps interface.
func (f *DevOps) PullRequests(ctx context.Context) ([]source.PullRequest, error) {
	return list(ctx, f, OperationPullRequests, func() []source.PullRequest { return f.pullRequests })
}

// Reviewers implement source.DevOps interface.
func (f *DevOps) Reviewers(ctx context.Context, repositoryID string, pullRequestID int) ([]source.Reviewer, error) {
	return list(ctx, f, OperationReviewers, func() []source.Reviewer {
		return f.reviewers[reviewersKey(repositoryID, pullRequestID)]
	})
}

// Builds implement source.DevOps interface.
func (f *DevOps) Builds(ctx context.Context) ([]source.Build, error) {
	return list(ctx, f, OperationBuilds, func() []source.Build { return f.builds })
}

// Releases implement source.DevOps interface.
func (f *DevOps) Releases(ctx context.Context) ([]source.Release, error) {
	return list(ctx, f, OperationReleases, func() []source.Release { return f.releases })
}

// WorkItems implement source.DevOps interface.
func (f *DevOps) WorkItems(ctx context.Context) ([]source.WorkItem, error) {
	return list(ctx, f, OperationWorkItems, func() []source.WorkItem { return f.workItems })
}

// Close implement source.ClosableSource interface.
func (f *DevOps) Close(_ context.Context, _ time.Duration) error {
	f.tb.Helper()

	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return nil
}

func list[T any](ctx context.Context, f *DevOps, operation string, items func() []T) ([]T, error) {
	f.tb.Helper()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[operation]++
	if err := f.errs[operation]; err != nil {
		return nil, err
	}

	current := items()
	result := make([]T, len(current))
	copy(result, current)
	return result, nil
}

func reviewersKey(repositoryID string, pullRequestID int) string {
	return fmt.Sprintf("%s/%d", repositoryID, pullRequestID)
}
