// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"time"
)

// DevOps defines the read operations the board needs from an Azure DevOps organization.
// Every list operation returns the whole collection: callers replace, never append.
type DevOps interface {
	// PullRequests returns the pull requests of the configured project.
	PullRequests(ctx context.Context) ([]PullRequest, error)
	// Reviewers returns the reviewers of a single pull request. It is called on demand and
	// concurrent calls for the same pull request may be coalesced.
	Reviewers(ctx context.Context, repositoryID string, pullRequestID int) ([]Reviewer, error)
	// Builds returns the most recent builds, newest first.
	Builds(ctx context.Context) ([]Build, error)
	// Releases returns the most recent releases with their environments expanded.
	Releases(ctx context.Context) ([]Release, error)
	// WorkItems returns the work items with recent activity of the authenticated user.
	WorkItems(ctx context.Context) ([]WorkItem, error)
}

// ClosableSource defines the interface for a source that holds resources to release on shutdown.
type ClosableSource interface {
	// Close releases the resources, waiting at most timeout for the pending requests.
	Close(ctx context.Context, timeout time.Duration) error
}
