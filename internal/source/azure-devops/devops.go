// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuredevops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/caarlos0/env/v11"
	"golang.org/x/sync/singleflight"

	"github.com/mia-platform/devboard/internal/logger"
	"github.com/mia-platform/devboard/internal/source"
)

var (
	ErrDevOpsSource = errors.New("azure devops source")
)

const (
	logName = "devboard:source:azuredevops"

	pullRequestsPath = "_apis/git/pullrequests"
	reviewersPath    = "_apis/git/repositories/%s/pullrequests/%d/reviewers"
	buildsPath       = "_apis/build/builds"
	releasesPath     = "_apis/release/releases"
	workItemsPath    = "_apis/work/accountmyworkrecentactivity"
)

var _ source.DevOps = &Source{}
var _ source.ClosableSource = &Source{}

// Source implement source.DevOps and source.ClosableSource for Azure DevOps.
type Source struct {
	config

	client    *client
	reviewers singleflight.Group
}

// NewSource creates a new Azure DevOps Source reading the needed configuration from the env variables.
func NewSource(ctx context.Context) (*Source, error) {
	config, err := env.ParseAs[config]()
	if err != nil {
		return nil, handleErr(err)
	}

	return newSource(ctx, config, nil)
}

func newSource(ctx context.Context, config config, credential azcore.TokenCredential) (*Source, error) {
	if err := config.validate(); err != nil {
		return nil, handleErr(err)
	}

	organizationURL, err := url.Parse(config.OrganizationURL)
	if err != nil {
		return nil, handleErr(err)
	}

	releaseURL, err := config.releaseBaseURL()
	if err != nil {
		return nil, handleErr(err)
	}

	transport, err := config.newTransport(ctx, http.DefaultTransport.(*http.Transport).Clone(), credential)
	if err != nil {
		return nil, handleErr(err)
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   config.RequestTimeout,
	}

	logger.FromContext(ctx).WithName(logName).Debug("azure devops source configured",
		"organization", organizationURL.String(),
		"project", config.Project,
		"authMode", string(config.AuthMode),
	)

	return &Source{
		config: config,
		client: newClient(organizationURL, releaseURL, httpClient, config.MaxRetries),
	}, nil
}

// PullRequests implement source.DevOps interface.
func (s *Source) PullRequests(ctx context.Context) ([]source.PullRequest, error) {
	queryParam := url.Values{}
	queryParam.Set("searchCriteria.status", "active")
	queryParam.Set("$top", strconv.Itoa(s.PullRequestsTop))

	payloads, err := getList[pullRequestPayload](ctx, s.client, s.projectURL(s.client.organizationURL), pullRequestsPath, queryParam)
	if err != nil {
		return nil, handleErr(err)
	}
	return convert(payloads, pullRequestPayload.toPullRequest), nil
}

// Reviewers implement source.DevOps interface. Concurrent lookups of the same pull request
// share a single request.
func (s *Source) Reviewers(ctx context.Context, repositoryID string, pullRequestID int) ([]source.Reviewer, error) {
	key := fmt.Sprintf("%s/%d", repositoryID, pullRequestID)
	result, err, shared := s.reviewers.Do(key, func() (any, error) {
		path := fmt.Sprintf(reviewersPath, url.PathEscape(repositoryID), pullRequestID)
		payloads, err := getList[reviewerPayload](ctx, s.client, s.projectURL(s.client.organizationURL), path, url.Values{})
		if err != nil {
			return nil, err
		}
		return convert(payloads, reviewerPayload.toReviewer), nil
	})
	if err != nil {
		return nil, handleErr(err)
	}

	logger.FromContext(ctx).WithName(logName).Trace("reviewers loaded", "pullRequest", key, "shared", shared)
	reviewers := result.([]source.Reviewer)
	clone := make([]source.Reviewer, len(reviewers))
	copy(clone, reviewers)
	return clone, nil
}

// Builds implement source.DevOps interface.
func (s *Source) Builds(ctx context.Context) ([]source.Build, error) {
	queryParam := url.Values{}
	queryParam.Set("$top", strconv.Itoa(s.BuildsTop))
	queryParam.Set("queryOrder", "startTimeDescending")

	payloads, err := getList[buildPayload](ctx, s.client, s.projectURL(s.client.organizationURL), buildsPath, queryParam)
	if err != nil {
		return nil, handleErr(err)
	}
	return convert(payloads, buildPayload.toBuild), nil
}

// Releases implement source.DevOps interface.
func (s *Source) Releases(ctx context.Context) ([]source.Release, error) {
	queryParam := url.Values{}
	queryParam.Set("$expand", "environments")
	queryParam.Set("$top", strconv.Itoa(s.ReleasesTop))
	queryParam.Set("queryOrder", "descending")

	payloads, err := getList[releasePayload](ctx, s.client, s.projectURL(s.client.releaseURL), releasesPath, queryParam)
	if err != nil {
		return nil, handleErr(err)
	}
	return convert(payloads, releasePayload.toRelease), nil
}

// WorkItems implement source.DevOps interface. The endpoint is scoped to the organization
// and returns the items of every project.
func (s *Source) WorkItems(ctx context.Context) ([]source.WorkItem, error) {
	payloads, err := getList[workItemPayload](ctx, s.client, s.client.organizationURL, workItemsPath, url.Values{})
	if err != nil {
		return nil, handleErr(err)
	}
	return convert(payloads, workItemPayload.toWorkItem), nil
}

// Close implement source.ClosableSource interface.
func (s *Source) Close(ctx context.Context, _ time.Duration) error {
	log := logger.FromContext(ctx).WithName(logName)
	log.Debug("closing Azure DevOps client")

	s.client.client.CloseIdleConnections()

	log.Trace("closed Azure DevOps client")
	return nil
}

func (s *Source) projectURL(base *url.URL) *url.URL {
	return base.JoinPath(s.Project)
}

// handleErr always wraps the given error with ErrDevOpsSource keeping the chain intact, so
// the transport and decode classification of the fetch errors survives.
func handleErr(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrDevOpsSource, err)
}
