// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package board

import (
	"slices"
	"strings"
	"time"

	"github.com/mia-platform/devboard/internal/config"
	"github.com/mia-platform/devboard/internal/poller"
	"github.com/mia-platform/devboard/internal/source"
	"github.com/mia-platform/devboard/internal/view"
)

// Names of the rendered cards.
const (
	CardPullRequests = "pullrequests"
	CardPipelines    = "pipelines"
	CardEnvironments = "environments"
	CardTasks        = "tasks"
)

// CardNames lists the cards in display order.
var CardNames = []string{CardPullRequests, CardPipelines, CardEnvironments, CardTasks}

// SourceStatus is the synchronization state of one source, without its data.
type SourceStatus struct {
	Name        string            `json:"name" yaml:"name"`
	Phase       poller.Phase      `json:"phase" yaml:"phase"`
	Error       *poller.ErrorInfo `json:"error,omitempty" yaml:"error,omitempty"`
	LastUpdated time.Time         `json:"lastUpdated" yaml:"lastUpdated"`
	LastAttempt time.Time         `json:"lastAttempt" yaml:"lastAttempt"`
	Items       int               `json:"items" yaml:"items"`
}

// PullRequestItem is a pull request with its derived review state.
type PullRequestItem struct {
	ID           int                    `json:"id" yaml:"id"`
	Title        string                 `json:"title" yaml:"title"`
	Repository   string                 `json:"repository" yaml:"repository"`
	RepositoryID string                 `json:"repositoryId" yaml:"repositoryId"`
	CreatedBy    string                 `json:"createdBy" yaml:"createdBy"`
	CreationDate time.Time              `json:"creationDate" yaml:"creationDate"`
	IsDraft      bool                   `json:"isDraft" yaml:"isDraft"`
	SourceBranch string                 `json:"sourceBranch" yaml:"sourceBranch"`
	TargetBranch string                 `json:"targetBranch" yaml:"targetBranch"`
	State        view.PullRequestStatus `json:"state" yaml:"state"`
	Approvals    view.ApprovalSummary   `json:"approvals" yaml:"approvals"`
}

// PullRequestsCard lists the pull requests of the project.
type PullRequestsCard struct {
	Sources []SourceStatus    `json:"sources" yaml:"sources"`
	Items   []PullRequestItem `json:"items" yaml:"items"`
}

// PipelineItem is a build with its normalized status.
type PipelineItem struct {
	ID           int         `json:"id" yaml:"id"`
	BuildNumber  string      `json:"buildNumber" yaml:"buildNumber"`
	Definition   string      `json:"definition" yaml:"definition"`
	Status       view.Status `json:"status" yaml:"status"`
	SourceBranch string      `json:"sourceBranch,omitempty" yaml:"sourceBranch,omitempty"`
	RequestedFor string      `json:"requestedFor,omitempty" yaml:"requestedFor,omitempty"`
	StartTime    time.Time   `json:"startTime" yaml:"startTime"`
	FinishTime   time.Time   `json:"finishTime" yaml:"finishTime"`
	Duration     string      `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// PipelinesCard lists the most recent builds.
type PipelinesCard struct {
	Sources []SourceStatus `json:"sources" yaml:"sources"`
	Items   []PipelineItem `json:"items" yaml:"items"`
}

// StageItem is one environment of a release.
type StageItem struct {
	Name       string      `json:"name" yaml:"name"`
	Definition string      `json:"definition" yaml:"definition"`
	Status     view.Status `json:"status" yaml:"status"`
}

// ReleaseItem is a release with the status of its stages.
type ReleaseItem struct {
	ID         int         `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Definition string      `json:"definition" yaml:"definition"`
	CreatedOn  time.Time   `json:"createdOn" yaml:"createdOn"`
	Stages     []StageItem `json:"stages" yaml:"stages"`
}

// BucketItem holds the latest build and release of one partition of an environment.
type BucketItem struct {
	Name          string        `json:"name" yaml:"name"`
	Builds        int           `json:"builds" yaml:"builds"`
	Releases      int           `json:"releases" yaml:"releases"`
	LatestBuild   *PipelineItem `json:"latestBuild,omitempty" yaml:"latestBuild,omitempty"`
	LatestRelease *ReleaseItem  `json:"latestRelease,omitempty" yaml:"latestRelease,omitempty"`
}

// EnvironmentItem is a configured environment split in its buckets.
type EnvironmentItem struct {
	Key     string       `json:"key" yaml:"key"`
	Name    string       `json:"name" yaml:"name"`
	Buckets []BucketItem `json:"buckets" yaml:"buckets"`
}

// EnvironmentsCard shows the deployment state of every configured environment.
type EnvironmentsCard struct {
	Sources      []SourceStatus    `json:"sources" yaml:"sources"`
	Environments []EnvironmentItem `json:"environments" yaml:"environments"`
}

// TaskItem is a work item shown on the tasks card.
type TaskItem struct {
	ID          int       `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Type        string    `json:"type" yaml:"type"`
	State       string    `json:"state" yaml:"state"`
	ChangedDate time.Time `json:"changedDate" yaml:"changedDate"`
}

// TasksCard groups the recent work items by assignee.
type TasksCard struct {
	Sources   []SourceStatus                 `json:"sources" yaml:"sources"`
	Counts    view.StateCounts               `json:"counts" yaml:"counts"`
	Assignees []view.Group[string, TaskItem] `json:"assignees" yaml:"assignees"`
}

func statusOf[T any](name string, state poller.State[T]) SourceStatus {
	return SourceStatus{
		Name:        name,
		Phase:       state.Phase,
		Error:       state.Error,
		LastUpdated: state.LastUpdated,
		LastAttempt: state.LastAttempt,
		Items:       len(state.Data),
	}
}

func renderPullRequests(status SourceStatus, pullRequests []source.PullRequest) PullRequestsCard {
	items := make([]PullRequestItem, 0, len(pullRequests))
	for _, pullRequest := range pullRequests {
		items = append(items, PullRequestItem{
			ID:           pullRequest.ID,
			Title:        pullRequest.Title,
			Repository:   pullRequest.Repository,
			RepositoryID: pullRequest.RepositoryID,
			CreatedBy:    pullRequest.CreatedBy,
			CreationDate: pullRequest.CreationDate,
			IsDraft:      pullRequest.IsDraft,
			SourceBranch: pullRequest.SourceBranch(),
			TargetBranch: pullRequest.TargetBranch(),
			State:        view.PullRequestState(pullRequest.Status, pullRequest.MergeStatus),
			Approvals:    view.Approvals(pullRequest.Votes()),
		})
	}

	return PullRequestsCard{Sources: []SourceStatus{status}, Items: items}
}

func renderPipelines(status SourceStatus, builds []source.Build, limit int) PipelinesCard {
	if limit > 0 && len(builds) > limit {
		builds = builds[:limit]
	}

	items := make([]PipelineItem, 0, len(builds))
	for _, build := range builds {
		items = append(items, pipelineItem(build))
	}
	return PipelinesCard{Sources: []SourceStatus{status}, Items: items}
}

func pipelineItem(build source.Build) PipelineItem {
	item := PipelineItem{
		ID:           build.ID,
		BuildNumber:  build.BuildNumber,
		Definition:   build.Definition,
		Status:       view.ClassifyStatus(build.Status, build.Result),
		SourceBranch: build.SourceBranch,
		RequestedFor: build.RequestedFor,
		StartTime:    build.StartTime,
		FinishTime:   build.FinishTime,
	}
	if duration := build.Duration(); duration > 0 {
		item.Duration = duration.String()
	}
	return item
}

func releaseItem(release source.Release) ReleaseItem {
	stages := make([]StageItem, 0, len(release.Environments))
	for _, environment := range release.Environments {
		stages = append(stages, StageItem{
			Name:       environment.Name,
			Definition: environment.Definition,
			Status:     view.ClassifyStatus(environment.Status, ""),
		})
	}

	return ReleaseItem{
		ID:         release.ID,
		Name:       release.Name,
		Definition: release.Definition,
		CreatedOn:  release.CreatedOn,
		Stages:     stages,
	}
}

// renderEnvironments partitions builds by definition name and releases by the definition
// names of their stages. An item belongs to an environment when the name contains its key
// and to a bucket when the bucket rule matches the same name.
func renderEnvironments(layout *config.Board, statuses []SourceStatus, builds []source.Build, releases []source.Release) EnvironmentsCard {
	environments := make([]EnvironmentItem, 0, len(layout.Environments))
	for _, environment := range layout.Environments {
		key := strings.ToLower(environment.Key)
		buckets := layout.BucketsFor(environment)

		inEnvironment := func(name string) bool {
			return strings.Contains(strings.ToLower(name), key)
		}

		environmentBuilds := view.Partition(
			slices.Collect(view.FilterBySubstring(builds, buildDefinition, key)),
			buildDefinition,
			buckets,
		)

		item := EnvironmentItem{
			Key:     environment.Key,
			Name:    environment.DisplayName(),
			Buckets: make([]BucketItem, 0, len(buckets)),
		}

		for _, bucket := range buckets {
			bucketItem := BucketItem{Name: bucket.Name}

			if matched, _ := environmentBuilds.Get(bucket.Name); len(matched) > 0 {
				latest := pipelineItem(matched[0])
				bucketItem.Builds = len(matched)
				bucketItem.LatestBuild = &latest
			}

			for _, release := range releases {
				if !releaseMatches(release, func(name string) bool {
					return inEnvironment(name) && bucket.Match(name)
				}) {
					continue
				}

				bucketItem.Releases++
				if bucketItem.LatestRelease == nil {
					latest := releaseItem(release)
					bucketItem.LatestRelease = &latest
				}
			}

			item.Buckets = append(item.Buckets, bucketItem)
		}

		environments = append(environments, item)
	}

	return EnvironmentsCard{Sources: statuses, Environments: environments}
}

func releaseMatches(release source.Release, match func(string) bool) bool {
	for _, name := range release.DefinitionNames() {
		if match(name) {
			return true
		}
	}
	return len(release.Environments) == 0 && match(release.Definition)
}

func renderTasks(status SourceStatus, workItems []source.WorkItem) TasksCard {
	groups := view.GroupBy(workItems, source.WorkItem.Assignee)

	assignees := make([]view.Group[string, TaskItem], 0, groups.Len())
	for assignee, items := range groups.All() {
		tasks := make([]TaskItem, 0, len(items))
		for _, workItem := range items {
			tasks = append(tasks, TaskItem{
				ID:          workItem.ID,
				Title:       workItem.Title,
				Type:        workItem.WorkItemType,
				State:       workItem.State,
				ChangedDate: workItem.ChangedDate,
			})
		}
		assignees = append(assignees, view.Group[string, TaskItem]{Key: assignee, Items: tasks})
	}

	return TasksCard{
		Sources:   []SourceStatus{status},
		Counts:    view.CountStates(workItems, func(workItem source.WorkItem) string { return workItem.State }),
		Assignees: assignees,
	}
}

func buildDefinition(build source.Build) string { return build.Definition }
func pullRequestTitle(pullRequest source.PullRequest) string { return pullRequest.Title }
func workItemTitle(workItem source.WorkItem) string { return workItem.Title }
func pipelineDefinition(item PipelineItem) string { return item.Definition }
func environmentName(environment EnvironmentItem) string { return environment.Name }
