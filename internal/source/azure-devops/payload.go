// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuredevops

import (
	"time"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"

	"github.com/mia-platform/devboard/internal/source"
)

type identityRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (i *identityRef) displayName() string {
	if i == nil {
		return ""
	}
	return i.DisplayName
}

type definitionRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (d *definitionRef) name() string {
	if d == nil {
		return ""
	}
	return d.Name
}

func timeOf(t *azuredevops.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

type reviewerPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Vote        int    `json:"vote"`
	IsRequired  bool   `json:"isRequired"`
}

func (r reviewerPayload) toReviewer() source.Reviewer {
	return source.Reviewer{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Vote:        r.Vote,
		IsRequired:  r.IsRequired,
	}
}

type pullRequestPayload struct {
	PullRequestID int    `json:"pullRequestId"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	MergeStatus   string `json:"mergeStatus"`
	IsDraft       bool   `json:"isDraft"`
	Repository    *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"repository"`
	SourceRefName string            `json:"sourceRefName"`
	TargetRefName string            `json:"targetRefName"`
	CreatedBy     *identityRef      `json:"createdBy"`
	CreationDate  *azuredevops.Time `json:"creationDate"`
	Reviewers     []reviewerPayload `json:"reviewers"`
}

func (p pullRequestPayload) toPullRequest() source.PullRequest {
	pullRequest := source.PullRequest{
		ID:           p.PullRequestID,
		Title:        p.Title,
		Status:       p.Status,
		MergeStatus:  p.MergeStatus,
		IsDraft:      p.IsDraft,
		SourceRef:    p.SourceRefName,
		TargetRef:    p.TargetRefName,
		CreatedBy:    p.CreatedBy.displayName(),
		CreationDate: timeOf(p.CreationDate),
		Reviewers:    make([]source.Reviewer, 0, len(p.Reviewers)),
	}

	if p.Repository != nil {
		pullRequest.RepositoryID = p.Repository.ID
		pullRequest.Repository = p.Repository.Name
	}

	for _, reviewer := range p.Reviewers {
		pullRequest.Reviewers = append(pullRequest.Reviewers, reviewer.toReviewer())
	}
	return pullRequest
}

type buildPayload struct {
	ID           int               `json:"id"`
	BuildNumber  string            `json:"buildNumber"`
	Status       string            `json:"status"`
	Result       string            `json:"result"`
	SourceBranch string            `json:"sourceBranch"`
	Definition   *definitionRef    `json:"definition"`
	RequestedFor *identityRef      `json:"requestedFor"`
	QueueTime    *azuredevops.Time `json:"queueTime"`
	StartTime    *azuredevops.Time `json:"startTime"`
	FinishTime   *azuredevops.Time `json:"finishTime"`
}

func (b buildPayload) toBuild() source.Build {
	build := source.Build{
		ID:           b.ID,
		BuildNumber:  b.BuildNumber,
		Definition:   b.Definition.name(),
		Status:       b.Status,
		Result:       b.Result,
		SourceBranch: b.SourceBranch,
		RequestedFor: b.RequestedFor.displayName(),
		QueueTime:    timeOf(b.QueueTime),
		StartTime:    timeOf(b.StartTime),
		FinishTime:   timeOf(b.FinishTime),
	}

	if b.Definition != nil {
		build.DefinitionID = b.Definition.ID
	}
	return build
}

type releaseEnvironmentPayload struct {
	ID                int            `json:"id"`
	Name              string         `json:"name"`
	Status            string         `json:"status"`
	ReleaseDefinition *definitionRef `json:"releaseDefinition"`
}

type releasePayload struct {
	ID                int                         `json:"id"`
	Name              string                      `json:"name"`
	Status            string                      `json:"status"`
	CreatedOn         *azuredevops.Time           `json:"createdOn"`
	ReleaseDefinition *definitionRef              `json:"releaseDefinition"`
	Environments      []releaseEnvironmentPayload `json:"environments"`
}

func (r releasePayload) toRelease() source.Release {
	release := source.Release{
		ID:           r.ID,
		Name:         r.Name,
		Status:       r.Status,
		Definition:   r.ReleaseDefinition.name(),
		CreatedOn:    timeOf(r.CreatedOn),
		Environments: make([]source.ReleaseEnvironment, 0, len(r.Environments)),
	}

	for _, environment := range r.Environments {
		definition := environment.ReleaseDefinition.name()
		if definition == "" {
			definition = release.Definition
		}

		release.Environments = append(release.Environments, source.ReleaseEnvironment{
			ID:         environment.ID,
			Name:       environment.Name,
			Status:     environment.Status,
			Definition: definition,
		})
	}
	return release
}

type workItemPayload struct {
	ID           int               `json:"id"`
	Title        string            `json:"title"`
	WorkItemType string            `json:"workItemType"`
	State        string            `json:"state"`
	AssignedTo   *identityRef      `json:"assignedTo"`
	TeamProject  string            `json:"teamProject"`
	ChangedDate  *azuredevops.Time `json:"changedDate"`
}

func (w workItemPayload) toWorkItem() source.WorkItem {
	return source.WorkItem{
		ID:           w.ID,
		Title:        w.Title,
		WorkItemType: w.WorkItemType,
		State:        w.State,
		AssignedTo:   w.AssignedTo.displayName(),
		TeamProject:  w.TeamProject,
		ChangedDate:  timeOf(w.ChangedDate),
	}
}

func convert[P any, T any](payloads []P, fn func(P) T) []T {
	items := make([]T, 0, len(payloads))
	for _, payload := range payloads {
		items = append(items, fn(payload))
	}
	return items
}
