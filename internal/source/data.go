// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"strings"
	"time"
)

// UnassignedName is used for work items without an assignee.
const UnassignedName = "Unassigned"

const branchPrefix = "refs/heads/"

// PullRequest is a git pull request of the project.
type PullRequest struct {
	ID           int        `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Status       string     `json:"status" yaml:"status"`
	MergeStatus  string     `json:"mergeStatus,omitempty" yaml:"mergeStatus,omitempty"`
	IsDraft      bool       `json:"isDraft" yaml:"isDraft"`
	RepositoryID string     `json:"repositoryId" yaml:"repositoryId"`
	Repository   string     `json:"repository" yaml:"repository"`
	SourceRef    string     `json:"sourceRef" yaml:"sourceRef"`
	TargetRef    string     `json:"targetRef" yaml:"targetRef"`
	CreatedBy    string     `json:"createdBy" yaml:"createdBy"`
	CreationDate time.Time  `json:"creationDate" yaml:"creationDate"`
	Reviewers    []Reviewer `json:"reviewers" yaml:"reviewers"`
}

// SourceBranch returns the source ref without the refs/heads/ prefix.
func (p PullRequest) SourceBranch() string {
	return strings.TrimPrefix(p.SourceRef, branchPrefix)
}

// TargetBranch returns the target ref without the refs/heads/ prefix.
func (p PullRequest) TargetBranch() string {
	return strings.TrimPrefix(p.TargetRef, branchPrefix)
}

// Votes returns the vote of every reviewer, in reviewer order.
func (p PullRequest) Votes() []int {
	votes := make([]int, 0, len(p.Reviewers))
	for _, reviewer := range p.Reviewers {
		votes = append(votes, reviewer.Vote)
	}
	return votes
}

// Reviewer is a pull request reviewer with the vote it cast: 10 approved, 5 approved with
// suggestions, 0 no vote, -5 waiting for author, -10 rejected.
type Reviewer struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	Vote        int    `json:"vote" yaml:"vote"`
	IsRequired  bool   `json:"isRequired" yaml:"isRequired"`
}

// Build is a pipeline run.
type Build struct {
	ID           int       `json:"id" yaml:"id"`
	BuildNumber  string    `json:"buildNumber" yaml:"buildNumber"`
	DefinitionID int       `json:"definitionId" yaml:"definitionId"`
	Definition   string    `json:"definition" yaml:"definition"`
	Status       string    `json:"status" yaml:"status"`
	Result       string    `json:"result,omitempty" yaml:"result,omitempty"`
	SourceBranch string    `json:"sourceBranch,omitempty" yaml:"sourceBranch,omitempty"`
	RequestedFor string    `json:"requestedFor,omitempty" yaml:"requestedFor,omitempty"`
	QueueTime    time.Time `json:"queueTime" yaml:"queueTime"`
	StartTime    time.Time `json:"startTime" yaml:"startTime"`
	FinishTime   time.Time `json:"finishTime" yaml:"finishTime"`
}

// Duration returns the run time of a finished build, zero otherwise.
func (b Build) Duration() time.Duration {
	if b.StartTime.IsZero() || b.FinishTime.IsZero() || b.FinishTime.Before(b.StartTime) {
		return 0
	}
	return b.FinishTime.Sub(b.StartTime)
}

// Release is a classic release with its stages.
type Release struct {
	ID           int                  `json:"id" yaml:"id"`
	Name         string               `json:"name" yaml:"name"`
	Status       string               `json:"status" yaml:"status"`
	Definition   string               `json:"definition" yaml:"definition"`
	CreatedOn    time.Time            `json:"createdOn" yaml:"createdOn"`
	Environments []ReleaseEnvironment `json:"environments" yaml:"environments"`
}

// DefinitionNames returns the release definition name of every environment, used to match
// the release against partition rules.
func (r Release) DefinitionNames() []string {
	names := make([]string, 0, len(r.Environments))
	for _, environment := range r.Environments {
		names = append(names, environment.Definition)
	}
	return names
}

// ReleaseEnvironment is one stage of a release.
type ReleaseEnvironment struct {
	ID         int    `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Status     string `json:"status" yaml:"status"`
	Definition string `json:"definition" yaml:"definition"`
}

// WorkItem is a work item recently touched by the authenticated user.
type WorkItem struct {
	ID           int       `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	WorkItemType string    `json:"workItemType" yaml:"workItemType"`
	State        string    `json:"state" yaml:"state"`
	AssignedTo   string    `json:"assignedTo,omitempty" yaml:"assignedTo,omitempty"`
	TeamProject  string    `json:"teamProject,omitempty" yaml:"teamProject,omitempty"`
	ChangedDate  time.Time `json:"changedDate" yaml:"changedDate"`
}

// Assignee returns the assignee display name or UnassignedName.
func (w WorkItem) Assignee() string {
	if strings.TrimSpace(w.AssignedTo) == "" {
		return UnassignedName
	}
	return w.AssignedTo
}
