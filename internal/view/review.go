// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package view

import (
	"fmt"
	"strings"
)

// VoteApproved is the reviewer vote meaning an explicit approval.
const VoteApproved = 10

// ApprovalLevel summarizes how many reviewers approved a pull request.
type ApprovalLevel string

const (
	ApprovalNone    ApprovalLevel = "none"
	ApprovalPartial ApprovalLevel = "partial"
	ApprovalFull    ApprovalLevel = "full"
)

// ApprovalSummary counts the approving reviewers of a pull request.
type ApprovalSummary struct {
	Approved int           `json:"approved" yaml:"approved"`
	Total    int           `json:"total" yaml:"total"`
	Level    ApprovalLevel `json:"level" yaml:"level"`
}

func (a ApprovalSummary) String() string {
	return fmt.Sprintf("%d/%d", a.Approved, a.Total)
}

// Approvals summarizes the reviewer votes. Full means every reviewer approved and there is
// at least one reviewer.
func Approvals(votes []int) ApprovalSummary {
	summary := ApprovalSummary{Total: len(votes)}
	for _, vote := range votes {
		if vote == VoteApproved {
			summary.Approved++
		}
	}

	switch {
	case summary.Approved == 0:
		summary.Level = ApprovalNone
	case summary.Approved == summary.Total:
		summary.Level = ApprovalFull
	default:
		summary.Level = ApprovalPartial
	}
	return summary
}

// PullRequestStatus is the display state of a pull request.
type PullRequestStatus string

const (
	PullRequestActive    PullRequestStatus = "active"
	PullRequestCompleted PullRequestStatus = "completed"
	PullRequestAbandoned PullRequestStatus = "abandoned"
	PullRequestConflict  PullRequestStatus = "conflict"
	PullRequestUnknown   PullRequestStatus = "unknown"
)

// PullRequestState derives the display state from the raw status and merge status.
// A merge conflict overrides the status of a pull request still open.
func PullRequestState(status, mergeStatus string) PullRequestStatus {
	status = strings.ToLower(strings.TrimSpace(status))
	if strings.EqualFold(strings.TrimSpace(mergeStatus), "conflicts") && status != "completed" && status != "abandoned" {
		return PullRequestConflict
	}

	switch status {
	case "active":
		return PullRequestActive
	case "completed":
		return PullRequestCompleted
	case "abandoned":
		return PullRequestAbandoned
	default:
		return PullRequestUnknown
	}
}

// StateCounts counts work items by coarse state.
type StateCounts struct {
	Active int `json:"active" yaml:"active"`
	Closed int `json:"closed" yaml:"closed"`
	Other  int `json:"other" yaml:"other"`
	Total  int `json:"total" yaml:"total"`
}

// CountStates buckets items in active, closed and other by the state returned from stateFn,
// ignoring case.
func CountStates[T any](items []T, stateFn func(T) string) StateCounts {
	counts := StateCounts{Total: len(items)}
	for _, item := range items {
		switch strings.ToLower(strings.TrimSpace(stateFn(item))) {
		case "active":
			counts.Active++
		case "closed":
			counts.Closed++
		default:
			counts.Other++
		}
	}
	return counts
}
