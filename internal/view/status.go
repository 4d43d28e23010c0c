// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package view

import "strings"

// Status is the normalized outcome of a build or a release deployment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusCanceled  Status = "Canceled"
	StatusUnknown   Status = "Unknown"
)

var (
	statusByState = map[string]Status{
		"inprogress": StatusRunning,
		"cancelling": StatusRunning,
		"notstarted": StatusPending,
		"queued":     StatusPending,
		"scheduled":  StatusPending,
		"postponed":  StatusPending,
		"succeeded":  StatusSucceeded,
		"failed":     StatusFailed,
		"rejected":   StatusFailed,
		"canceled":   StatusCanceled,
		"abandoned":  StatusCanceled,
	}

	statusByResult = map[string]Status{
		"succeeded": StatusSucceeded,
		"failed":    StatusFailed,
		"canceled":  StatusCanceled,
	}
)

// ClassifyStatus maps a raw status and result pair to a Status. Both builds
// (status + result) and release environments (status only) are supported; anything not
// recognized, empty strings included, is StatusUnknown.
func ClassifyStatus(status, result string) Status {
	status = strings.ToLower(strings.TrimSpace(status))
	result = strings.ToLower(strings.TrimSpace(result))

	switch status {
	case "completed", "active":
		if classified, found := statusByResult[result]; found {
			return classified
		}
		return StatusUnknown
	case "":
		return StatusUnknown
	}

	if classified, found := statusByState[status]; found {
		return classified
	}
	return StatusUnknown
}
