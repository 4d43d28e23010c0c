// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package poller

import (
	"slices"
	"time"
)

// ErrorInfo is the human readable view of a failed fetch.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// State is a snapshot of a Synchronizer.
type State[T any] struct {
	Data        []T        `json:"data" yaml:"data"`
	Phase       Phase      `json:"phase" yaml:"phase"`
	Error       *ErrorInfo `json:"error,omitempty" yaml:"error,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated" yaml:"lastUpdated"`
	LastAttempt time.Time  `json:"lastAttempt" yaml:"lastAttempt"`
}

// clone copies the data slice and the error so the snapshot can be handed to subscribers.
func (s State[T]) clone() State[T] {
	cloned := s
	cloned.Data = slices.Clone(s.Data)
	if s.Error != nil {
		errorInfo := *s.Error
		cloned.Error = &errorInfo
	}
	return cloned
}
