// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package poller

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// DefaultDebounce is the minimum gap between two accepted manual refreshes.
const DefaultDebounce = 500 * time.Millisecond

// Recorder receives the outcome of every fetch and every dropped request.
type Recorder interface {
	RecordFetch(ctx context.Context, source string, duration time.Duration, err error)
	RecordDropped(ctx context.Context, source string, reason string)
}

// Option customizes a Synchronizer.
type Option func(*options)

type options struct {
	clock    clock.WithTicker
	debounce time.Duration
	recorder Recorder
}

// WithClock sets the clock used for ticks, debounce and timestamps.
func WithClock(c clock.WithTicker) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithDebounce sets the manual refresh debounce window; zero disables it.
func WithDebounce(debounce time.Duration) Option {
	return func(o *options) {
		o.debounce = debounce
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

type noopRecorder struct{}

func (noopRecorder) RecordFetch(context.Context, string, time.Duration, error) {}
func (noopRecorder) RecordDropped(context.Context, string, string)             {}
