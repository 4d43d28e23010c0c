// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mia-platform/devboard/internal/poller"
)

const (
	// SyncMetricsMeterName is the name used for the synchronizer metrics meter
	SyncMetricsMeterName = "github.com/mia-platform/devboard/poller"

	resultSuccess = "success"
	resultFailure = "failure"
)

var _ poller.Recorder = &SyncMetrics{}

// SyncMetrics holds the instruments recorded by the synchronizers.
type SyncMetrics struct {
	fetchDuration metric.Float64Histogram
	fetchTotal    metric.Int64Counter
	droppedTotal  metric.Int64Counter
	items         metric.Int64Gauge
}

// NewSyncMetrics creates the synchronizer instruments. A nil provider returns nil, which is
// a valid no-op recorder.
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	fetchDuration, err := meter.Float64Histogram(
		"devboard_fetch_duration_seconds",
		metric.WithDescription("Duration of source fetches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"devboard_fetches_total",
		metric.WithDescription("Total number of completed source fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	droppedTotal, err := meter.Int64Counter(
		"devboard_fetch_requests_dropped_total",
		metric.WithDescription("Total number of refresh requests dropped"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Gauge(
		"devboard_source_items",
		metric.WithDescription("Number of items returned by the last successful fetch"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		fetchDuration: fetchDuration,
		fetchTotal:    fetchTotal,
		droppedTotal:  droppedTotal,
		items:         items,
	}, nil
}

// RecordFetch implement poller.Recorder interface.
func (m *SyncMetrics) RecordFetch(ctx context.Context, source string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	result := resultSuccess
	if err != nil {
		result = resultFailure
	}

	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("result", result),
	)
	m.fetchDuration.Record(ctx, duration.Seconds(), attrs)
	m.fetchTotal.Add(ctx, 1, attrs)
}

// RecordDropped implement poller.Recorder interface.
func (m *SyncMetrics) RecordDropped(ctx context.Context, source string, reason string) {
	if m == nil {
		return
	}

	m.droppedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("reason", reason),
	))
}

// RecordItems records the size of the collection held by a source.
func (m *SyncMetrics) RecordItems(ctx context.Context, source string, count int) {
	if m == nil {
		return
	}

	m.items.Record(ctx, int64(count), metric.WithAttributes(attribute.String("source", source)))
}
