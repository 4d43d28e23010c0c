// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/mia-platform/devboard/internal/info"
)

// Provider is a MeterProvider paired with the handler exposing its metrics.
type Provider struct {
	metric.MeterProvider

	handler  http.Handler
	shutdown func(context.Context) error
}

// NewProvider returns a provider exporting to a dedicated Prometheus registry. When enabled
// is false a no-op provider is returned and the handler answers 404.
func NewProvider(enabled bool) (*Provider, error) {
	if !enabled {
		return &Provider{
			MeterProvider: noop.NewMeterProvider(),
			handler:       http.NotFoundHandler(),
			shutdown:      func(context.Context) error { return nil },
		}, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", info.ServiceName),
		attribute.String("service.version", info.Version),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	return &Provider{
		MeterProvider: provider,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		shutdown:      provider.Shutdown,
	}, nil
}

// Handler serves the collected metrics.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Shutdown flushes and releases the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
