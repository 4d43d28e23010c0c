// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	reader, provider := newTestProvider()
	metrics, err := NewHTTPMetrics(provider)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(metrics.Middleware())
	app.Get("/api/v1/cards/:name", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/cards/tasks", "/api/v1/cards/pipelines"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	collected := collect(t, reader)
	requests, ok := collected["devboard_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, requests.DataPoints, 1)
	assert.Equal(t, int64(2), requests.DataPoints[0].Value)

	route, _ := requests.DataPoints[0].Attributes.Value("route")
	assert.Equal(t, "/api/v1/cards/:name", route.AsString())
}

func TestHTTPMiddlewareNil(t *testing.T) {
	t.Parallel()

	var metrics *HTTPMetrics
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(metrics.Middleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
