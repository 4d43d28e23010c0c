// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/mia-platform/devboard/internal/board"
	"github.com/mia-platform/devboard/internal/config"
	"github.com/mia-platform/devboard/internal/source"
	"github.com/mia-platform/devboard/internal/source/fake"
	"github.com/mia-platform/devboard/internal/telemetry"
)

var testTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func testConfig() *Config {
	return &Config{DisableStartupMessage: true, HTTPHost: "127.0.0.1", HTTPPort: 3000}
}

func testBoard(t *testing.T, start bool) (*board.Board, *fake.DevOps) {
	t.Helper()

	devOps := fake.NewDevOps(t).
		SetPullRequests(
			source.PullRequest{ID: 1, Title: "Add login page", Status: "active"},
			source.PullRequest{ID: 2, Title: "Fix pipeline", Status: "active"},
		).
		SetBuilds(source.Build{ID: 10, Definition: "web-dev", Status: "completed", Result: "succeeded"}).
		SetWorkItems(source.WorkItem{ID: 100, Title: "Write docs", State: "Active"}).
		SetReviewers("repo", 1, source.Reviewer{DisplayName: "Alice", Vote: 10})

	b := board.New(config.DefaultBoard(), devOps, board.WithClock(testingclock.NewFakeClock(testTime)))
	if !start {
		return b, devOps
	}

	require.NoError(t, b.Start(t.Context()))
	t.Cleanup(b.Stop)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.WaitReady(ctx))
	return b, devOps
}

func testApp(t *testing.T, b Board, provider *telemetry.Provider) *fiber.App {
	t.Helper()

	srv, err := NewServer(t.Context(), testConfig(), b, provider)
	require.NoError(t, err)
	return srv.(*impServer).app
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, string) {
	t.Helper()

	response, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response.StatusCode, string(body)
}

func TestStatusRoutes(t *testing.T) {
	t.Parallel()

	t.Run("not ready before start", func(t *testing.T) {
		t.Parallel()

		b, _ := testBoard(t, false)
		app := testApp(t, b, nil)

		statusCode, body := doRequest(t, app, http.MethodGet, healthzRoute)
		assert.Equal(t, http.StatusOK, statusCode)
		assert.Contains(t, body, `"status":"OK"`)

		statusCode, body = doRequest(t, app, http.MethodGet, readyRoute)
		assert.Equal(t, http.StatusServiceUnavailable, statusCode)
		assert.Contains(t, body, `"status":"KO"`)
		assert.Contains(t, body, `"phase":"Idle"`)

		statusCode, _ = doRequest(t, app, http.MethodGet, metricsRoute)
		assert.Equal(t, http.StatusNotFound, statusCode)
	})

	t.Run("ready after first fetches", func(t *testing.T) {
		t.Parallel()

		b, _ := testBoard(t, true)
		app := testApp(t, b, nil)

		statusCode, body := doRequest(t, app, http.MethodGet, readyRoute)
		assert.Equal(t, http.StatusOK, statusCode)
		assert.Contains(t, body, `"status":"OK"`)
	})

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()

		provider, err := telemetry.NewProvider(true)
		require.NoError(t, err)
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

		b, _ := testBoard(t, true)
		app := testApp(t, b, provider)

		statusCode, _ := doRequest(t, app, http.MethodGet, apiPrefix+"/board")
		require.Equal(t, http.StatusOK, statusCode)

		statusCode, body := doRequest(t, app, http.MethodGet, metricsRoute)
		assert.Equal(t, http.StatusOK, statusCode)
		assert.Contains(t, body, "devboard_http_requests_total")
		assert.Contains(t, body, `route="/api/v1/board"`)
	})
}

func TestAPIRoutes(t *testing.T) {
	t.Parallel()

	b, devOps := testBoard(t, true)
	app := testApp(t, b, nil)

	t.Run("board snapshot", func(t *testing.T) {
		statusCode, body := doRequest(t, app, http.MethodGet, apiPrefix+"/board")
		require.Equal(t, http.StatusOK, statusCode)

		snapshot := new(board.Snapshot)
		require.NoError(t, json.Unmarshal([]byte(body), snapshot))
		assert.Len(t, snapshot.PullRequests.Items, 2)
		assert.Len(t, snapshot.Sources, 4)
	})

	t.Run("cards", func(t *testing.T) {
		testCases := map[string]struct {
			target             string
			expectedStatusCode int
			expectedBody       []string
		}{
			"pull requests card": {
				target:             apiPrefix + "/cards/pullrequests",
				expectedStatusCode: http.StatusOK,
				expectedBody:       []string{`"title":"Add login page"`, `"title":"Fix pipeline"`},
			},
			"filtered pull requests card": {
				target:             apiPrefix + "/cards/pullrequests?q=login",
				expectedStatusCode: http.StatusOK,
				expectedBody:       []string{`"title":"Add login page"`},
			},
			"pipelines card": {
				target:             apiPrefix + "/cards/pipelines",
				expectedStatusCode: http.StatusOK,
				expectedBody:       []string{`"status":"Succeeded"`},
			},
			"unknown card": {
				target:             apiPrefix + "/cards/charts",
				expectedStatusCode: http.StatusNotFound,
				expectedBody:       []string{`"statusCode":404`, board.ErrUnknownCard.Error()},
			},
		}

		for testName, test := range testCases {
			t.Run(testName, func(t *testing.T) {
				statusCode, body := doRequest(t, app, http.MethodGet, test.target)
				assert.Equal(t, test.expectedStatusCode, statusCode)
				for _, expected := range test.expectedBody {
					assert.Contains(t, body, expected)
				}
			})
		}

		_, body := doRequest(t, app, http.MethodGet, apiPrefix+"/cards/pullrequests?q=login")
		assert.NotContains(t, body, "Fix pipeline")
	})

	t.Run("reviewers", func(t *testing.T) {
		statusCode, body := doRequest(t, app, http.MethodGet, apiPrefix+"/repositories/repo/pullrequests/1/reviewers")
		assert.Equal(t, http.StatusOK, statusCode)
		assert.Contains(t, body, `"displayName":"Alice"`)

		statusCode, body = doRequest(t, app, http.MethodGet, apiPrefix+"/repositories/repo/pullrequests/2/reviewers")
		assert.Equal(t, http.StatusOK, statusCode)
		assert.Equal(t, "[]", body)

		statusCode, _ = doRequest(t, app, http.MethodGet, apiPrefix+"/repositories/repo/pullrequests/abc/reviewers")
		assert.Equal(t, http.StatusBadRequest, statusCode)

		devOps.SetError(fake.OperationReviewers, errors.New("upstream unavailable"))
		statusCode, body = doRequest(t, app, http.MethodGet, apiPrefix+"/repositories/repo/pullrequests/1/reviewers")
		assert.Equal(t, http.StatusBadGateway, statusCode)
		assert.Contains(t, body, "upstream unavailable")
	})

	t.Run("refresh", func(t *testing.T) {
		statusCode, body := doRequest(t, app, http.MethodPost, apiPrefix+"/sources/workitems/refresh")
		assert.Equal(t, http.StatusAccepted, statusCode)
		assert.JSONEq(t, `{"source":"workitems","accepted":true}`, body)

		statusCode, body = doRequest(t, app, http.MethodPost, apiPrefix+"/sources/workitems/refresh")
		assert.Equal(t, http.StatusConflict, statusCode)
		assert.JSONEq(t, `{"source":"workitems","accepted":false}`, body)

		statusCode, _ = doRequest(t, app, http.MethodPost, apiPrefix+"/sources/charts/refresh")
		assert.Equal(t, http.StatusNotFound, statusCode)
	})
}

func TestRefreshNotStarted(t *testing.T) {
	t.Parallel()

	b, _ := testBoard(t, false)
	app := testApp(t, b, nil)

	statusCode, _ := doRequest(t, app, http.MethodPost, apiPrefix+"/sources/builds/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, statusCode)
}

func freePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func TestStartServer(t *testing.T) {
	t.Parallel()

	b, _ := testBoard(t, false)
	cfg := testConfig()
	cfg.HTTPPort = freePort(t)

	srv, err := NewServer(t.Context(), cfg, b, nil)
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d%s", cfg.HTTPPort, healthzRoute)
	require.Eventually(t, func() bool {
		response, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Stop())
	require.NoError(t, <-errChan)
}

func TestStartServerListenError(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	b, _ := testBoard(t, false)
	cfg := testConfig()
	cfg.HTTPPort = listener.Addr().(*net.TCPAddr).Port

	srv, err := NewServer(t.Context(), cfg, b, nil)
	require.NoError(t, err)

	err = srv.Start()
	require.ErrorIs(t, err, ErrServerListen)
	assert.True(t, strings.HasPrefix(err.Error(), ErrServerListen.Error()))
}
