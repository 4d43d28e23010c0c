// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/devboard/internal/destination"
	"github.com/mia-platform/devboard/internal/info"
)

func TestInitialization(t *testing.T) {
	t.Run("without envs", func(t *testing.T) {
		dest, err := NewDestination()
		assert.ErrorIs(t, err, env.VarIsNotSetError{Key: "DEVBOARD_WEBHOOK_ENDPOINT"})
		assert.Nil(t, dest)
	})

	t.Run("with required env", func(t *testing.T) {
		t.Setenv("DEVBOARD_WEBHOOK_ENDPOINT", "http://localhost:8080/hooks/board")
		dest, err := NewDestination()
		require.NoError(t, err)
		webhookDestination, ok := dest.(*webhookDestination)
		require.True(t, ok)

		assert.Equal(t, "http://localhost:8080/hooks/board", webhookDestination.Endpoint)
		assert.Empty(t, webhookDestination.Token)
		assert.Equal(t, defaultRequestTimeout, webhookDestination.Timeout)
	})

	t.Run("with all envs", func(t *testing.T) {
		t.Setenv("DEVBOARD_WEBHOOK_ENDPOINT", "http://localhost:8080/hooks/board")
		t.Setenv("DEVBOARD_WEBHOOK_TOKEN", "test-token")
		t.Setenv("DEVBOARD_WEBHOOK_TIMEOUT", "5s")
		dest, err := NewDestination()
		require.NoError(t, err)
		webhookDestination, ok := dest.(*webhookDestination)
		require.True(t, ok)

		assert.Equal(t, "test-token", webhookDestination.Token)
		assert.Equal(t, 5*time.Second, webhookDestination.Timeout)
		assert.Equal(t, 5*time.Second, webhookDestination.client.Timeout)
	})

	t.Run("with invalid endpoint URL", func(t *testing.T) {
		t.Setenv("DEVBOARD_WEBHOOK_ENDPOINT", "http://%41:8080/") // invalid URL
		dest, err := NewDestination()
		assert.ErrorIs(t, err, url.EscapeError("%41"))
		assert.Nil(t, dest)
	})
}

func TestSend(t *testing.T) {
	t.Parallel()

	generatedAt := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	testCases := map[string]struct {
		endpoint      string
		token         string
		data          *destination.Data
		expectedBody  map[string]any
		expectedError error
	}{
		"successful send": {
			endpoint: "/valid-endpoint",
			token:    "test-token",
			data: destination.NewData(destination.KindCard, "tasks", generatedAt, map[string]any{
				"counts": map[string]any{"Active": 2},
			}),
			expectedBody: map[string]any{
				"apiVersion":  destination.APIVersion,
				"kind":        destination.KindCard,
				"name":        "tasks",
				"generatedAt": "2026-03-02T10:00:00Z",
				"spec": map[string]any{
					"counts": map[string]any{"Active": float64(2)},
				},
			},
		},
		"send without token": {
			endpoint: "/anonymous-endpoint",
			data:     destination.NewData(destination.KindBoard, "board", time.Time{}, nil),
		},
		"failed send": {
			endpoint:      "/invalid-endpoint",
			token:         "test-token",
			data:          destination.NewData(destination.KindBoard, "board", time.Time{}, nil),
			expectedError: &WebhookError{err: errors.New("error message")},
		},
		"unauthorized send": {
			endpoint:      "/unauthorized-endpoint",
			token:         "test-token",
			data:          destination.NewData(destination.KindBoard, "board", time.Time{}, nil),
			expectedError: &WebhookError{err: errors.New("unexpected status code 401")},
		},
		"not found send": {
			endpoint:      "/not-found-endpoint",
			token:         "test-token",
			data:          destination.NewData(destination.KindBoard, "board", time.Time{}, nil),
			expectedError: &WebhookError{err: errors.New("unexpected status code 404")},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Body != nil {
					defer r.Body.Close()
				}

				if r.Method != http.MethodPost {
					http.Error(w, "invalid method", http.StatusMethodNotAllowed)
					return
				}

				// check headers
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, info.AppName+"/"+info.Version, r.Header.Get("User-Agent"))

				switch r.RequestURI {
				case "/valid-endpoint":
					assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
					decodedBody := make(map[string]any)
					decoder := json.NewDecoder(r.Body)
					err := decoder.Decode(&decodedBody)
					assert.NoError(t, err)
					assert.Equal(t, tc.expectedBody, decodedBody)
					w.WriteHeader(http.StatusAccepted)
				case "/anonymous-endpoint":
					assert.Empty(t, r.Header.Get("Authorization"))
					w.WriteHeader(http.StatusNoContent)
				case "/not-found-endpoint":
					http.NotFound(w, r)
				case "/unauthorized-endpoint":
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				default:
					errCode := http.StatusInternalServerError
					w.WriteHeader(errCode)

					encoder := json.NewEncoder(w)
					err := encoder.Encode(map[string]any{
						"statusCode": errCode,
						"error":      http.StatusText(errCode),
						"message":    "error message",
					})
					assert.NoError(t, err)
				}
			}))
			defer testServer.Close()

			ctx, cancel := context.WithTimeout(t.Context(), 1*time.Second)
			defer cancel()

			dest := &webhookDestination{
				Endpoint: testServer.URL + tc.endpoint,
				Token:    tc.token,
			}

			err := dest.Send(ctx, tc.data)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestContextCancelled(t *testing.T) {
	t.Parallel()

	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			defer r.Body.Close()
		}
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	defer testServer.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dest := &webhookDestination{
		Endpoint: testServer.URL,
	}

	err := dest.Send(ctx, &destination.Data{})
	assert.NoError(t, err)
}
