// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuredevops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"github.com/mia-platform/devboard/internal/logger"
	"github.com/mia-platform/devboard/internal/poller"
)

const (
	acceptHeader = "application/json;api-version=7.1;charset=utf-8"

	maxErrorMessageLength = 256
)

type client struct {
	organizationURL *url.URL
	releaseURL      *url.URL

	client     *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
}

func newClient(organizationURL, releaseURL *url.URL, httpClient *http.Client, maxRetries uint) *client {
	return &client{
		organizationURL: organizationURL,
		releaseURL:      releaseURL,
		client:          httpClient,
		maxTries:        maxRetries + 1,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// get performs a GET retrying network failures, throttling and server errors.
func (c *client) get(ctx context.Context, base *url.URL, path string, queryParam url.Values) ([]byte, error) {
	log := logger.FromContext(ctx).WithName(logName)
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		return c.doRequest(ctx, http.MethodGet, base, path, queryParam)
	}

	notify := func(err error, next time.Duration) {
		log.Debug("retrying request", "path", path, "attempt", attempt, "error", err.Error(), "backoff", next.String())
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify),
	)
}

func (c *client) doRequest(ctx context.Context, method string, base *url.URL, path string, queryParam url.Values) ([]byte, error) {
	url := base.JoinPath(path)
	url.RawQuery = queryParam.Encode()

	req, err := http.NewRequestWithContext(ctx, method, url.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptHeader)
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&poller.TransportError{Err: ctx.Err()})
		}
		return nil, &poller.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &poller.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNonAuthoritativeInfo:
		// an invalid token is answered with a sign in page instead of a 401
		return nil, backoff.Permanent(&poller.TransportError{
			StatusCode: http.StatusUnauthorized,
			Message:    "authentication rejected by Azure DevOps",
		})
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	}

	transportErr := &poller.TransportError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, transportErr
	}
	return nil, backoff.Permanent(transportErr)
}

// errorMessage extracts the message of an Azure DevOps error payload, falling back to
// the raw body.
func errorMessage(body []byte) string {
	if message := gjson.GetBytes(body, "message"); message.Exists() {
		return message.String()
	}

	message := strings.TrimSpace(string(body))
	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength] + "..."
	}
	return message
}

// listResponse is the envelope of every Azure DevOps collection.
type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

func decodeList[T any](body []byte) ([]T, error) {
	response := new(listResponse[T])
	if err := json.Unmarshal(body, response); err != nil {
		return nil, &poller.DecodeError{Err: err}
	}

	if response.Value == nil && !gjson.GetBytes(body, "value").IsArray() {
		return nil, &poller.DecodeError{Err: errors.New("missing value array in response")}
	}
	return response.Value, nil
}

func getList[T any](ctx context.Context, c *client, base *url.URL, path string, queryParam url.Values) ([]T, error) {
	body, err := c.get(ctx, base, path, queryParam)
	if err != nil {
		return nil, err
	}
	return decodeList[T](body)
}
