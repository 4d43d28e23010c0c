// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/devboard/internal/destination"
	"github.com/mia-platform/devboard/internal/info"
)

const defaultRequestTimeout = 30 * time.Second

var _ destination.Sender = &webhookDestination{}

type WebhookError struct {
	err error
}

func (e *WebhookError) Error() string {
	return "webhook: " + e.err.Error()
}

func (e *WebhookError) Unwrap() error {
	return e.err
}

func (e *WebhookError) Is(target error) bool {
	we, ok := target.(*WebhookError)
	if !ok {
		return false
	}

	return e.err.Error() == we.err.Error()
}

// webhookDestination implements destination.Sender posting documents to Endpoint.
type webhookDestination struct {
	Endpoint string        `env:"DEVBOARD_WEBHOOK_ENDPOINT,required"`
	Token    string        `env:"DEVBOARD_WEBHOOK_TOKEN"`
	Timeout  time.Duration `env:"DEVBOARD_WEBHOOK_TIMEOUT" envDefault:"30s"`

	client *http.Client
}

// NewDestination returns a new destination.Sender configured from environment variables.
func NewDestination() (destination.Sender, error) {
	destination, err := env.ParseAs[webhookDestination]()
	if err != nil {
		return nil, handleError(err)
	}

	if _, err := url.ParseRequestURI(destination.Endpoint); err != nil {
		return nil, handleError(err)
	}

	if destination.Timeout <= 0 {
		destination.Timeout = defaultRequestTimeout
	}
	destination.client = &http.Client{Timeout: destination.Timeout}
	return &destination, nil
}

// Send implements destination.Sender.
func (d *webhookDestination) Send(ctx context.Context, data *destination.Data) error {
	body, err := json.Marshal(data)
	if err != nil {
		return handleError(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(body))
	if err != nil {
		return handleError(err)
	}

	request.Header.Set("User-Agent", userAgentString())
	request.Header.Set("Content-Type", "application/json")
	if d.Token != "" {
		request.Header.Set("Authorization", "Bearer "+d.Token)
	}

	client := d.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(request)
	if err != nil {
		return handleError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		decoder := json.NewDecoder(resp.Body)
		var respBody map[string]any
		if err := decoder.Decode(&respBody); err == nil {
			if message, ok := respBody["message"].(string); ok {
				return handleError(errors.New(message))
			}
		}

		return handleError(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	return nil
}

// userAgentString returns the User-Agent string to be used in HTTP requests.
func userAgentString() string {
	return info.AppName + "/" + info.Version
}

func handleError(err error) error {
	var parseErr env.AggregateError
	if errors.As(err, &parseErr) {
		err = parseErr.Errors[0]
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return &WebhookError{
		err: err,
	}
}
