// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package poller

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfig reports an invalid synchronizer configuration, it is returned by Start.
	ErrConfig = errors.New("invalid synchronizer configuration")
	// ErrTransport reports a network or HTTP failure while fetching.
	ErrTransport = errors.New("transport error")
	// ErrDecode reports a response body that cannot be decoded.
	ErrDecode = errors.New("decode error")
)

// ErrorKind classifies recoverable fetch failures.
type ErrorKind string

const (
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindDecode    ErrorKind = "decode"
)

// ConfigError is returned by Start when the synchronizer cannot be scheduled.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrConfig, e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// TransportError wraps network failures and non-2xx responses. StatusCode is zero when
// no response was received.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	message := e.Message
	if message == "" && e.Err != nil {
		message = e.Err.Error()
	}

	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d %s: %s", ErrTransport, e.StatusCode, http.StatusText(e.StatusCode), message)
	}
	return fmt.Sprintf("%s: %s", ErrTransport, message)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError wraps failures in parsing a response payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDecode, e.Err)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// errorInfo converts a fetch error into its displayable form. Errors outside the taxonomy
// are reported as transport failures.
func errorInfo(err error) *ErrorInfo {
	if errors.Is(err, ErrDecode) {
		return &ErrorInfo{Kind: ErrorKindDecode, Message: err.Error()}
	}

	if errors.Is(err, ErrTransport) {
		return &ErrorInfo{Kind: ErrorKindTransport, Message: err.Error()}
	}

	return &ErrorInfo{Kind: ErrorKindTransport, Message: (&TransportError{Err: err}).Error()}
}
