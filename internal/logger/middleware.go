// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeaderName    = "x-request-id"
	forwardedForHeaderName = "x-forwarded-for"
	httpLoggerName         = "devboard:http"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"
)

// requestFields is the http block of every request log line.
type requestFields struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Route     string `json:"route,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
}

// responseFields is added to the completion line.
type responseFields struct {
	StatusCode int     `json:"statusCode"`
	Bytes      int     `json:"bytes"`
	DurationMS float64 `json:"durationMs"`
}

// RequestID returns the x-request-id header of the request, generating a new one if missing.
func RequestID(c *fiber.Ctx) string {
	if requestID := c.Get(requestIDHeaderName); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}

// RequestMiddlewareLogger is a fiber middleware logging every request that does not start with one
// of excludedPrefix. The request id is echoed back in the x-request-id header and the request
// logger is stored in the user context, so handlers log with the same id.
// Completed requests are logged at info level, client errors at warn and server errors at error.
func RequestMiddlewareLogger(logger Logger, excludedPrefix []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		start := time.Now()
		requestID := RequestID(c)
		c.Set(requestIDHeaderName, requestID)

		log := logger.WithName(httpLoggerName).With("reqId", requestID)
		c.SetUserContext(WithContext(c.UserContext(), log))

		log.Trace(IncomingRequestMessage, "http", requestInfo(c, ""))

		err := c.Next()

		// the route is only known once the router matched the request
		request := requestInfo(c, c.Route().Path)
		response := responseInfo(c, err, time.Since(start))

		switch {
		case response.StatusCode >= fiber.StatusInternalServerError:
			log.Error(RequestCompletedMessage, "http", request, "response", response)
		case response.StatusCode >= fiber.StatusBadRequest:
			log.Warn(RequestCompletedMessage, "http", request, "response", response)
		default:
			log.Info(RequestCompletedMessage, "http", request, "response", response)
		}
		return err
	}
}

func requestInfo(c *fiber.Ctx, route string) requestFields {
	clientIP, _, _ := strings.Cut(c.Get(forwardedForHeaderName), ",")
	if clientIP == "" {
		clientIP = c.IP()
	}

	return requestFields{
		Method:    c.Method(),
		Path:      c.OriginalURL(),
		Route:     route,
		UserAgent: c.Get(fiber.HeaderUserAgent),
		ClientIP:  strings.TrimSpace(clientIP),
	}
}

// responseInfo reads the outcome of the request. Errors returned by handlers are written by the
// fiber error handler after the middleware chain, so their status is taken from the error.
func responseInfo(c *fiber.Ctx, err error, elapsed time.Duration) responseFields {
	response := responseFields{
		StatusCode: c.Response().StatusCode(),
		Bytes:      len(c.Response().Body()),
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}

	if err == nil {
		return response
	}

	response.StatusCode = fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		response.StatusCode = fiberErr.Code
	}
	response.Bytes = len(err.Error())
	return response
}
