// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/mia-platform/devboard/internal/board"
	"github.com/mia-platform/devboard/internal/info"
	"github.com/mia-platform/devboard/internal/logger"
	"github.com/mia-platform/devboard/internal/source"
	"github.com/mia-platform/devboard/internal/telemetry"
)

const (
	loggerName = "devboard:server"
)

// Board is the board surface served over HTTP.
type Board interface {
	Snapshot() *board.Snapshot
	Card(name, query string) (any, error)
	RefreshNow(name string) (bool, error)
	Ready() bool
	Reviewers(ctx context.Context, repositoryID string, pullRequestID int) ([]source.Reviewer, error)
}

// Server is a startable HTTP server.
type Server interface {
	Start() error
	Stop() error
	StartAsync(ctx context.Context)
}

type impServer struct {
	Config

	app *fiber.App
}

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
)

// NewServer returns a server exposing b. A nil provider disables the metrics route.
func NewServer(ctx context.Context, cfg *Config, b Board, provider *telemetry.Provider) (Server, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: cfg.DisableStartupMessage,
		Immutable:             true,
	})

	log := logger.FromContext(ctx)
	app.Use(logger.RequestMiddlewareLogger(log, []string{"/-/"}))

	if provider != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(provider)
		if err != nil {
			return nil, fmt.Errorf("creating http metrics: %w", err)
		}
		app.Use(httpMetrics.Middleware())
		app.Get(metricsRoute, adaptor.HTTPHandler(provider.Handler()))
	}

	statusRoutes(app, info.ServiceName, info.Version, b)
	apiRoutes(app, b)

	return &impServer{
		app:    app,
		Config: *cfg,
	}, nil
}

func (s *impServer) Start() error {
	address := net.JoinHostPort(s.HTTPHost, strconv.Itoa(s.HTTPPort))
	if err := s.app.Listen(address); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *impServer) Stop() error {
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

func (s *impServer) StartAsync(ctx context.Context) {
	log := logger.FromContext(ctx).WithName(loggerName)
	go func() {
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}

// errorResponse writes the standard error payload.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"statusCode": statusCode,
		"error":      http.StatusText(statusCode),
		"message":    message,
	})
}
