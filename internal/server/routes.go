// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/devboard/internal/board"
	"github.com/mia-platform/devboard/internal/logger"
	"github.com/mia-platform/devboard/internal/source"
)

const (
	healthzRoute = "/-/healthz"
	readyRoute   = "/-/ready"
	metricsRoute = "/-/metrics"

	apiPrefix = "/api/v1"

	statusOK = "OK"
	statusKO = "KO"
)

type statusResponse struct {
	Status  string               `json:"status"`
	Name    string               `json:"name"`
	Version string               `json:"version"`
	Sources []board.SourceStatus `json:"sources,omitempty"`
}

type refreshResponse struct {
	Source   string `json:"source"`
	Accepted bool   `json:"accepted"`
}

func statusRoutes(app *fiber.App, serviceName, version string, b Board) {
	app.Get(healthzRoute, func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{Status: statusOK, Name: serviceName, Version: version})
	})

	app.Get(readyRoute, func(c *fiber.Ctx) error {
		response := statusResponse{
			Status:  statusOK,
			Name:    serviceName,
			Version: version,
			Sources: b.Snapshot().Sources,
		}

		if !b.Ready() {
			response.Status = statusKO
			return c.Status(http.StatusServiceUnavailable).JSON(response)
		}
		return c.JSON(response)
	})
}

func apiRoutes(app *fiber.App, b Board) {
	api := app.Group(apiPrefix)

	api.Get("/board", func(c *fiber.Ctx) error {
		return c.JSON(b.Snapshot())
	})

	api.Get("/cards/:name", func(c *fiber.Ctx) error {
		card, err := b.Card(c.Params("name"), c.Query("q"))
		if errors.Is(err, board.ErrUnknownCard) {
			return errorResponse(c, http.StatusNotFound, err.Error())
		}
		if err != nil {
			return errorResponse(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(card)
	})

	api.Post("/sources/:name/refresh", func(c *fiber.Ctx) error {
		name := c.Params("name")
		accepted, err := b.RefreshNow(name)
		switch {
		case errors.Is(err, board.ErrUnknownSource):
			return errorResponse(c, http.StatusNotFound, err.Error())
		case errors.Is(err, board.ErrNotStarted):
			return errorResponse(c, http.StatusServiceUnavailable, err.Error())
		case err != nil:
			return errorResponse(c, http.StatusInternalServerError, err.Error())
		}

		status := http.StatusAccepted
		if !accepted {
			status = http.StatusConflict
		}
		return c.Status(status).JSON(refreshResponse{Source: name, Accepted: accepted})
	})

	api.Get("/repositories/:repository/pullrequests/:id/reviewers", func(c *fiber.Ctx) error {
		pullRequestID, err := strconv.Atoi(c.Params("id"))
		if err != nil || pullRequestID <= 0 {
			return errorResponse(c, http.StatusBadRequest, "pull request id must be a positive integer")
		}

		ctx := c.UserContext()
		reviewers, err := b.Reviewers(ctx, c.Params("repository"), pullRequestID)
		if err != nil {
			logger.FromFiber(c).Warn("reviewers lookup failed", "error", err.Error())
			return errorResponse(c, http.StatusBadGateway, err.Error())
		}
		if reviewers == nil {
			reviewers = []source.Reviewer{}
		}
		return c.JSON(reviewers)
	})
}
