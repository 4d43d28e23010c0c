// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the HTTP server of devboard.
// It sets up the Fiber application with request logging and metrics middlewares, the status
// routes used by probes and the API routes reading the board cards and triggering refreshes.
package server
