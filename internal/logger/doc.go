// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps go-hclog behind the small Logger interface used across devboard.
// Loggers travel inside the context: commands attach one at startup and every component
// derives a named child from it, so log lines can be traced back to a source or card.
package logger
