// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package telemetry builds the OpenTelemetry meter provider, exported in the Prometheus text
// format, and the instruments recorded by the synchronizers and the HTTP server.
package telemetry
