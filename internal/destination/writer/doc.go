// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package writer implements a destination that encodes every received document to the
// given io.Writer instance, as indented JSON or as a YAML stream.
// It is used by the sync command to print a single synchronization round.
package writer
