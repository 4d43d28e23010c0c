// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package view contains the pure helpers used to shape synchronized collections into cards:
// grouping, substring partitioning, fuzzy search and status classification.
package view
