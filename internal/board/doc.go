// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package board owns one synchronizer for every Azure DevOps source and renders their
// states into dashboard cards. Every transition of a source produces a new immutable
// Snapshot that readers can use without locking.
package board
