// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package destination defines where rendered board snapshots and cards are delivered.
package destination
