// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package poller implements the polling synchronizer that keeps a remote collection fresh.
//
// A Synchronizer fetches a collection immediately on Start and then on every tick of its
// interval. It exposes a State with the last known data, the current Phase and the last error,
// serving stale data while a refresh is in flight. At most one fetch runs at any time: ticks and
// manual refreshes arriving while a fetch is in flight are dropped, never queued. Every fetch is
// tagged with a sequence number and only the result of the latest one is applied, so a fetch
// orphaned by Stop can never overwrite newer state.
package poller
