// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package config loads the board layout: poll intervals, environments and the partition
// buckets used to split builds and releases among them.
package config
