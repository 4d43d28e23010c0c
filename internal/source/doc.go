// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package source defines the items read from Azure DevOps and the contract implemented by the
// clients the board polls. Items are plain values already decoded from the REST payloads.
package source
