// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package webhook implements a destination that posts every rendered document as JSON
// to an HTTP endpoint, for example a chat integration or a status page.
package webhook
