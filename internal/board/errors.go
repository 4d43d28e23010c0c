// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package board

import "errors"

var (
	// ErrUnknownSource is returned when a source name is not one of config.SourceNames.
	ErrUnknownSource = errors.New("unknown source")
	// ErrUnknownCard is returned when a card name is not one of CardNames.
	ErrUnknownCard = errors.New("unknown card")
	// ErrNotStarted is returned by the operations requiring a running board.
	ErrNotStarted = errors.New("board not started")
)
