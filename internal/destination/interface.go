// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package destination

import (
	"context"
	"time"
)

// APIVersion labels every document produced by devboard.
const APIVersion = "devboard/v1"

// Kinds of delivered documents.
const (
	KindBoard = "Board"
	KindCard  = "Card"
)

// Sender delivers rendered documents to a destination.
type Sender interface {
	Send(ctx context.Context, data *Data) error
}

// Data wraps a rendered board or card with its metadata.
type Data struct {
	APIVersion  string    `json:"apiVersion" yaml:"apiVersion"`
	Kind        string    `json:"kind" yaml:"kind"`
	Name        string    `json:"name" yaml:"name"`
	GeneratedAt time.Time `json:"generatedAt,omitzero" yaml:"generatedAt,omitempty"`
	Spec        any       `json:"spec,omitempty" yaml:"spec,omitempty"`
}

// NewData returns a Data of the current APIVersion.
func NewData(kind, name string, generatedAt time.Time, spec any) *Data {
	return &Data{
		APIVersion:  APIVersion,
		Kind:        kind,
		Name:        name,
		GeneratedAt: generatedAt,
		Spec:        spec,
	}
}
