// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mia-platform/devboard/internal/destination"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	// ErrUnsupportedFormat is returned for an output format different from json and yaml.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// Formats lists the accepted output formats.
	Formats = []string{FormatJSON, FormatYAML}
)

var _ destination.Sender = &writerDestination{}

type encoder interface {
	Encode(v any) error
}

type writerDestination struct {
	encoder encoder

	lock sync.Mutex
}

// NewDestination returns a Sender writing to w in the given format.
func NewDestination(w io.Writer, format string) (destination.Sender, error) {
	var enc encoder
	switch format {
	case FormatJSON:
		jsonEncoder := json.NewEncoder(w)
		jsonEncoder.SetIndent("", "  ")
		enc = jsonEncoder
	case FormatYAML:
		yamlEncoder := yaml.NewEncoder(w)
		yamlEncoder.SetIndent(2)
		enc = yamlEncoder
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &writerDestination{
		encoder: enc,
	}, nil
}

func (d *writerDestination) Send(_ context.Context, data *destination.Data) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.encoder.Encode(data); err != nil {
		return fmt.Errorf("writing %s %s: %w", data.Kind, data.Name, err)
	}
	return nil
}
