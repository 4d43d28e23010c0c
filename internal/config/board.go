// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mia-platform/devboard/internal/view"
)

// Names of the polled sources.
const (
	SourcePullRequests = "pullrequests"
	SourceBuilds       = "builds"
	SourceReleases     = "releases"
	SourceWorkItems    = "workitems"
)

const (
	// DefaultPipelinesLimit is the number of builds shown on the pipelines card.
	DefaultPipelinesLimit = 5
	// DefaultDebounce is the minimum gap between two accepted manual refreshes.
	DefaultDebounce = 500 * time.Millisecond

	mobileKeyword = "mobile"
)

var (
	// ErrParsing reports failures that occur while decoding the board file.
	ErrParsing = errors.New("error parsing")
	// ErrInvalidBoard reports a board file with unusable values.
	ErrInvalidBoard = errors.New("invalid board configuration")

	// SourceNames lists the polled sources in display order.
	SourceNames = []string{SourcePullRequests, SourceBuilds, SourceReleases, SourceWorkItems}

	defaultIntervals = map[string]time.Duration{
		SourcePullRequests: 2 * time.Minute,
		SourceBuilds:       30 * time.Second,
		SourceReleases:     30 * time.Second,
		SourceWorkItems:    30 * time.Second,
	}

	defaultBuckets = []view.Bucket{
		{Name: "web", Contains: "web"},
		{Name: "others", Excludes: "web"},
	}

	defaultMobileBuckets = []view.Bucket{
		{Name: "mobile", Excludes: "web"},
	}
)

// Board is the layout of the dashboard.
type Board struct {
	Intervals      map[string]time.Duration `json:"intervals,omitempty" yaml:"intervals,omitempty"`
	Debounce       time.Duration            `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	PipelinesLimit int                      `json:"pipelinesLimit,omitempty" yaml:"pipelinesLimit,omitempty"`
	Environments   []Environment            `json:"environments,omitempty" yaml:"environments,omitempty"`
	Buckets        []view.Bucket            `json:"buckets,omitempty" yaml:"buckets,omitempty"`
	MobileBuckets  []view.Bucket            `json:"mobileBuckets,omitempty" yaml:"mobileBuckets,omitempty"`
}

// Environment is a deployment target. Builds and releases belong to it when their
// definition name contains Key.
type Environment struct {
	Key     string        `json:"key" yaml:"key"`
	Name    string        `json:"name,omitempty" yaml:"name,omitempty"`
	Buckets []view.Bucket `json:"buckets,omitempty" yaml:"buckets,omitempty"`
}

// DisplayName returns Name, falling back to Key.
func (e Environment) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Key
}

// DefaultBoard returns the layout used when no file is provided.
func DefaultBoard() *Board {
	board := &Board{}
	board.setDefaults()
	return board
}

// Interval returns the poll interval of the named source.
func (b *Board) Interval(source string) time.Duration {
	if interval, found := b.Intervals[source]; found {
		return interval
	}
	return defaultIntervals[source]
}

// BucketsFor returns the partition buckets of an environment: its own buckets, the mobile
// buckets when the key mentions mobile, otherwise the board buckets.
func (b *Board) BucketsFor(environment Environment) []view.Bucket {
	switch {
	case len(environment.Buckets) > 0:
		return environment.Buckets
	case strings.Contains(strings.ToLower(environment.Key), mobileKeyword):
		return b.MobileBuckets
	default:
		return b.Buckets
	}
}

func (b *Board) setDefaults() {
	if b.Intervals == nil {
		b.Intervals = make(map[string]time.Duration, len(defaultIntervals))
	}
	for source, interval := range defaultIntervals {
		if _, found := b.Intervals[source]; !found {
			b.Intervals[source] = interval
		}
	}

	if b.Debounce == 0 {
		b.Debounce = DefaultDebounce
	}
	if b.PipelinesLimit == 0 {
		b.PipelinesLimit = DefaultPipelinesLimit
	}
	if len(b.Buckets) == 0 {
		b.Buckets = slices.Clone(defaultBuckets)
	}
	if len(b.MobileBuckets) == 0 {
		b.MobileBuckets = slices.Clone(defaultMobileBuckets)
	}
}

func (b *Board) validate() error {
	errorsList := []string{}

	for source, interval := range b.Intervals {
		if !slices.Contains(SourceNames, source) {
			errorsList = append(errorsList, fmt.Sprintf("unknown source '%s' in intervals", source))
			continue
		}
		if interval <= 0 {
			errorsList = append(errorsList, fmt.Sprintf("interval of '%s' must be positive", source))
		}
	}

	if b.Debounce < 0 {
		errorsList = append(errorsList, "debounce must not be negative")
	}
	if b.PipelinesLimit < 0 {
		errorsList = append(errorsList, "pipelinesLimit must not be negative")
	}

	keys := make(map[string]struct{}, len(b.Environments))
	for index, environment := range b.Environments {
		if strings.TrimSpace(environment.Key) == "" {
			errorsList = append(errorsList, fmt.Sprintf("missing key in environment %d", index))
			continue
		}

		key := strings.ToLower(environment.Key)
		if _, found := keys[key]; found {
			errorsList = append(errorsList, fmt.Sprintf("duplicated environment key '%s'", environment.Key))
		}
		keys[key] = struct{}{}
		errorsList = append(errorsList, validateBuckets(fmt.Sprintf("environment '%s'", environment.Key), environment.Buckets)...)
	}

	errorsList = append(errorsList, validateBuckets("buckets", b.Buckets)...)
	errorsList = append(errorsList, validateBuckets("mobileBuckets", b.MobileBuckets)...)

	if len(errorsList) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBoard, strings.Join(errorsList, "; "))
	}
	return nil
}

func validateBuckets(scope string, buckets []view.Bucket) []string {
	errorsList := []string{}
	names := make(map[string]struct{}, len(buckets))
	for _, bucket := range buckets {
		if bucket.Name == "" {
			errorsList = append(errorsList, fmt.Sprintf("missing bucket name in %s", scope))
			continue
		}
		if _, found := names[bucket.Name]; found {
			errorsList = append(errorsList, fmt.Sprintf("duplicated bucket '%s' in %s", bucket.Name, scope))
		}
		names[bucket.Name] = struct{}{}
	}
	return errorsList
}

// NewBoardFromPath parses the board file at path. An empty path returns DefaultBoard.
func NewBoardFromPath(path string) (*Board, error) {
	if path == "" {
		return DefaultBoard(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	board := new(Board)
	if err := decoder.Decode(board); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
	}

	board.setDefaults()
	if err := board.validate(); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
	}
	return board, nil
}
