// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package view

import (
	"iter"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FilterBySubstring lazily yields the items whose field contains substr, ignoring case.
// Matching on naming conventions is a best effort heuristic: an item may match no filter
// or more than one.
func FilterBySubstring[T any](items []T, field func(T) string, substr string) iter.Seq[T] {
	needle := strings.ToLower(substr)
	return func(yield func(T) bool) {
		for _, item := range items {
			if !strings.Contains(strings.ToLower(field(item)), needle) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// Bucket is a named substring rule. An empty Contains matches everything, an empty
// Excludes excludes nothing.
type Bucket struct {
	Name     string `json:"name" yaml:"name"`
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Excludes string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// Match reports whether value satisfies the bucket rule, ignoring case.
func (b Bucket) Match(value string) bool {
	value = strings.ToLower(value)
	if !strings.Contains(value, strings.ToLower(b.Contains)) {
		return false
	}
	return b.Excludes == "" || !strings.Contains(value, strings.ToLower(b.Excludes))
}

// Partition applies every bucket independently to items. The result keeps the bucket
// order and contains every bucket, even the empty ones; items are not required to land
// in exactly one bucket.
func Partition[T any](items []T, field func(T) string, buckets []Bucket) Groups[string, T] {
	groups := Groups[string, T]{index: make(map[string]int, len(buckets))}
	for _, bucket := range buckets {
		if _, found := groups.index[bucket.Name]; !found {
			groups.index[bucket.Name] = len(groups.groups)
			groups.groups = append(groups.groups, Group[string, T]{Key: bucket.Name})
		}

		for _, item := range items {
			if bucket.Match(field(item)) {
				groups.add(bucket.Name, item)
			}
		}
	}
	return groups
}

// Search keeps the items whose field fuzzily matches query, best matches first.
// An empty query returns items unchanged.
func Search[T any](items []T, field func(T) string, query string) []T {
	if strings.TrimSpace(query) == "" {
		return items
	}

	type ranked struct {
		item     T
		distance int
	}

	matches := make([]ranked, 0, len(items))
	for _, item := range items {
		distance := fuzzy.RankMatchNormalizedFold(query, field(item))
		if distance < 0 {
			continue
		}
		matches = append(matches, ranked{item: item, distance: distance})
	}

	slices.SortStableFunc(matches, func(a, b ranked) int {
		return a.distance - b.distance
	})

	results := make([]T, 0, len(matches))
	for _, match := range matches {
		results = append(results, match.item)
	}
	return results
}
