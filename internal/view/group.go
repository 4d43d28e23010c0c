// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package view

import "iter"

// Group is one key with the items sharing it, in input order.
type Group[K comparable, T any] struct {
	Key   K   `json:"key" yaml:"key"`
	Items []T `json:"items" yaml:"items"`
}

// Groups keeps the groups in the order their key was first seen.
type Groups[K comparable, T any] struct {
	groups []Group[K, T]
	index  map[K]int
}

// GroupBy buckets items by keyFn preserving the first seen order of keys and the input
// order inside each group.
func GroupBy[K comparable, T any](items []T, keyFn func(T) K) Groups[K, T] {
	groups := Groups[K, T]{index: make(map[K]int)}
	for _, item := range items {
		groups.add(keyFn(item), item)
	}
	return groups
}

func (g *Groups[K, T]) add(key K, item T) {
	if g.index == nil {
		g.index = make(map[K]int)
	}

	position, found := g.index[key]
	if !found {
		position = len(g.groups)
		g.index[key] = position
		g.groups = append(g.groups, Group[K, T]{Key: key})
	}
	g.groups[position].Items = append(g.groups[position].Items, item)
}

// Len returns the number of distinct keys.
func (g Groups[K, T]) Len() int {
	return len(g.groups)
}

// Keys returns the keys in first seen order.
func (g Groups[K, T]) Keys() []K {
	keys := make([]K, 0, len(g.groups))
	for _, group := range g.groups {
		keys = append(keys, group.Key)
	}
	return keys
}

// Get returns the items grouped under key.
func (g Groups[K, T]) Get(key K) ([]T, bool) {
	position, found := g.index[key]
	if !found {
		return nil, false
	}
	return g.groups[position].Items, true
}

// All iterates the groups in first seen order.
func (g Groups[K, T]) All() iter.Seq2[K, []T] {
	return func(yield func(K, []T) bool) {
		for _, group := range g.groups {
			if !yield(group.Key, group.Items) {
				return
			}
		}
	}
}

// Slice returns the groups as an ordered slice, ready to be serialized.
func (g Groups[K, T]) Slice() []Group[K, T] {
	groups := make([]Group[K, T], len(g.groups))
	copy(groups, g.groups)
	return groups
}
