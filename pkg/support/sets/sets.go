// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implement a set type as a `map[T]struct{}` but with better ergonomics.
//
// It is used to track visited nodes while traversing IR graphs, and to group operation types.
package sets

import (
	"iter"
	"maps"
)

// Set implements a Set for the key type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith creates a Set[T] with the given elements inserted.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns true if Set s has the given key.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// InsertIfMissing inserts key and returns true if it was not yet in the set.
// It returns false, and does nothing, if the key was already present.
func (s Set[T]) InsertIfMissing(key T) bool {
	if s.Has(key) {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Items iterates over the elements of the set, in no particular order.
func (s Set[T]) Items() iter.Seq[T] {
	return maps.Keys(s)
}

// Clone returns a shallow copy of the set.
func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}
