// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "iter"

// Iter iterates over all indices of an array shape, in row-major order (the last axis changes fastest).
//
// The yielded slice is owned by the iterator and reused between iterations: don't change it, and clone it
// if it needs to be kept. Tuples and tokens yield nothing, and a scalar yields one empty index.
func (s Shape) Iter() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if !s.Ok() || s.IsTuple() || s.IsToken() {
			return
		}
		rank := s.Rank()
		indices := make([]int, rank)
		for {
			if !yield(indices) {
				return
			}
			axis := rank - 1
			for ; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < s.Dimensions[axis] {
					break
				}
				indices[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}
