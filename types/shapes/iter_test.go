// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func collectIndices(s Shape) [][]int {
	collect := make([][]int, 0, s.Size())
	for indices := range s.Iter() {
		collect = append(collect, slices.Clone(indices))
	}
	return collect
}

func TestShape_Iter(t *testing.T) {
	require.Equal(t, [][]int{{0, 0, 0, 0}}, collectIndices(Make(dtypes.Float32, 1, 1, 1, 1)))

	want := [][]int{
		{0, 0},
		{0, 1},
		{1, 0},
		{1, 1},
		{2, 0},
		{2, 1},
	}
	require.Equal(t, want, collectIndices(Make(dtypes.Float64, 3, 2)))

	want = [][]int{
		{0, 0, 0, 0},
		{0, 0, 1, 0},
		{1, 0, 0, 0},
		{1, 0, 1, 0},
	}
	require.Equal(t, want, collectIndices(Make(dtypes.BF16, 2, 1, 2, 1)))

	// Scalar yields one empty index; tuples, tokens and invalid shapes yield nothing.
	require.Equal(t, [][]int{{}}, collectIndices(Make(dtypes.Int32)))
	require.Empty(t, collectIndices(MakeToken()))
	require.Empty(t, collectIndices(Invalid()))
	require.Empty(t, collectIndices(MakeTuple([]Shape{Make(dtypes.Int32, 2)})))

	// Early break.
	count := 0
	for range Make(dtypes.Int32, 10).Iter() {
		count++
		if count == 3 {
			break
		}
	}
	require.Equal(t, 3, count)
}
