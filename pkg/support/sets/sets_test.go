// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := Make[int](10)
	assert.Len(t, s, 0)

	s.Insert(3, 7)
	assert.Len(t, s, 2)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(7))
	assert.False(t, s.Has(5))

	s2 := MakeWith(5, 7, 5)
	assert.Len(t, s2, 2)
	assert.True(t, s2.Has(5))
	assert.False(t, s2.Has(3))
}

func TestInsertIfMissing(t *testing.T) {
	visited := Make[string]()
	require.True(t, visited.InsertIfMissing("a"))
	require.False(t, visited.InsertIfMissing("a"))
	require.True(t, visited.InsertIfMissing("b"))
	assert.Len(t, visited, 2)
}

func TestCloneItems(t *testing.T) {
	s := MakeWith(1, 2, 3)
	c := s.Clone()
	c.Insert(10)
	assert.False(t, s.Has(10))
	assert.True(t, c.Has(10))

	assert.Equal(t, []int{1, 2, 3}, slices.Sorted(s.Items()))
}
