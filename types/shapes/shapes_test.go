// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	. "github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())
	require.False(t, Shape{}.Ok())

	shape0 := Make(Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.False(t, shape0.IsTuple())
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))
	require.Equal(t, "(Float64)", shape0.String())

	shape1 := Make(Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, 2, shape1.Dim(-1))
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())
	require.Panics(t, func() { _ = shape1.Dim(3) })

	_, err := MakeOrError(Float32, 2, 0)
	require.Error(t, err)
	require.Panics(t, func() { _ = Make(Float32, -1) })
}

func TestTupleAndToken(t *testing.T) {
	elements := []Shape{Make(Float32, 2), Make(Int32)}
	tuple := MakeTuple(elements)
	require.True(t, tuple.Ok())
	require.True(t, tuple.IsTuple())
	require.False(t, tuple.IsScalar())
	require.Equal(t, 2, tuple.TupleSize())
	require.Equal(t, 2*4+4, int(tuple.Memory()))
	require.Equal(t, "Tuple<(Float32)[2], (Int32)>", tuple.String())

	// MakeTuple owns its elements.
	elements[0] = Make(Float64)
	require.True(t, tuple.TupleShapes[0].Equal(Make(Float32, 2)))

	token := MakeToken()
	require.True(t, token.Ok())
	require.True(t, token.IsToken())
	require.False(t, token.IsScalar())
	require.Equal(t, 0, token.Size())
	require.Equal(t, "Token", token.String())
	require.False(t, token.Equal(Make(InvalidDType)))
	require.True(t, token.Equal(MakeToken()))
}

func TestEqualCloneHash(t *testing.T) {
	s := Make(Float32, 2, 3)
	c := s.Clone()
	require.True(t, s.Equal(c))
	require.Equal(t, s.Hash(), c.Hash())
	c.Dimensions[0] = 7
	require.Equal(t, 2, s.Dimensions[0], "Clone must be a deep copy")
	require.False(t, s.Equal(c))

	assert.NotEqual(t, Make(Float32, 2, 3).Hash(), Make(Float32, 3, 2).Hash())
	assert.NotEqual(t, Make(Float32, 6).Hash(), Make(Float64, 6).Hash())
	assert.NotEqual(t, Make(Float32).Hash(), Make(Float32, 1).Hash())
	assert.NotEqual(t, MakeToken().Hash(), MakeTuple(nil).Hash())

	tuple1 := MakeTuple([]Shape{Make(Float32, 2), MakeToken()})
	tuple2 := MakeTuple([]Shape{Make(Float32, 2), MakeToken()})
	require.True(t, tuple1.Equal(tuple2))
	require.Equal(t, tuple1.Hash(), tuple2.Hash())
	tuple3 := MakeTuple([]Shape{MakeToken(), Make(Float32, 2)})
	require.False(t, tuple1.Equal(tuple3))
	assert.NotEqual(t, tuple1.Hash(), tuple3.Hash())
}
