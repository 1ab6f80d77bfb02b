// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/pkg/core/ir/ops"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestConstant(t *testing.T) {
	values := []float32{1, 2, 3, 4, 5, 6}
	c := ops.NewConstant(values, 2, 3)
	require.True(t, c.XlaShape().Equal(shapes.Make(dtypes.Float32, 2, 3)))
	values[0] = 100
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, c.Flat(), "constant must hold a copy of the values")

	// Same values: same hash; different values with the same shape: different node hash.
	require.Equal(t, c.Hash(), ops.NewConstant([]float32{1, 2, 3, 4, 5, 6}, 2, 3).Hash())
	require.NotEqual(t, c.NodeHash(), ops.NewConstant([]float32{1, 2, 3, 4, 5, 7}, 2, 3).NodeHash())

	scalar := ops.NewScalarConstant(int32(7))
	require.True(t, scalar.XlaShape().IsScalar())
	require.Equal(t, []int32{7}, scalar.Flat())
	assert.Equal(t, "(Int32) prim::Constant, values=[7]", scalar.String())

	long := ops.NewConstant(make([]int64, 10), 10)
	assert.Contains(t, long.String(), "values=[0 0 0 0 0 0 0 0 ...]")

	cloned := c.Clone(nil)
	require.Equal(t, c.Hash(), cloned.Hash())
	require.Panics(t, func() { c.Clone([]ir.Value{ir.NewValue(scalar, 0)}) })

	half := ops.NewConstant([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(1.5)}, 2)
	require.True(t, half.XlaShape().Equal(shapes.Make(dtypes.Float16, 2)))

	require.Panics(t, func() { ops.NewConstant([]float32{1, 2}, 3) })
	require.Panics(t, func() { ops.NewConstant(1.0) })
	require.Panics(t, func() { ops.NewConstant([]string{"a"}) })
}

func TestDeviceDataAndToken(t *testing.T) {
	x := ops.NewDeviceData("x", shapes.Make(dtypes.Float32, 3))
	assert.Equal(t, `(Float32)[3] xla::device_data, name="x"`, x.String())
	require.Equal(t, "x", x.Name())
	require.Empty(t, x.Operands())
	require.Equal(t, x.NodeHash(), x.DagHash())
	require.NotEqual(t, x.Hash(), ops.NewDeviceData("y", shapes.Make(dtypes.Float32, 3)).Hash())
	require.Equal(t, x.Hash(), x.Clone(nil).Hash())
	require.Panics(t, func() { ops.NewDeviceData("t", shapes.MakeToken()) })

	token := ops.NewToken()
	require.True(t, token.XlaShape().IsToken())
	require.Equal(t, ir.DefaultHashSeed, token.Seed())
	require.Equal(t, token.Hash(), ops.NewToken().Hash())
	assert.Equal(t, "Token xla::create_token", token.String())
}

func TestBinary(t *testing.T) {
	x := ops.NewDeviceData("x", shapes.Make(dtypes.Float32, 2, 3))
	two := ops.NewScalarConstant(float32(2))
	mul := ops.NewMul(ir.NewValue(x, 0), ir.NewValue(two, 0))
	require.Equal(t, ops.OpMul, mul.Op())
	require.Equal(t, backends.OpTypeMul, mul.OpType())
	require.True(t, mul.XlaShape().Equal(shapes.Make(dtypes.Float32, 2, 3)))

	add := ops.NewAdd(ir.NewValue(mul, 0), ir.NewValue(x, 0))
	require.Equal(t, ops.OpAdd, add.Op())
	require.Len(t, add.Operands(), 2)

	// Swapping the operands changes the DAG hash.
	swapped := add.Clone([]ir.Value{ir.NewValue(x, 0), ir.NewValue(mul, 0)})
	require.Equal(t, add.NodeHash(), swapped.NodeHash())
	require.NotEqual(t, add.DagHash(), swapped.DagHash())

	// Shape errors are reported lazily.
	i := ops.NewScalarConstant(int32(1))
	bad := ops.NewAdd(ir.NewValue(x, 0), ir.NewValue(i, 0))
	_, err := bad.ShapeOrError()
	require.Error(t, err)

	require.Panics(t, func() { ops.NewBinary(backends.OpTypeAllReduce, ir.NewValue(x, 0), ir.NewValue(x, 0)) })
}
