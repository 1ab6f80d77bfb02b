// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlotext

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	require.True(t, backends.Registered(BackendName))
	backend := must.M1(backends.NewWithConfig("hlotext:notypes"))
	require.Equal(t, BackendName, backend.Name())
	_, err := backends.NewWithConfig("hlotext:bogus")
	require.Error(t, err)
}

func TestTypeString(t *testing.T) {
	for _, tc := range []struct {
		shape shapes.Shape
		want  string
	}{
		{shapes.Make(dtypes.Float32, 2, 3), "tensor<2x3xf32>"},
		{shapes.Make(dtypes.Int64), "tensor<i64>"},
		{shapes.Make(dtypes.Bool, 4), "tensor<4xi1>"},
		{shapes.Make(dtypes.BFloat16, 1), "tensor<1xbf16>"},
		{shapes.MakeToken(), "!stablehlo.token"},
		{shapes.MakeTuple([]shapes.Shape{shapes.Make(dtypes.Float32), shapes.MakeToken()}),
			"tuple<tensor<f32>, !stablehlo.token>"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, TypeString(tc.shape))
		})
	}
}

func TestConstant(t *testing.T) {
	backend := must.M1(NewWithConfig(""))
	builder := backend.NewBuilder("constants")
	c := must.M1(builder.Constant([]int32{1, 2, 3, 4}, 2, 2))
	require.True(t, must.M1(builder.OpShape(c)).Equal(shapes.Make(dtypes.Int32, 2, 2)))
	scalar := must.M1(builder.Constant([]float32{2}))
	program := must.M1(builder.Program(c, scalar))
	assert.Contains(t, program, "%0 = stablehlo.constant dense<[[1, 2], [3, 4]]> : tensor<2x2xi32>")
	assert.Contains(t, program, "%1 = stablehlo.constant dense<2.0> : tensor<f32>")
	assert.Contains(t, program, "return %0, %1 : tensor<2x2xi32>, tensor<f32>")

	_, err := builder.Constant([]float32{1, 2, 3}, 2, 2)
	require.Error(t, err)
	_, err = builder.Constant(3.0)
	require.Error(t, err)
}

func TestBinaryOps(t *testing.T) {
	backend := must.M1(NewWithConfig(""))
	builder := backend.NewBuilder("binary")
	x := must.M1(builder.Parameter("x", shapes.Make(dtypes.Float32, 2, 3)))
	two := must.M1(builder.Constant([]float32{2}))
	y := must.M1(builder.Mul(x, two))
	z := must.M1(builder.Add(y, x))
	require.True(t, must.M1(builder.OpShape(z)).Equal(shapes.Make(dtypes.Float32, 2, 3)))
	require.Equal(t, []backends.OpType{backends.OpTypeConstant, backends.OpTypeInvalid, backends.OpTypeMul,
		backends.OpTypeAdd}, builder.OpTypes())

	program := must.M1(builder.Program(z))
	assert.Contains(t, program, `func.func @main(%arg0: tensor<2x3xf32> {lazyxla.name = "x"}) -> (tensor<2x3xf32>)`)
	assert.Contains(t, program, "%1 = stablehlo.broadcast_in_dim %0 {dims = []} : tensor<2x3xf32>")
	assert.Contains(t, program, "%2 = stablehlo.multiply %arg0, %1 : tensor<2x3xf32>")
	assert.Contains(t, program, "%3 = stablehlo.add %2, %arg0 : tensor<2x3xf32>")

	// Mismatched dtypes.
	i := must.M1(builder.Constant([]int32{1}))
	_, err := builder.Add(x, i)
	require.Error(t, err)

	// Ops from another builder.
	other := backend.NewBuilder("other")
	_, err = other.Add(x, x)
	require.Error(t, err)
}

func TestAllReduce(t *testing.T) {
	backend := must.M1(NewWithConfig(""))
	builder := backend.NewBuilder("all_reduce")
	x := must.M1(builder.Parameter("x", shapes.Make(dtypes.Float32, 4)))
	y := must.M1(builder.Parameter("y", shapes.Make(dtypes.Int32, 2)))
	outputs := must.M1(builder.AllReduce([]backends.Op{x, y}, backends.ReduceOpSum, [][]int{{0, 1}, {2, 3}}))
	require.Len(t, outputs, 2)
	program := must.M1(builder.Program(outputs...))
	assert.Contains(t, program, "%0:2 = stablehlo.all_reduce %arg0, %arg1 "+
		"{computation = stablehlo.add, replica_groups = dense<[[0, 1], [2, 3]]> : tensor<2x2xi64>} "+
		": (tensor<4xf32>, tensor<2xi32>) -> (tensor<4xf32>, tensor<2xi32>)")
	assert.Contains(t, program, "return %0#0, %0#1 : tensor<4xf32>, tensor<2xi32>")

	// Empty groups: all replicas in one group.
	outputs = must.M1(builder.AllReduce([]backends.Op{x}, backends.ReduceOpMax, nil))
	require.Len(t, outputs, 1)
	program = must.M1(builder.Program(outputs...))
	assert.Contains(t, program, "replica_groups = dense<> : tensor<0x0xi64>")

	// Ragged groups are not supported.
	_, err := builder.AllReduce([]backends.Op{x}, backends.ReduceOpSum, [][]int{{0, 1}, {2}})
	require.Error(t, err)

	// Bool requires a logical reduction.
	b := must.M1(builder.Parameter("b", shapes.Make(dtypes.Bool, 2)))
	_, err = builder.AllReduce([]backends.Op{b}, backends.ReduceOpSum, nil)
	require.Error(t, err)
}

func TestAllReduceWithToken(t *testing.T) {
	backend := must.M1(NewWithConfig(""))
	builder := backend.NewBuilder("all_reduce_with_token")
	x := must.M1(builder.Parameter("x", shapes.Make(dtypes.Float32, 4)))
	y := must.M1(builder.Parameter("y", shapes.Make(dtypes.Float32, 2, 2)))
	token := must.M1(builder.CreateToken())
	outputs := must.M1(builder.AllReduceWithToken([]backends.Op{x, y}, token, backends.ReduceOpSum,
		[][]int{{0, 1}}, true))
	require.Len(t, outputs, 3)
	require.True(t, must.M1(builder.OpShape(outputs[0])).Equal(shapes.Make(dtypes.Float32, 4)))
	require.True(t, must.M1(builder.OpShape(outputs[1])).Equal(shapes.Make(dtypes.Float32, 2, 2)))
	require.True(t, must.M1(builder.OpShape(outputs[2])).IsToken())

	program := must.M1(builder.Program(outputs...))
	assert.Contains(t, program, "%0 = stablehlo.create_token : !stablehlo.token")
	assert.Contains(t, program, "%1:3 = stablehlo.all_reduce %arg0, %arg1, %0 ")
	assert.Contains(t, program, "pin_layout = true")
	assert.Contains(t, program, "return %1#0, %1#1, %1#2 : tensor<4xf32>, tensor<2x2xf32>, !stablehlo.token")

	// The token must be a token.
	_, err := builder.AllReduceWithToken([]backends.Op{x}, y, backends.ReduceOpSum, nil, false)
	require.Error(t, err)
}

func TestNoTypes(t *testing.T) {
	backend := must.M1(NewWithConfig("notypes"))
	builder := backend.NewBuilder("no types")
	token := must.M1(builder.CreateToken())
	program := must.M1(builder.Program(token))
	assert.Contains(t, program, "module @no_types {")
	assert.Contains(t, program, "    %0 = stablehlo.create_token\n")
}
