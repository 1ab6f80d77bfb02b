// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/backends/hlotext"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/pkg/core/ir/ops"
	"github.com/gomlx/lazyxla/pkg/core/lowering"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T, name string) *hlotext.Builder {
	t.Helper()
	return must.M1(hlotext.NewWithConfig("")).NewBuilder(name)
}

func v(node ir.Node) ir.Value { return ir.NewValue(node, 0) }

func TestLowerAllReduceWithToken(t *testing.T) {
	x := ops.NewDeviceData("x", shapes.Make(dtypes.Float32, 4))
	y := ops.NewDeviceData("y", shapes.Make(dtypes.Float32, 2))
	token := ops.NewToken()
	allReduce := ops.NewAllReduceWithToken(backends.ReduceOpSum, []ir.Value{v(x), v(y)}, v(token),
		0.5, [][]int{{0, 1}}, true)
	sum := ops.NewAdd(ir.NewValue(allReduce, 0), v(x))

	builder := newBuilder(t, "all_reduce")
	ctx := lowering.New(builder)
	require.Contains(t, ctx.Name(), "all_reduce-")
	outputs, err := ctx.Lower(v(sum), ir.NewValue(allReduce, 1), ir.NewValue(allReduce, 2))
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	require.Equal(t, 5, ctx.NumLowered())
	require.True(t, ctx.IsLowered(allReduce))
	require.True(t, must.M1(builder.OpShape(outputs[2])).IsToken())

	program := must.M1(builder.Program(outputs...))
	assert.Contains(t, program, "%0 = stablehlo.create_token : !stablehlo.token")
	assert.Contains(t, program, "%1:3 = stablehlo.all_reduce %arg0, %arg1, %0 ")
	assert.Contains(t, program, "pin_layout = true")
	// Scaling of each reduced value.
	assert.Contains(t, program, "stablehlo.multiply %1#0, ")
	assert.Contains(t, program, "stablehlo.multiply %1#1, ")
	assert.Contains(t, program, "dense<0.5> : tensor<f32>")
	require.Equal(t, []backends.OpType{
		backends.OpTypeCreateToken, backends.OpTypeAllReduce,
		backends.OpTypeConstant, backends.OpTypeInvalid, backends.OpTypeMul, // Scale of x.
		backends.OpTypeConstant, backends.OpTypeInvalid, backends.OpTypeMul, // Scale of y.
		backends.OpTypeAdd,
	}, builder.OpTypes())

	// Lowering again is a no-op.
	again, err := ctx.Lower(v(sum))
	require.NoError(t, err)
	require.Equal(t, outputs[0], again[0])
	require.Equal(t, 9, builder.NumNodes())
}

func TestLowerSharedNodes(t *testing.T) {
	x := ops.NewDeviceData("x", shapes.Make(dtypes.Int32, 3))
	// Diamond: x is used by both branches, and the all-reduce by both operands of the root.
	allReduce := ops.NewAllReduce(backends.ReduceOpMax, v(x), 1, [][]int{{0, 1, 2, 3}})
	left := ops.NewMul(v(allReduce), v(x))
	right := ops.NewAdd(v(allReduce), v(x))
	root := ops.NewAdd(v(left), v(right))

	builder := newBuilder(t, "diamond")
	ctx := lowering.New(builder)
	outputs, err := ctx.Lower(v(root))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, 5, ctx.NumLowered())
	require.Equal(t, []backends.OpType{backends.OpTypeAllReduce, backends.OpTypeMul, backends.OpTypeAdd,
		backends.OpTypeAdd}, builder.OpTypes())
	program := must.M1(builder.Program(outputs...))
	assert.Contains(t, program, "%0 = stablehlo.all_reduce %arg0 {computation = stablehlo.maximum, "+
		"replica_groups = dense<[[0, 1, 2, 3]]> : tensor<1x4xi64>} : tensor<3xi32>")
	assert.Contains(t, program, "%3 = stablehlo.add %1, %2 : tensor<3xi32>")
}

func TestLowerNode(t *testing.T) {
	x := ops.NewDeviceData("x", shapes.Make(dtypes.Float32))
	two := ops.NewScalarConstant(float32(2))
	mul := ops.NewMul(v(x), v(two))

	builder := newBuilder(t, "nodes")
	ctx := lowering.New(builder)
	_, err := ctx.LowerNode(mul)
	require.Error(t, err, "operands not lowered yet")
	require.Panics(t, func() { ctx.GetOutputOp(v(x)) })

	xOps := must.M1(ctx.LowerNode(x))
	require.Len(t, xOps, 1)
	require.Equal(t, xOps[0], ctx.GetOutputOp(v(x)))
	require.Equal(t, xOps, must.M1(ctx.LowerNode(x)), "lowering twice returns the same ops")
	must.M1(ctx.LowerNode(two))
	mulOps := must.M1(ctx.LowerNode(mul))
	require.Equal(t, 3, ctx.NumLowered())
	require.True(t, must.M1(builder.OpShape(mulOps[0])).Equal(shapes.Make(dtypes.Float32)))
}

func TestLowerErrors(t *testing.T) {
	builder := newBuilder(t, "errors")
	ctx := lowering.New(builder)
	_, err := ctx.Lower(ir.Value{})
	require.Error(t, err)

	// Ragged replica groups are valid IR, but not supported by the text backend.
	x := ops.NewDeviceData("x", shapes.Make(dtypes.Float32, 2))
	allReduce := ops.NewAllReduce(backends.ReduceOpSum, v(x), 1, [][]int{{0, 1}, {2}})
	require.True(t, allReduce.XlaShape().Equal(x.XlaShape()))
	_, err = ctx.Lower(v(allReduce))
	require.ErrorContains(t, err, "same size")
	require.False(t, ctx.IsLowered(allReduce))
	require.True(t, ctx.IsLowered(x))

	// Overlapping groups are only rejected by the backend.
	overlapping := ops.NewAllReduce(backends.ReduceOpSum, v(x), 1, [][]int{{0, 1}, {1, 2}})
	require.True(t, overlapping.XlaShape().Equal(x.XlaShape()))
	_, err = ctx.Lower(v(overlapping))
	require.ErrorContains(t, err, "more than once")

	// A value used as ordering token is valid IR, but the text backend requires a token shape.
	valueToken := ops.NewDeviceData("token", shapes.Make(dtypes.Float32))
	withToken := ops.NewAllReduceWithToken(backends.ReduceOpSum, []ir.Value{v(x)}, v(valueToken), 1, nil, false)
	require.True(t, withToken.XlaShapeAt(1).Equal(valueToken.XlaShape()))
	_, err = ctx.Lower(v(withToken))
	require.ErrorContains(t, err, "token shape")
	require.False(t, ctx.IsLowered(withToken))

	// Nodes without lowering.
	custom := ir.NewLeafNode(ir.NewOpKind("test", "custom"), shapes.Make(dtypes.Float32), 1, 0)
	_, err = ctx.Lower(v(custom))
	require.ErrorIs(t, err, backends.ErrNotImplemented)
}
