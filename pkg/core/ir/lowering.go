// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyxla/backends"
)

// LoweringContext translates nodes into backend ops.
//
// It guarantees that the operands of a node are lowered before the node, and that each node is lowered only once.
// See package lowering for the reference implementation.
type LoweringContext interface {
	// Builder used to emit the backend ops.
	Builder() backends.Builder

	// GetOutputOp returns the backend op of a lowered operand. It panics if the operand was not lowered yet.
	GetOutputOp(value Value) backends.Op

	// AssignOutputOp registers the backend op of one output of a node.
	AssignOutputOp(key OutputKey, op backends.Op)
}

// OutputKey returns the key of the given output of the node.
func (n *BaseNode) OutputKey(index int) OutputKey {
	n.checkOutputIndex(index)
	return OutputKey{node: n, index: index}
}

// ReturnOp registers op as the only output of the node, and returns it as a one element slice.
// It is the usual way of ending Node.Lower for single output nodes.
func (n *BaseNode) ReturnOp(op backends.Op, ctx LoweringContext) []backends.Op {
	if n.numOutputs != 1 {
		exceptions.Panicf("ir: ReturnOp used for node %s with %d outputs, use ReturnOps", n.op, n.numOutputs)
	}
	ctx.AssignOutputOp(n.OutputKey(0), op)
	return []backends.Op{op}
}

// ReturnOps registers ops as the outputs of the node, in order, and returns them.
func (n *BaseNode) ReturnOps(ops []backends.Op, ctx LoweringContext) []backends.Op {
	if len(ops) != n.numOutputs {
		exceptions.Panicf("ir: node %s has %d outputs, but %d ops were returned", n.op, n.numOutputs, len(ops))
	}
	for ii, op := range ops {
		ctx.AssignOutputOp(n.OutputKey(ii), op)
	}
	return ops
}
