// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/backends/shapeinference"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// Binary is an element-wise binary operation (Add or Mul), with the usual broadcasting rules.
//
// Its shape is computed lazily: incompatible operands only fail when the shape is first needed.
type Binary struct {
	*ir.BaseNode

	opType backends.OpType
}

var _ ir.Node = (*Binary)(nil)

var binaryKinds = map[backends.OpType]ir.OpKind{
	backends.OpTypeAdd: OpAdd,
	backends.OpTypeMul: OpMul,
}

// NewBinary creates the element-wise operation opType (backends.OpTypeAdd or backends.OpTypeMul).
func NewBinary(opType backends.OpType, lhs, rhs ir.Value) *Binary {
	kind, found := binaryKinds[opType]
	if !found {
		exceptions.Panicf("NewBinary: unsupported operation %s", opType)
	}
	n := &Binary{opType: opType}
	n.BaseNode = ir.NewNodeLazy(kind, []ir.Value{lhs, rhs},
		func() (shapes.Shape, error) {
			return shapeinference.BinaryOp(opType, ir.GetShape(lhs), ir.GetShape(rhs))
		},
		1, ir.DefaultHashSeed)
	return n
}

// NewAdd returns lhs+rhs.
func NewAdd(lhs, rhs ir.Value) *Binary { return NewBinary(backends.OpTypeAdd, lhs, rhs) }

// NewMul returns lhs*rhs.
func NewMul(lhs, rhs ir.Value) *Binary { return NewBinary(backends.OpTypeMul, lhs, rhs) }

// OpType returns the backend operation type.
func (n *Binary) OpType() backends.OpType { return n.opType }

// Clone returns the same operation over new operands.
func (n *Binary) Clone(operands []ir.Value) ir.Node {
	if len(operands) != 2 {
		exceptions.Panicf("%s.Clone() requires 2 operands, got %d", n.Op(), len(operands))
	}
	return NewBinary(n.opType, operands[0], operands[1])
}

// Lower emits the backend element-wise operation.
func (n *Binary) Lower(ctx ir.LoweringContext) ([]backends.Op, error) {
	lhs, rhs := ctx.GetOutputOp(n.Operand(0)), ctx.GetOutputOp(n.Operand(1))
	var op backends.Op
	var err error
	switch n.opType {
	case backends.OpTypeAdd:
		op, err = ctx.Builder().Add(lhs, rhs)
	case backends.OpTypeMul:
		op, err = ctx.Builder().Mul(lhs, rhs)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", n.Op())
	}
	return n.ReturnOp(op, ctx), nil
}
