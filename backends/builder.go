// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// Op represents the output of an operation, during the lowering of a computation.
//
// It is opaque from the IR perspective: it passes Op as input to the other methods.
type Op any

// ErrNotImplemented is returned (wrapped) by builders for operations they don't support.
var ErrNotImplemented = errors.New("not implemented")

// Builder defines the set of primitive ops IR nodes are lowered into.
//
// Builders can refuse an operation by returning an error wrapping ErrNotImplemented,
// see package github.com/gomlx/lazyxla/backends/notimplemented.
type Builder interface {
	// Name of the computation being built.
	Name() string

	// OpShape returns the shape of a computation Op.
	// Notice this is not an operation and doesn't change the graph being built.
	OpShape(op Op) (shapes.Shape, error)

	// Parameter creates an input parameter for the computation.
	// During execution of a compiled computation this value will need to be fed
	// in the same order it is created.
	Parameter(name string, shape shapes.Shape) (Op, error)

	// Constant creates a constant in the graph with the given flat values, and the shape defined by dims.
	//
	// The flat value must be a slice of a basic type supported -- that can be converted to a DType.
	Constant(flat any, dims ...int) (Op, error)

	// CreateToken creates an ordering token, used to sequence side-effecting operations.
	CreateToken() (Op, error)

	// Add returns the element-wise sum of the two values.
	// Standard broadcasting rules apply: either side can be a scalar.
	Add(lhs, rhs Op) (Op, error)

	// Mul returns the element-wise multiplication of the two values.
	// Standard broadcasting rules apply: either side can be a scalar.
	Mul(lhs, rhs Op) (Op, error)

	// CollectiveOps include all collective (distributed cross-device) operations.
	CollectiveOps
}

// ReduceOpType select among the basic types of reduction supported.
type ReduceOpType int

const (
	// ReduceOpUndefined is an undefined value.
	ReduceOpUndefined ReduceOpType = iota

	// ReduceOpSum reduces by summing all elements being reduced.
	ReduceOpSum

	// ReduceOpProduct reduces by multiplying all elements being reduced.
	ReduceOpProduct

	// ReduceOpMax reduces by taking the maximum value.
	ReduceOpMax

	// ReduceOpMin reduces by taking the minimum value.
	ReduceOpMin

	// ReduceOpLogicalAnd reduces booleans with a logical "and".
	ReduceOpLogicalAnd

	// ReduceOpLogicalOr reduces booleans with a logical "or".
	ReduceOpLogicalOr
)

//go:generate go tool enumer -type ReduceOpType -trimprefix=ReduceOp -output=gen_reduceoptype_enumer.go builder.go
