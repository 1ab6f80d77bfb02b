// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from operations and validates its inputs.
//
// IR nodes use it to derive their output shapes lazily, and builders use it to check the
// operands they are given.
//
// It defines a BinaryOp function for shape inference of the element-wise binary functions, using the standard
// broadcasting rules, and one function per collective operation.
package shapeinference

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/support/sets"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

var (
	// NumberOperations can take any type of number as input: integers, floats, or complex numbers.
	NumberOperations = sets.MakeWith(
		backends.OpTypeAdd,
		backends.OpTypeMul,
	)

	// StandardBinaryOperations include all operations that have two operands usually named lhs (left-hand-side) and
	// rhs (right-hand-side) and are usually commutative (invariant to order).
	StandardBinaryOperations = sets.MakeWith(
		backends.OpTypeAdd,
		backends.OpTypeMul,
	)

	// BooleanReductions can only reduce booleans.
	BooleanReductions = sets.MakeWith(
		backends.ReduceOpLogicalAnd,
		backends.ReduceOpLogicalOr,
	)
)

// BinaryOp returns the expected output shape for ops in the StandardBinaryOperations set -- those include all
// operations that have two operands usually named lhs (left-hand-side) and rhs (right-hand-side), and they are usually
// commutative (invariant to order).
//
// It returns an error if the data type (shape.DType) is invalid for the operation -- e.g.: non-matching
// dtypes, or Add not having numbers as input.
func BinaryOp(opType backends.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	if !StandardBinaryOperations.Has(opType) {
		err = errors.Errorf("operations %s is not in the StandardBinaryOperations set, cannot process it with BinaryOp", opType)
		return
	}
	if lhsShape.DType == dtypes.InvalidDType || rhsShape.DType == dtypes.InvalidDType {
		err = errors.Errorf("invalid shape for %s or %s for BinaryOp %s", lhsShape, rhsShape, opType)
		return
	}
	if lhsShape.DType != rhsShape.DType {
		err = errors.Errorf("data types (DType) for BinaryOp %s must match, got %s and %s", opType, lhsShape, rhsShape)
		return
	}
	if NumberOperations.Has(opType) && !(lhsShape.DType.IsInt() || lhsShape.DType.IsFloat() || lhsShape.DType.IsComplex()) {
		err = errors.Errorf("numeric BinaryOp %s must have a number (Int32, Float32, Complex64, ...) data type as input, got %s", opType, lhsShape)
		return
	}
	return binaryOpImpl(opType, lhsShape, rhsShape)
}

func binaryOpImpl(opType backends.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	// Trivial cases: if one of the sides is a scalar, return the other side shape.
	if lhsShape.IsScalar() {
		return rhsShape, nil
	}
	if rhsShape.IsScalar() {
		return lhsShape, nil
	}

	// Other cases, either the dimensions match or one of them is 1.
	if lhsShape.Rank() != rhsShape.Rank() {
		err = errors.Errorf("if operands are not scalars, their rank must match for BinaryOp (%s), got shapes %s and %s",
			opType, lhsShape, rhsShape)
		return
	}
	output = lhsShape.Clone()
	for axis := range output.Rank() {
		lhsDim := lhsShape.Dimensions[axis]
		rhsDim := rhsShape.Dimensions[axis]
		if lhsDim != 1 && rhsDim != 1 && lhsDim != rhsDim {
			err = errors.Errorf("dimension of axis #%d doesn't match and cannot be broadcast for BinaryOp (%s), got shapes %s and %s",
				axis, opType, lhsShape, rhsShape)
			return
		}
		output.Dimensions[axis] = max(lhsDim, rhsDim)
	}
	return
}

// AllReduceOperands checks the operands of an AllReduce and returns the reduced shapes, one per operand.
// It doesn't validate the replica groups: see AllReduceOp.
func AllReduceOperands(operands []shapes.Shape, reductionType backends.ReduceOpType) (outputs []shapes.Shape, err error) {
	if len(operands) == 0 {
		err = errors.New("AllReduce requires at least one operand")
		return
	}
	if !reductionType.IsAReduceOpType() || reductionType == backends.ReduceOpUndefined {
		err = errors.Errorf("AllReduce requires a valid reduction type, got %s", reductionType)
		return
	}
	outputs = make([]shapes.Shape, 0, len(operands))
	for ii, operand := range operands {
		if !operand.Ok() || operand.IsTuple() || operand.IsToken() {
			err = errors.Errorf("AllReduce operand #%d must be an array, got %s", ii, operand)
			return nil, err
		}
		if BooleanReductions.Has(reductionType) && operand.DType != dtypes.Bool {
			err = errors.Errorf("AllReduce with %s requires boolean operands, operand #%d has shape %s",
				reductionType, ii, operand)
			return nil, err
		}
		if !BooleanReductions.Has(reductionType) && operand.DType == dtypes.Bool {
			err = errors.Errorf("AllReduce with %s requires numeric operands, operand #%d has shape %s",
				reductionType, ii, operand)
			return nil, err
		}
		outputs = append(outputs, operand.Clone())
	}
	return
}

// AllReduceOp returns the output shapes of an AllReduce, one per operand.
// Besides the operands, it validates the replica groups: an empty list means all replicas, otherwise
// groups can't be empty and a replica can't appear more than once.
func AllReduceOp(operands []shapes.Shape, reductionType backends.ReduceOpType, replicaGroups [][]int) (outputs []shapes.Shape, err error) {
	outputs, err = AllReduceOperands(operands, reductionType)
	if err != nil {
		return nil, err
	}
	if err = checkReplicaGroups(replicaGroups); err != nil {
		return nil, err
	}
	return
}

// AllReduceWithTokenOp is like AllReduceOp, but it also takes the ordering token, and the returned shapes
// include the new token as the last output.
func AllReduceWithTokenOp(operands []shapes.Shape, token shapes.Shape, reductionType backends.ReduceOpType, replicaGroups [][]int) (outputs []shapes.Shape, err error) {
	if !token.IsToken() {
		err = errors.Errorf("AllReduce ordering token must have a token shape, got %s", token)
		return
	}
	outputs, err = AllReduceOp(operands, reductionType, replicaGroups)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, shapes.MakeToken())
	return
}

func checkReplicaGroups(replicaGroups [][]int) error {
	seen := sets.Make[int]()
	for groupIdx, group := range replicaGroups {
		if len(group) == 0 {
			return errors.Errorf("replica group #%d is empty", groupIdx)
		}
		for _, replica := range group {
			if replica < 0 {
				return errors.Errorf("replica group #%d has invalid replica %d", groupIdx, replica)
			}
			if !seen.InsertIfMissing(replica) {
				return errors.Errorf("replica %d appears more than once in replica groups %v", replica, replicaGroups)
			}
		}
	}
	return nil
}
