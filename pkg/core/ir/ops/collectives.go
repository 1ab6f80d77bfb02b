// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/lazyxla/backends"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// BuildAllReduce emits an all-reduce of operand over the replica groups, and then multiplies the result by scale.
//
// The groups are passed to the builder as given: an empty list means one group with all replicas, a
// policy of the backend.
func BuildAllReduce(builder backends.Builder, reduceType backends.ReduceOpType, operand backends.Op, scale float64,
	groups [][]int) (backends.Op, error) {
	results, err := builder.AllReduce([]backends.Op{operand}, reduceType, groups)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, errors.Errorf("backend %q AllReduce returned %d results for 1 operand", builder.Name(), len(results))
	}
	return scaleOp(builder, results[0], scale)
}

// BuildAllReduceWithToken emits an all-reduce of the operands ordered by token, and multiplies each reduced
// value by scale.
//
// It returns the reduced values followed by the new token.
func BuildAllReduceWithToken(builder backends.Builder, reduceType backends.ReduceOpType, operands []backends.Op,
	token backends.Op, scale float64, groups [][]int, pinLayout bool) ([]backends.Op, error) {
	results, err := builder.AllReduceWithToken(operands, token, reduceType, groups, pinLayout)
	if err != nil {
		return nil, err
	}
	if len(results) != len(operands)+1 {
		return nil, errors.Errorf("backend %q AllReduceWithToken returned %d results for %d operands (expected %d)",
			builder.Name(), len(results), len(operands), len(operands)+1)
	}
	last := len(results) - 1
	for ii := range results[:last] {
		results[ii], err = scaleOp(builder, results[ii], scale)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// scaleOp multiplies op by the scalar scale, converted to op's dtype. It's a no-op if scale is 1.
func scaleOp(builder backends.Builder, op backends.Op, scale float64) (backends.Op, error) {
	if scale == 1 {
		return op, nil
	}
	shape, err := builder.OpShape(op)
	if err != nil {
		return nil, err
	}
	flat, err := scalarFlat(shape.DType, scale)
	if err != nil {
		return nil, err
	}
	scaleConst, err := builder.Constant(flat)
	if err != nil {
		return nil, err
	}
	return builder.Mul(op, scaleConst)
}

// scalarFlat returns a slice with one element with value converted to dtype.
func scalarFlat(dtype dtypes.DType, value float64) (any, error) {
	switch dtype {
	case dtypes.Float16:
		return []float16.Float16{float16.Fromfloat32(float32(value))}, nil
	case dtypes.BFloat16:
		return []bfloat16.BFloat16{bfloat16.FromFloat32(float32(value))}, nil
	case dtypes.Complex64:
		return []complex64{complex(float32(value), 0)}, nil
	case dtypes.Complex128:
		return []complex128{complex(value, 0)}, nil
	case dtypes.Bool, dtypes.InvalidDType:
		return nil, errors.Errorf("cannot scale values of dtype %s", dtype)
	}
	goType := dtype.GoType()
	if goType == nil {
		return nil, errors.Errorf("cannot scale values of dtype %s", dtype)
	}
	flat := reflect.MakeSlice(reflect.SliceOf(goType), 1, 1)
	flat.Index(0).Set(reflect.ValueOf(value).Convert(goType))
	return flat.Interface(), nil
}
