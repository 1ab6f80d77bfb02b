// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// Constant is a leaf node holding a literal value.
type Constant struct {
	*ir.BaseNode

	flat any
	dims []int
}

var _ ir.Node = (*Constant)(nil)

// NewConstant creates a constant from a flat slice of values (e.g. []float32, or []float16.Float16) and
// the dimensions of the constant. A scalar is given as a slice with one element and no dimensions.
//
// The values are copied and they are part of the node's identity: constants with the same values have the
// same hash.
func NewConstant(flat any, dims ...int) *Constant {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		exceptions.Panicf("NewConstant requires a flat slice of values, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("NewConstant: values of type %s are not supported", flatV.Type().Elem())
	}
	shape, err := shapes.MakeOrError(dtype, dims...)
	if err != nil {
		panic(errors.WithMessage(err, "NewConstant"))
	}
	if shape.Size() != flatV.Len() {
		exceptions.Panicf("NewConstant: %d values given for shape %s, expected %d", flatV.Len(), shape, shape.Size())
	}
	flatCopy := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(flatCopy, flatV)
	n := &Constant{
		flat: flatCopy.Interface(),
		dims: slices.Clone(dims),
	}
	n.BaseNode = ir.NewLeafNode(OpConstant, shape, 1, ir.MHash(n.flat))
	return n
}

// NewScalarConstant creates a scalar constant with the given value, e.g. NewScalarConstant(float32(1)).
func NewScalarConstant(value any) *Constant {
	valueV := reflect.ValueOf(value)
	flat := reflect.MakeSlice(reflect.SliceOf(valueV.Type()), 1, 1)
	flat.Index(0).Set(valueV)
	return NewConstant(flat.Interface())
}

// Flat returns the values of the constant. It must not be modified.
func (n *Constant) Flat() any { return n.flat }

// Clone returns a new constant with the same values. Constants have no operands.
func (n *Constant) Clone(operands []ir.Value) ir.Node {
	if len(operands) != 0 {
		exceptions.Panicf("Constant.Clone() takes no operands, got %d", len(operands))
	}
	return NewConstant(n.flat, n.dims...)
}

// Lower emits the backend constant.
func (n *Constant) Lower(ctx ir.LoweringContext) ([]backends.Op, error) {
	op, err := ctx.Builder().Constant(n.flat, n.dims...)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", n.Op())
	}
	return n.ReturnOp(op, ctx), nil
}

// maxValuesPrinted by Constant.String.
const maxValuesPrinted = 8

// String appends the first values of the constant to the base description.
func (n *Constant) String() string {
	flatV := reflect.ValueOf(n.flat)
	parts := make([]string, 0, min(flatV.Len(), maxValuesPrinted)+1)
	for ii := range min(flatV.Len(), maxValuesPrinted) {
		parts = append(parts, fmt.Sprint(flatV.Index(ii).Interface()))
	}
	if flatV.Len() > maxValuesPrinted {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("%s, values=[%s]", n.BaseNode.String(), strings.Join(parts, " "))
}
