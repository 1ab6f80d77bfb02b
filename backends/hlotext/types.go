// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlotext

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// elementTypes maps dtypes to the StableHLO element types.
var elementTypes = map[dtypes.DType]string{
	dtypes.Bool:       "i1",
	dtypes.Int8:       "i8",
	dtypes.Int16:      "i16",
	dtypes.Int32:      "i32",
	dtypes.Int64:      "i64",
	dtypes.Uint8:      "ui8",
	dtypes.Uint16:     "ui16",
	dtypes.Uint32:     "ui32",
	dtypes.Uint64:     "ui64",
	dtypes.Float16:    "f16",
	dtypes.BFloat16:   "bf16",
	dtypes.Float32:    "f32",
	dtypes.Float64:    "f64",
	dtypes.Complex64:  "complex<f32>",
	dtypes.Complex128: "complex<f64>",
}

// TypeString returns the StableHLO type of the shape, e.g.: "tensor<2x3xf32>", "tensor<i32>" or "!stablehlo.token".
func TypeString(shape shapes.Shape) string {
	switch {
	case shape.IsToken():
		return "!stablehlo.token"
	case shape.IsTuple():
		parts := make([]string, shape.TupleSize())
		for ii, element := range shape.TupleShapes {
			parts[ii] = TypeString(element)
		}
		return fmt.Sprintf("tuple<%s>", strings.Join(parts, ", "))
	case !shape.Ok():
		return "<invalid>"
	}
	elementType, found := elementTypes[shape.DType]
	if !found {
		elementType = strings.ToLower(shape.DType.String())
	}
	var sb strings.Builder
	sb.WriteString("tensor<")
	for _, dim := range shape.Dimensions {
		_, _ = fmt.Fprintf(&sb, "%dx", dim)
	}
	sb.WriteString(elementType)
	sb.WriteString(">")
	return sb.String()
}

// denseLiteral returns the shape of the constant and its text, e.g.: "dense<[[1, 2], [3, 4]]> : tensor<2x2xi32>".
func denseLiteral(flat any, dims []int) (shapes.Shape, string, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return shapes.Invalid(), "", errors.Errorf("flat values must be a slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		return shapes.Invalid(), "", errors.Errorf("values of type %s are not supported", flatV.Type().Elem())
	}
	shape, err := shapes.MakeOrError(dtype, dims...)
	if err != nil {
		return shapes.Invalid(), "", err
	}
	if shape.Size() != flatV.Len() {
		return shapes.Invalid(), "", errors.Errorf("%d values given for shape %s, expected %d",
			flatV.Len(), shape, shape.Size())
	}
	var sb strings.Builder
	sb.WriteString("dense<")
	pos := 0
	writeNested(&sb, flatV, dims, &pos)
	_, _ = fmt.Fprintf(&sb, "> : %s", TypeString(shape))
	return shape, sb.String(), nil
}

// writeNested writes the values of the sub-array starting at *pos with the given dimensions.
func writeNested(sb *strings.Builder, flatV reflect.Value, dims []int, pos *int) {
	if len(dims) == 0 {
		sb.WriteString(formatElement(flatV.Index(*pos).Interface()))
		*pos++
		return
	}
	sb.WriteString("[")
	for ii := range dims[0] {
		if ii > 0 {
			sb.WriteString(", ")
		}
		writeNested(sb, flatV, dims[1:], pos)
	}
	sb.WriteString("]")
}

type float32Converter interface {
	Float32() float32
}

func formatElement(element any) string {
	switch v := element.(type) {
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case complex64:
		return fmt.Sprintf("(%s, %s)", formatFloat(float64(real(v)), 32), formatFloat(float64(imag(v)), 32))
	case complex128:
		return fmt.Sprintf("(%s, %s)", formatFloat(real(v), 64), formatFloat(imag(v), 64))
	case float32Converter:
		return formatFloat(float64(v.Float32()), 32)
	}
	return fmt.Sprint(element)
}

// formatFloat always includes a decimal point or exponent, so values are not mistaken for integers.
func formatFloat(v float64, bitSize int) string {
	switch {
	case math.IsNaN(v):
		return "0x7FC00000"
	case math.IsInf(v, 1):
		return "0x7F800000"
	case math.IsInf(v, -1):
		return "0xFF800000"
	}
	s := strconv.FormatFloat(v, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
