// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the descriptor of the output of an IR node.
//
// A Shape is either:
//
//   - an array shape: a DType (github.com/gomlx/gopjrt/dtypes) plus the dimension of each axis.
//     A shape with no dimensions is a scalar;
//   - a tuple shape: an ordered list of sub-shapes, used by nodes with more than one output;
//   - a token shape: the shape of an ordering token, a value with no data used to sequence
//     side-effecting operations.
//
// Shapes are treated as immutable values: they are compared with Equal and hashed with Hash,
// and methods that need a modified version return a Clone.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. Its size is the "dimension".
//   - DType: the data type of the unit element in a tensor.
//   - Scalar: a shape with no axes, only a single value of the associated DType.
//
// Example: `[][]int32{{0, 1, 2}, {3, 4, 5}}` has shape `(Int32)[2 3]`, created with
// `shapes.Make(dtypes.Int32, 2, 3)`.
package shapes

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the shape of the value produced by an IR node.
//
// Use Make, MakeTuple or MakeToken to create a new shape.
type Shape struct {
	DType       dtypes.DType
	Dimensions  []int
	TupleShapes []Shape // Shapes of the tuple, if this is a tuple.

	token bool
}

// Make returns a Shape structure filled with the values given.
// See MakeTuple for tuple shapes.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s, err := MakeOrError(dtype, dimensions...)
	if err != nil {
		panic(err)
	}
	return s
}

// MakeOrError is the same as Make, but it returns an error instead of panicking if a dimension is <= 0.
func MakeOrError(dtype dtypes.DType, dimensions ...int) (Shape, error) {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim <= 0 {
			return Shape{}, errors.Errorf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s, nil
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// MakeTuple returns a shape representing a tuple of elements with the given shapes.
func MakeTuple(elements []Shape) Shape {
	return Shape{DType: dtypes.InvalidDType, TupleShapes: slices.Clone(elements)}
}

// MakeToken returns the shape of an ordering token.
func MakeToken() Shape {
	return Shape{DType: dtypes.InvalidDType, token: true}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType || len(s.TupleShapes) > 0 || s.token }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.DType != dtypes.InvalidDType && s.Rank() == 0 }

// IsTuple returns whether the shape represents a tuple.
func (s Shape) IsTuple() bool { return len(s.TupleShapes) > 0 }

// IsToken returns whether the shape is the shape of an ordering token.
func (s Shape) IsToken() bool { return s.token }

// TupleSize returns the number of elements in the tuple, if it is a tuple.
func (s Shape) TupleSize() int { return len(s.TupleShapes) }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.token {
		return "Token"
	}
	if s.TupleSize() > 0 {
		parts := make([]string, 0, s.TupleSize())
		for _, tuple := range s.TupleShapes {
			parts = append(parts, tuple.String())
		}
		return fmt.Sprintf("Tuple<%s>", strings.Join(parts, ", "))
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
// Tokens and tuples have size 0.
func (s Shape) Size() (size int) {
	if s.token || s.IsTuple() {
		return 0
	}
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
// For tuples, it is the sum of the memory of its elements.
func (s Shape) Memory() uintptr {
	if s.IsTuple() {
		var total uintptr
		for _, element := range s.TupleShapes {
			total += element.Memory()
		}
		return total
	}
	if s.token {
		return 0
	}
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for equality: dtype, dimensions and tuple elements are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType || s.token != s2.token {
		return false
	}
	if s.IsTuple() || s2.IsTuple() {
		if s.TupleSize() != s2.TupleSize() {
			return false
		}
		for ii, element := range s.TupleShapes {
			if !element.Equal(s2.TupleShapes[ii]) {
				return false
			}
		}
		return true
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.token = s.token
	s2.Dimensions = slices.Clone(s.Dimensions)
	if s.TupleSize() > 0 {
		s2.TupleShapes = make([]Shape, 0, len(s.TupleShapes))
		for _, subShape := range s.TupleShapes {
			s2.TupleShapes = append(s2.TupleShapes, subShape.Clone())
		}
	}
	return
}

// Hash returns a structural hash of the shape: two shapes that are Equal have the same hash.
func (s Shape) Hash() uint64 {
	h := xxhash.New()
	s.writeHash(h)
	return h.Sum64()
}

// shape kind tags mixed in the hash, so a token, a scalar and an empty tuple don't collide.
const (
	hashTagArray byte = iota + 1
	hashTagTuple
	hashTagToken
)

func (s Shape) writeHash(h *xxhash.Digest) {
	var buf [8]byte
	switch {
	case s.token:
		_, _ = h.Write([]byte{hashTagToken})
	case s.IsTuple():
		_, _ = h.Write([]byte{hashTagTuple})
		binary.LittleEndian.PutUint64(buf[:], uint64(s.TupleSize()))
		_, _ = h.Write(buf[:])
		for _, element := range s.TupleShapes {
			element.writeHash(h)
		}
	default:
		_, _ = h.Write([]byte{hashTagArray})
		binary.LittleEndian.PutUint64(buf[:], uint64(s.DType))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(s.Rank()))
		_, _ = h.Write(buf[:])
		for _, dim := range s.Dimensions {
			binary.LittleEndian.PutUint64(buf[:], uint64(dim))
			_, _ = h.Write(buf[:])
		}
	}
}
