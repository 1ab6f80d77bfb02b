// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package notimplemented implements a backends.Builder interface that returns a "not implemented"
// error for all operations.
//
// This can help bootstrap any backend implementation, and it is embedded by the mock builders used in tests:
// they override only the operations they care about.
package notimplemented

import (
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// NotImplementedError is returned by every method.
//
// It doesn't contain a stack, attach a stack to with with errors.Wrapf(ErrNotImplemented, "...") when using it.
var NotImplementedError = backends.ErrNotImplemented

// Backend is a dummy backend that can be imported to create mock backends.
type Backend struct{}

var _ backends.Backend = &Backend{}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return "notimplemented"
}

// String returns the same as Name.
func (b *Backend) String() string {
	return b.Name()
}

// Description is a longer description of the Backend.
func (b *Backend) Description() string {
	return "Not Implemented Backend (mock backend for testing)"
}

// Builder creates a new builder.
func (b *Backend) Builder(name string) backends.Builder {
	return Builder{}
}

// Finalize does nothing for this dummy backend.
func (b *Backend) Finalize() {}

// Builder implements backends.Builder and returns the NotImplementedError wrapped with the stack-trace
// and the operation name, for every operation.
type Builder struct {
	// ErrFn is called to generate the error returned, if not nil.
	// Otherwise NotImplementedError is returned wrapped with the op name.
	//
	// For non-ops methods (like Builder.Name) you will have to override them.
	ErrFn func(op backends.OpType) error
}

var _ backends.Builder = Builder{}

// baseErrFn returns the error corresponding to the op.
// It falls back to Builder.ErrFn if it is defined.
func (b Builder) baseErrFn(op backends.OpType) error {
	if b.ErrFn == nil {
		return errors.Wrapf(NotImplementedError, "in %s()", op)
	}
	return b.ErrFn(op)
}

func (b Builder) Name() string {
	return "Dummy \"not implemented\" backend, please override this method"
}

func (b Builder) OpShape(op backends.Op) (shapes.Shape, error) {
	return shapes.Invalid(), errors.Wrapf(NotImplementedError, "in OpShape()")
}

func (b Builder) Parameter(name string, shape shapes.Shape) (backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeParameter)
}

func (b Builder) Constant(flat any, dims ...int) (backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeConstant)
}

func (b Builder) CreateToken() (backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeCreateToken)
}

func (b Builder) Add(lhs, rhs backends.Op) (backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeAdd)
}

func (b Builder) Mul(lhs, rhs backends.Op) (backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeMul)
}

func (b Builder) AllReduce(operands []backends.Op, reductionType backends.ReduceOpType, replicaGroups [][]int) ([]backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeAllReduce)
}

func (b Builder) AllReduceWithToken(operands []backends.Op, token backends.Op, reductionType backends.ReduceOpType,
	replicaGroups [][]int, pinLayout bool) ([]backends.Op, error) {
	return nil, b.baseErrFn(backends.OpTypeAllReduce)
}
