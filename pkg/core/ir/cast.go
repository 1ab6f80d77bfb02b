// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// CastError is raised (panicked) by NodeCast in checked mode, when the node is not of the requested kind.
type CastError struct {
	// Want is the requested operation kind.
	Want OpKind

	// Got is the operation kind of the node.
	Got OpKind

	// GoType is the Go type of the node, if the kinds match but the Go type doesn't.
	GoType string
}

// Error implements the error interface.
func (e *CastError) Error() string {
	if e.GoType != "" {
		return fmt.Sprintf("ir: cannot cast node of kind %s (Go type %s) to the requested type", e.Got, e.GoType)
	}
	return fmt.Sprintf("ir: cannot cast node of kind %s to kind %s", e.Got, e.Want)
}

// NodeCast returns node as the concrete type T, if it is of the operation kind op.
//
// If the node is of a different kind (or of a different Go type), in checked mode (see Config.CheckedCasts)
// it panics with a *CastError, and in unchecked mode it returns the zero value of T (nil for pointers).
//
// Example:
//
//	if allReduce := ir.NodeCast[*ops.AllReduce](node, ops.OpCrossReplicaSum); allReduce != nil { ... }
func NodeCast[T Node](node Node, op OpKind) T {
	return castNode[T](node, op, CurrentConfig().CheckedCasts)
}

// TryNodeCast is like NodeCast, but always checked, and it returns the error instead of panicking.
func TryNodeCast[T Node](node Node, op OpKind) (result T, err error) {
	err = exceptions.TryCatch[error](func() {
		result = castNode[T](node, op, true)
	})
	return
}

func castNode[T Node](node Node, op OpKind, checked bool) T {
	var zero T
	if node == nil {
		return zero
	}
	if node.Op() != op {
		if checked {
			panic(&CastError{Want: op, Got: node.Op()})
		}
		return zero
	}
	casted, ok := node.(T)
	if !ok {
		if checked {
			panic(&CastError{Want: op, Got: node.Op(), GoType: fmt.Sprintf("%T", node)})
		}
		return zero
	}
	return casted
}
