// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import "unique"

// OpKind identifies what an operation does, e.g. "xla::cross_replica_sum".
//
// It is an interned (namespace, name) pair: comparing two OpKind is cheap, and two nodes with the same OpKind
// are structurally comparable.
type OpKind struct {
	namespace, name unique.Handle[string]
}

// NewOpKind returns the OpKind for the given namespace and name.
func NewOpKind(namespace, name string) OpKind {
	return OpKind{namespace: unique.Make(namespace), name: unique.Make(name)}
}

// Namespace of the operation.
func (k OpKind) Namespace() string { return k.namespace.Value() }

// Name of the operation, unique within its namespace.
func (k OpKind) Name() string { return k.name.Value() }

// IsValid returns false for the zero OpKind.
func (k OpKind) IsValid() bool {
	return k != OpKind{}
}

// String implements fmt.Stringer, and returns "namespace::name".
func (k OpKind) String() string {
	if !k.IsValid() {
		return "<invalid>"
	}
	return k.Namespace() + "::" + k.Name()
}

// Hash returns the structural hash of the operation kind, stable across processes.
func (k OpKind) Hash() Hash {
	return MHash(k.Namespace(), k.Name())
}
