// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir defines the lazy intermediate representation of a computation: a DAG of Node, each one an
// operation (OpKind) over operands (Value, a reference to one output of another node).
//
// Every node carries:
//
//   - The shape of its outputs, given eagerly or computed lazily (at most once) from a ShapeFn.
//   - Structural hashes: NodeHash depends only on the operation, its output shape and a seed with the
//     operation specific parameters; DagHash folds in the DagHash of every operand, in order. Two graphs with
//     the same structure have the same Node.Hash, which can be used to deduplicate nodes and cache compiled
//     computations.
//   - Optional per-output sharding annotations (xla_data.OpSharding), which are folded into Node.Hash only
//     when present.
//   - Markers of dynamic dimensions and user metadata used for diagnostics.
//
// Concrete operations (see sub-package ops) embed *BaseNode and implement Node.Clone and Node.Lower. Lowering is
// driven by a LoweringContext (see package lowering for the reference implementation), that lowers operands
// before the nodes that use them.
package ir
