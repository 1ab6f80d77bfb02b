// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/lazyxla/types/shapes"
)

// Value references one output of a Node: it is an edge of the DAG.
//
// Values don't own the node, nodes are shared by all their consumers.
type Value struct {
	Node  Node
	Index int
}

// NewValue returns a reference to the output index of node.
func NewValue(node Node, index int) Value {
	return Value{Node: node, Index: index}
}

// Ok returns whether the value references a node.
func (v Value) Ok() bool {
	return v.Node != nil
}

// Shape of the referenced output.
func (v Value) Shape() shapes.Shape {
	return v.Node.XlaShapeAt(v.Index)
}

// Key returns a comparable key for the referenced output, independent of the concrete type used to hold the node.
func (v Value) Key() OutputKey {
	return OutputKey{node: v.Node.baseNode(), index: v.Index}
}

// Hash of the referenced output: the DagHash of the node combined with the output index.
func (v Value) Hash() Hash {
	return HashCombine(v.Node.DagHash(), Hash(v.Index))
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.Node == nil {
		return "Value<nil>"
	}
	return fmt.Sprintf("%s#%d", v.Node.Op(), v.Index)
}

// OutputKey identifies one output of a node, it can be used as a map key.
type OutputKey struct {
	node  *BaseNode
	index int
}

// Index of the output.
func (k OutputKey) Index() int { return k.index }

// GetShape returns the shape of the value: the element of the node's tuple shape for multi-output nodes.
//
// Concrete nodes use it to derive their output shapes from their operands.
func GetShape(value Value) shapes.Shape {
	return value.Shape()
}
