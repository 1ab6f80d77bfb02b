// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package lowering implements ir.LoweringContext: it walks an IR graph, lowering each node once, after all its
// operands, into a backends.Builder.
//
// Example:
//
//	ctx := lowering.New(backend.Builder("my_computation"))
//	outputs, err := ctx.Lower(result)
//
// A Context is not safe for concurrent use. IR nodes can be shared among contexts lowering concurrently.
package lowering

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/pkg/support/sets"
	"github.com/gomlx/lazyxla/pkg/support/xslices"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context lowers IR nodes into backend ops, and keeps track of which nodes were already lowered.
type Context struct {
	name    string
	builder backends.Builder

	outputs map[ir.OutputKey]backends.Op
	lowered sets.Set[ir.Node]
}

var _ ir.LoweringContext = (*Context)(nil)

// New creates a lowering context that emits ops into builder.
func New(builder backends.Builder) *Context {
	c := &Context{
		name:    fmt.Sprintf("%s-%s", builder.Name(), uuid.NewString()),
		builder: builder,
		outputs: make(map[ir.OutputKey]backends.Op),
		lowered: sets.Make[ir.Node](),
	}
	klog.V(1).Infof("lowering: created context %s", c.name)
	return c
}

// Name of the context: the builder name plus a unique suffix.
func (c *Context) Name() string { return c.name }

// Builder implements ir.LoweringContext.
func (c *Context) Builder() backends.Builder { return c.builder }

// NumLowered returns the number of nodes lowered so far.
func (c *Context) NumLowered() int { return len(c.lowered) }

// IsLowered returns whether the node was already lowered in this context.
func (c *Context) IsLowered(node ir.Node) bool {
	return c.lowered.Has(node)
}

// GetOutputOp implements ir.LoweringContext.
// It panics if the value's node was not lowered yet: this is a bug in the order of lowering.
func (c *Context) GetOutputOp(value ir.Value) backends.Op {
	op, found := c.outputs[value.Key()]
	if !found {
		exceptions.Panicf("lowering: operand %s requested before being lowered in context %s", value, c.name)
	}
	return op
}

// AssignOutputOp implements ir.LoweringContext.
func (c *Context) AssignOutputOp(key ir.OutputKey, op backends.Op) {
	c.outputs[key] = op
}

// LowerNode lowers one node, whose operands must have been lowered already.
// If the node was already lowered in this context, it returns its previously lowered ops.
func (c *Context) LowerNode(node ir.Node) ([]backends.Op, error) {
	if c.lowered.Has(node) {
		return c.nodeOps(node), nil
	}
	for ii, operand := range node.Operands() {
		if _, found := c.outputs[operand.Key()]; !found {
			return nil, errors.Errorf("lowering: operand #%d (%s) of node %s was not lowered", ii, operand, node.Op())
		}
	}
	ops, err := node.Lower(c)
	if err != nil {
		return nil, err
	}
	if len(ops) != node.NumOutputs() {
		return nil, errors.Errorf("lowering: node %s returned %d ops, but it has %d outputs",
			node.Op(), len(ops), node.NumOutputs())
	}
	for ii, op := range ops {
		c.outputs[ir.NewValue(node, ii).Key()] = op
	}
	c.lowered.Insert(node)
	if klog.V(2).Enabled() {
		klog.Infof("lowering: %s: lowered %s", c.name, node)
	}
	return ops, nil
}

func (c *Context) nodeOps(node ir.Node) []backends.Op {
	ops := make([]backends.Op, node.NumOutputs())
	for ii := range ops {
		ops[ii] = c.outputs[ir.NewValue(node, ii).Key()]
	}
	return ops
}

// Lower lowers the subgraphs of the given roots, each node after its operands, and returns the ops of the roots.
// Nodes already lowered by this context are not lowered again.
func (c *Context) Lower(roots ...ir.Value) ([]backends.Op, error) {
	// Iterative post-order traversal: a node is visited (pushed back) once to expand its operands and then
	// lowered when popped again.
	type frame struct {
		node     ir.Node
		expanded bool
	}
	var stack []frame
	for _, root := range roots {
		if !root.Ok() {
			return nil, errors.New("lowering: cannot lower an invalid (nil) value")
		}
		stack = append(stack, frame{node: root.Node})
	}
	inStack := sets.Make[ir.Node]()
	for len(stack) > 0 {
		var top frame
		top, stack = xslices.Pop(stack)
		if c.lowered.Has(top.node) {
			continue
		}
		if top.expanded {
			if _, err := c.LowerNode(top.node); err != nil {
				return nil, err
			}
			continue
		}
		if !inStack.InsertIfMissing(top.node) {
			// Already scheduled to be expanded deeper in the stack: it'll be lowered before anything that uses it.
			continue
		}
		stack = append(stack, frame{node: top.node, expanded: true})
		operands := top.node.Operands()
		for ii := len(operands) - 1; ii >= 0; ii-- {
			if !c.lowered.Has(operands[ii].Node) {
				stack = append(stack, frame{node: operands[ii].Node})
			}
		}
	}

	ops := make([]backends.Op, len(roots))
	for ii, root := range roots {
		ops[ii] = c.GetOutputOp(root)
	}
	klog.V(1).Infof("lowering: %s: lowered %d nodes", c.name, c.NumLowered())
	return ops, nil
}
