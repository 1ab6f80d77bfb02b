// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/backends/shapeinference"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/pkg/support/xslices"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// AllReduce reduces its operands across the replicas of each replica group (a cross-replica sum, when the
// reduction is backends.ReduceOpSum), and multiplies the result by scale.
//
// It comes in two flavors:
//
//   - Without token (NewAllReduce): one operand, one output with the operand's shape.
//   - With token (NewAllReduceWithToken): N operands followed by an ordering token. The outputs are the N reduced
//     values followed by a new token, so it can be sequenced with other side-effecting operations.
type AllReduce struct {
	*ir.BaseNode

	reduceType backends.ReduceOpType
	scale      float64
	groups     [][]int
	pinLayout  bool
	hasToken   bool
}

var _ ir.Node = (*AllReduce)(nil)

// NewAllReduce creates an AllReduce of a single operand, without an ordering token.
//
// An empty groups means all replicas form one group. Groups are passed through as given:
// the backend validates them when the node is lowered.
func NewAllReduce(reduceType backends.ReduceOpType, operand ir.Value, scale float64, groups [][]int) *AllReduce {
	groups = cloneGroups(groups)
	n := &AllReduce{
		reduceType: reduceType,
		scale:      scale,
		groups:     groups,
	}
	n.BaseNode = ir.NewNodeLazy(OpCrossReplicaSum, []ir.Value{operand},
		func() (shapes.Shape, error) {
			outputs, err := shapeinference.AllReduceOperands([]shapes.Shape{ir.GetShape(operand)}, reduceType)
			if err != nil {
				return shapes.Invalid(), err
			}
			return outputs[0], nil
		},
		1, ir.MHash(reduceType, scale, groups))
	return n
}

// NewAllReduceWithToken creates an AllReduce of the operands, ordered by token.
//
// The node has len(operands)+1 outputs: the reduced operands, in order, and the new token, which
// has the same shape as token. Any value can be used as the ordering token.
// If pinLayout is true, the backend is not allowed to change the layout of the operands.
func NewAllReduceWithToken(reduceType backends.ReduceOpType, operands []ir.Value, token ir.Value, scale float64,
	groups [][]int, pinLayout bool) *AllReduce {
	if len(operands) == 0 {
		exceptions.Panicf("AllReduce with token requires at least one operand")
	}
	groups = cloneGroups(groups)
	n := &AllReduce{
		reduceType: reduceType,
		scale:      scale,
		groups:     groups,
		pinLayout:  pinLayout,
		hasToken:   true,
	}
	operands = slices.Clone(operands)
	n.BaseNode = ir.NewNodeLazy(OpCrossReplicaSum, operandsWithToken(operands, token),
		func() (shapes.Shape, error) {
			operandShapes := xslices.Map(operands, ir.GetShape)
			outputs, err := shapeinference.AllReduceOperands(operandShapes, reduceType)
			if err != nil {
				return shapes.Invalid(), err
			}
			// The last output carries the token's shape, whatever it is.
			return shapes.MakeTuple(append(outputs, ir.GetShape(token).Clone())), nil
		},
		len(operands)+1, ir.MHash(reduceType, scale, groups, pinLayout))
	return n
}

// operandsWithToken returns the list of operands with the token appended as the last one.
func operandsWithToken(operands []ir.Value, token ir.Value) []ir.Value {
	all := make([]ir.Value, 0, len(operands)+1)
	all = append(all, operands...)
	return append(all, token)
}

func cloneGroups(groups [][]int) [][]int {
	if groups == nil {
		return nil
	}
	cloned := make([][]int, len(groups))
	for ii, group := range groups {
		cloned[ii] = slices.Clone(group)
	}
	return cloned
}

// ReduceType returns the reduction operation.
func (n *AllReduce) ReduceType() backends.ReduceOpType { return n.reduceType }

// Scale applied to the reduced values.
func (n *AllReduce) Scale() float64 { return n.scale }

// Groups returns a copy of the replica groups.
func (n *AllReduce) Groups() [][]int { return cloneGroups(n.groups) }

// PinLayout returns whether the layout of the operands must be preserved.
func (n *AllReduce) PinLayout() bool { return n.pinLayout }

// HasToken returns whether the node is ordered by a token, in which case the token is its last operand
// and its last output.
func (n *AllReduce) HasToken() bool { return n.hasToken }

// Clone creates a new AllReduce with the same parameters and the given operands.
// If the node was created with a token, the last operand is taken as the new token.
func (n *AllReduce) Clone(operands []ir.Value) ir.Node {
	if len(operands) != len(n.Operands()) {
		exceptions.Panicf("AllReduce.Clone() requires %d operands, got %d", len(n.Operands()), len(operands))
	}
	if !n.hasToken {
		return NewAllReduce(n.reduceType, operands[0], n.scale, n.groups)
	}
	last := len(operands) - 1
	return NewAllReduceWithToken(n.reduceType, operands[:last], operands[last], n.scale, n.groups, n.pinLayout)
}

// Lower emits the backend all-reduce (followed by the scaling, if scale != 1).
// With a token, it returns the reduced values followed by the new token.
func (n *AllReduce) Lower(ctx ir.LoweringContext) ([]backends.Op, error) {
	if !n.hasToken {
		result, err := BuildAllReduce(ctx.Builder(), n.reduceType, ctx.GetOutputOp(n.Operand(0)), n.scale, n.groups)
		if err != nil {
			return nil, errors.WithMessagef(err, "lowering %s", n.Op())
		}
		return n.ReturnOp(result, ctx), nil
	}

	operands := n.Operands()
	last := len(operands) - 1
	inputs := make([]backends.Op, 0, last)
	for _, operand := range operands[:last] {
		inputs = append(inputs, ctx.GetOutputOp(operand))
	}
	token := ctx.GetOutputOp(operands[last])
	results, err := BuildAllReduceWithToken(ctx.Builder(), n.reduceType, inputs, token, n.scale, n.groups, n.pinLayout)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", n.Op())
	}
	return n.ReturnOps(results, ctx), nil
}

// String appends the reduction parameters to the base description, e.g.:
// ", reduce_type=Sum, scale=1, pin_layout=1, groups=((0, 1),(2, 3))".
func (n *AllReduce) String() string {
	var sb strings.Builder
	sb.WriteString(n.BaseNode.String())
	pinLayout := 0
	if n.pinLayout {
		pinLayout = 1
	}
	_, _ = fmt.Fprintf(&sb, ", reduce_type=%s, scale=%s, pin_layout=%d, groups=(",
		n.reduceType, strconv.FormatFloat(n.scale, 'g', -1, 64), pinLayout)
	for ii, group := range n.groups {
		if ii == 0 {
			sb.WriteString("(")
		} else {
			sb.WriteString(",(")
		}
		for jj, replica := range group {
			if jj > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Itoa(replica))
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}
