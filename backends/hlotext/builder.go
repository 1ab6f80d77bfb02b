// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlotext

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/backends/notimplemented"
	"github.com/gomlx/lazyxla/backends/shapeinference"
	"github.com/gomlx/lazyxla/pkg/support/xslices"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// Builder records the operations of a computation, to be rendered by Program.
type Builder struct {
	notimplemented.Builder

	name    string
	backend *Backend

	// nodes are only created when their inputs have already been created, so they are in DAG order.
	nodes []*Node

	// inputs are the parameters, in order of creation.
	inputs []*Value
}

var _ backends.Builder = (*Builder)(nil)

// Node is one line of the program. Nodes with more than one result are referred to by their Values.
type Node struct {
	id      int
	opType  backends.OpType
	name    string // e.g.: "stablehlo.add"
	inputs  []*Value
	attrs   string
	outputs []*Value
}

// Value is the backends.Op handle returned by the Builder: one result of a Node, or a parameter.
type Value struct {
	builder *Builder
	node    *Node // nil for parameters.
	index   int   // Result index in node, or parameter index.
	name    string
	shape   shapes.Shape
}

// Shape of the value.
func (v *Value) Shape() shapes.Shape { return v.shape }

// Ref is how the value is referenced in the program text, e.g. "%3", "%4#1" or "%arg0".
func (v *Value) Ref() string {
	if v.node == nil {
		return fmt.Sprintf("%%arg%d", v.index)
	}
	if len(v.node.outputs) > 1 {
		return fmt.Sprintf("%%%d#%d", v.node.id, v.index)
	}
	return fmt.Sprintf("%%%d", v.node.id)
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	return fmt.Sprintf("%s: %s", v.Ref(), TypeString(v.shape))
}

// Name implements backends.Builder.
func (b *Builder) Name() string { return b.name }

// NumNodes returns the number of operations (not counting parameters) built so far.
func (b *Builder) NumNodes() int { return len(b.nodes) }

// OpTypes returns the type of each operation built so far, in order.
func (b *Builder) OpTypes() []backends.OpType {
	opTypes := make([]backends.OpType, len(b.nodes))
	for ii, node := range b.nodes {
		opTypes[ii] = node.opType
	}
	return opTypes
}

// checkOps validates that the ops were created by this builder.
func (b *Builder) checkOps(opType backends.OpType, ops ...backends.Op) ([]*Value, error) {
	if b == nil {
		return nil, errors.Errorf("%s: Builder is nil (!?), cannot build a graph", opType)
	}
	values := make([]*Value, len(ops))
	for idx, op := range ops {
		if op == nil {
			return nil, errors.Errorf("%s: input op #%d is nil", opType, idx)
		}
		value, ok := op.(*Value)
		if !ok {
			return nil, errors.Errorf("%s: input op #%d (%T) was not created by backend %q", opType, idx, op, BackendName)
		}
		if value.builder != b {
			return nil, errors.Errorf("%s: input op #%d was created by builder %q, not by %q",
				opType, idx, value.builder.name, b.name)
		}
		values[idx] = value
	}
	return values, nil
}

// newNode adds a node with one result per output shape.
func (b *Builder) newNode(opType backends.OpType, name, attrs string, outputShapes []shapes.Shape, inputs ...*Value) *Node {
	node := &Node{
		id:     len(b.nodes),
		opType: opType,
		name:   name,
		inputs: slices.Clone(inputs),
		attrs:  attrs,
	}
	node.outputs = make([]*Value, len(outputShapes))
	for ii, shape := range outputShapes {
		node.outputs[ii] = &Value{builder: b, node: node, index: ii, shape: shape}
	}
	b.nodes = append(b.nodes, node)
	return node
}

// OpShape implements backends.Builder.
func (b *Builder) OpShape(op backends.Op) (shapes.Shape, error) {
	values, err := b.checkOps(backends.OpTypeInvalid, op)
	if err != nil {
		return shapes.Invalid(), err
	}
	return values[0].shape, nil
}

// Parameter implements backends.Builder.
func (b *Builder) Parameter(name string, shape shapes.Shape) (backends.Op, error) {
	if !shape.Ok() || shape.IsTuple() {
		return nil, errors.Errorf("Parameter(%q): invalid shape %s", name, shape)
	}
	value := &Value{builder: b, index: len(b.inputs), name: name, shape: shape}
	b.inputs = append(b.inputs, value)
	return value, nil
}

// Constant implements backends.Builder.
func (b *Builder) Constant(flat any, dims ...int) (backends.Op, error) {
	shape, text, err := denseLiteral(flat, dims)
	if err != nil {
		return nil, errors.WithMessagef(err, "Constant()")
	}
	node := b.newNode(backends.OpTypeConstant, "stablehlo.constant", text, []shapes.Shape{shape})
	return node.outputs[0], nil
}

// CreateToken implements backends.Builder.
func (b *Builder) CreateToken() (backends.Op, error) {
	node := b.newNode(backends.OpTypeCreateToken, "stablehlo.create_token", "", []shapes.Shape{shapes.MakeToken()})
	return node.outputs[0], nil
}

// Add implements backends.Builder.
func (b *Builder) Add(lhs, rhs backends.Op) (backends.Op, error) {
	return b.binaryOp(backends.OpTypeAdd, "stablehlo.add", lhs, rhs)
}

// Mul implements backends.Builder.
func (b *Builder) Mul(lhs, rhs backends.Op) (backends.Op, error) {
	return b.binaryOp(backends.OpTypeMul, "stablehlo.multiply", lhs, rhs)
}

func (b *Builder) binaryOp(opType backends.OpType, name string, lhs, rhs backends.Op) (backends.Op, error) {
	values, err := b.checkOps(opType, lhs, rhs)
	if err != nil {
		return nil, err
	}
	output, err := shapeinference.BinaryOp(opType, values[0].shape, values[1].shape)
	if err != nil {
		return nil, err
	}
	// Operands of StableHLO element-wise ops must have the output shape: implicit broadcasts are made explicit.
	for ii, value := range values {
		if !value.shape.Equal(output) {
			values[ii] = b.broadcastInDim(value, output)
		}
	}
	node := b.newNode(opType, name, "", []shapes.Shape{output}, values...)
	return node.outputs[0], nil
}

// broadcastInDim broadcasts value (a scalar, or an array of the same rank) to the output shape.
func (b *Builder) broadcastInDim(value *Value, output shapes.Shape) *Value {
	dims := make([]string, 0, output.Rank())
	if !value.shape.IsScalar() {
		for axis := range output.Rank() {
			dims = append(dims, fmt.Sprint(axis))
		}
	}
	node := b.newNode(backends.OpTypeInvalid, "stablehlo.broadcast_in_dim",
		fmt.Sprintf("dims = [%s]", strings.Join(dims, ", ")),
		[]shapes.Shape{output.Clone()}, value)
	return node.outputs[0]
}

// AllReduce implements backends.CollectiveOps.
func (b *Builder) AllReduce(operands []backends.Op, reductionType backends.ReduceOpType,
	replicaGroups [][]int) ([]backends.Op, error) {
	values, err := b.checkOps(backends.OpTypeAllReduce, operands...)
	if err != nil {
		return nil, err
	}
	outputShapes, err := shapeinference.AllReduceOp(valuesShapes(values), reductionType, replicaGroups)
	if err != nil {
		return nil, err
	}
	attrs, err := allReduceAttrs(reductionType, replicaGroups)
	if err != nil {
		return nil, err
	}
	node := b.newNode(backends.OpTypeAllReduce, "stablehlo.all_reduce", attrs, outputShapes, values...)
	return nodeOutputs(node), nil
}

// AllReduceWithToken implements backends.CollectiveOps.
func (b *Builder) AllReduceWithToken(operands []backends.Op, token backends.Op, reductionType backends.ReduceOpType,
	replicaGroups [][]int, pinLayout bool) ([]backends.Op, error) {
	values, err := b.checkOps(backends.OpTypeAllReduce, append(slices.Clone(operands), token)...)
	if err != nil {
		return nil, err
	}
	last := len(values) - 1
	outputShapes, err := shapeinference.AllReduceWithTokenOp(valuesShapes(values[:last]), xslices.Last(values).shape,
		reductionType, replicaGroups)
	if err != nil {
		return nil, err
	}
	attrs, err := allReduceAttrs(reductionType, replicaGroups)
	if err != nil {
		return nil, err
	}
	attrs = fmt.Sprintf("%s, pin_layout = %t", attrs, pinLayout)
	node := b.newNode(backends.OpTypeAllReduce, "stablehlo.all_reduce", attrs, outputShapes, values...)
	return nodeOutputs(node), nil
}

func valuesShapes(values []*Value) []shapes.Shape {
	return xslices.Map(values, func(value *Value) shapes.Shape { return value.shape })
}

func nodeOutputs(node *Node) []backends.Op {
	return xslices.Map(node.outputs, func(output *Value) backends.Op { return output })
}

// reductionComputations maps the reduction types to the StableHLO op used as the reduction computation.
var reductionComputations = map[backends.ReduceOpType]string{
	backends.ReduceOpSum:        "stablehlo.add",
	backends.ReduceOpProduct:    "stablehlo.multiply",
	backends.ReduceOpMax:        "stablehlo.maximum",
	backends.ReduceOpMin:        "stablehlo.minimum",
	backends.ReduceOpLogicalAnd: "stablehlo.and",
	backends.ReduceOpLogicalOr:  "stablehlo.or",
}

func allReduceAttrs(reductionType backends.ReduceOpType, replicaGroups [][]int) (string, error) {
	computation, found := reductionComputations[reductionType]
	if !found {
		return "", errors.Errorf("AllReduce: reduction type %s not supported by backend %q", reductionType, BackendName)
	}
	groups, err := replicaGroupsLiteral(replicaGroups)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("computation = %s, replica_groups = %s", computation, groups), nil
}

// replicaGroupsLiteral renders the groups as a rank-2 dense literal: StableHLO requires all groups to have
// the same size.
func replicaGroupsLiteral(replicaGroups [][]int) (string, error) {
	if len(replicaGroups) == 0 {
		return "dense<> : tensor<0x0xi64>", nil
	}
	groupSize := len(replicaGroups[0])
	parts := make([]string, len(replicaGroups))
	for ii, group := range replicaGroups {
		if len(group) != groupSize {
			return "", errors.Errorf("AllReduce: backend %q requires replica groups of the same size, got %v",
				BackendName, replicaGroups)
		}
		replicas := make([]string, len(group))
		for jj, replica := range group {
			replicas[jj] = fmt.Sprint(replica)
		}
		parts[ii] = "[" + strings.Join(replicas, ", ") + "]"
	}
	return fmt.Sprintf("dense<[%s]> : tensor<%dx%dxi64>", strings.Join(parts, ", "), len(replicaGroups), groupSize), nil
}

// Program renders the computation returning the given outputs.
func (b *Builder) Program(outputs ...backends.Op) (string, error) {
	values, err := b.checkOps(backends.OpTypeInvalid, outputs...)
	if err != nil {
		return "", errors.WithMessagef(err, "Program(%q)", b.name)
	}
	var sb strings.Builder
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(&sb, format, args...) }

	w("module @%s {\n", moduleName(b.name))
	w("  func.func @main(")
	for ii, input := range b.inputs {
		if ii > 0 {
			w(", ")
		}
		w("%s {lazyxla.name = %q}", input, input.name)
	}
	w(") -> (%s) {\n", typesList(values))
	for _, node := range b.nodes {
		w("    %s\n", b.nodeText(node))
	}
	refs := xslices.Map(values, (*Value).Ref)
	w("    return %s : %s\n", strings.Join(refs, ", "), typesList(values))
	w("  }\n}\n")
	return sb.String(), nil
}

func (b *Builder) nodeText(node *Node) string {
	var sb strings.Builder
	if len(node.outputs) > 1 {
		_, _ = fmt.Fprintf(&sb, "%%%d:%d = ", node.id, len(node.outputs))
	} else {
		_, _ = fmt.Fprintf(&sb, "%%%d = ", node.id)
	}
	sb.WriteString(node.name)
	for ii, input := range node.inputs {
		if ii == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(input.Ref())
	}
	if node.attrs != "" {
		if node.opType == backends.OpTypeConstant {
			_, _ = fmt.Fprintf(&sb, " %s", node.attrs)
		} else {
			_, _ = fmt.Fprintf(&sb, " {%s}", node.attrs)
		}
	}
	if b.backend.withTypes {
		if len(node.inputs) > 0 && len(node.outputs) > 1 {
			_, _ = fmt.Fprintf(&sb, " : (%s) -> (%s)", typesList(node.inputs), typesList(node.outputs))
		} else {
			_, _ = fmt.Fprintf(&sb, " : %s", typesList(node.outputs))
		}
	}
	return sb.String()
}

func typesList(values []*Value) string {
	return strings.Join(xslices.Map(valuesShapes(values), TypeString), ", ")
}

// moduleName replaces characters not valid in a symbol name.
func moduleName(name string) string {
	if name == "" {
		return "computation"
	}
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '.' || r == '$' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
}
