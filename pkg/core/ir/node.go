// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/protos/xla_data"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/support/sets"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Node is a node of the IR graph.
//
// Concrete operations embed *BaseNode, which implements everything but Clone and Lower (its versions of those
// fail), and usually String, to which they append their parameters.
type Node interface {
	// Op returns the kind of operation of the node.
	Op() OpKind

	// Operands of the node, in order. The returned slice must not be modified.
	Operands() []Value

	// Operand returns the i-th operand.
	Operand(i int) Value

	// NumOutputs is the number of outputs of the node, at least 1.
	NumOutputs() int

	// XlaShape returns the output shape: a tuple if the node has more than one output.
	// If the node shape is computed lazily, the first call computes it, and it panics if that fails.
	XlaShape() shapes.Shape

	// XlaShapeAt returns the shape of the given output. For single output nodes index must be 0.
	XlaShapeAt(index int) shapes.Shape

	// ShapeOrError is like XlaShape, but returns an error if the lazy computation of the shape failed.
	ShapeOrError() (shapes.Shape, error)

	// Shapes returns the shape of each output.
	Shapes() []shapes.Shape

	// NodeHash is the hash of the operation, its output shape and its parameters, it doesn't depend on the operands.
	NodeHash() Hash

	// DagHash is NodeHash combined with the hash of each operand (in order), hence the hash of the whole subgraph.
	DagHash() Hash

	// ShardingHash is the hash of the sharding annotations, or 0 if there are none.
	ShardingHash() Hash

	// Hash is DagHash if there are no sharding annotations, or DagHash combined with ShardingHash otherwise.
	Hash() Hash

	// Sharding returns the sharding annotation of the given output, or nil if not set.
	Sharding(index int) *xla_data.OpSharding

	// SetSharding attaches a sharding annotation to the given output. The annotation is copied.
	SetSharding(sharding *xla_data.OpSharding, index int)

	// ClearSharding removes all sharding annotations.
	ClearSharding()

	// MarkDynamicDimension marks the dimension as dynamic: its size is only known at runtime.
	MarkDynamicDimension(dim uint32)

	// DynamicDims returns a copy of the set of dimensions marked as dynamic.
	DynamicDims() sets.Set[uint32]

	// UserMetadata returns the user metadata attached to the node, or nil.
	UserMetadata() UserMetadata

	// SetUserMetadata attaches metadata to the node, and returns the previous one.
	SetUserMetadata(meta UserMetadata) UserMetadata

	// SetUserMetadataForSubGraph sets the metadata for the node and for every node of its subgraph
	// that doesn't have metadata yet. It returns the previous metadata of the node.
	SetUserMetadataForSubGraph(meta UserMetadata) UserMetadata

	// Clone returns a new node of the same kind and parameters, using the given operands.
	Clone(operands []Value) Node

	// Lower emits the backend ops for the node, registers them in the context (see ReturnOp and ReturnOps)
	// and returns them, one per output.
	Lower(ctx LoweringContext) ([]backends.Op, error)

	// String returns a human-readable description of the node, for debugging.
	String() string

	baseNode() *BaseNode
}

// ShapeFn computes the shape of a node lazily.
type ShapeFn func() (shapes.Shape, error)

// ShapesFn computes the shape of each output of a node lazily.
type ShapesFn func() ([]shapes.Shape, error)

// BaseNode implements the common part of all nodes. It is meant to be embedded by concrete operations.
//
// The identity of a node (operation, operands, number of outputs and seed) is immutable. Only the sharding
// annotations, dynamic dimensions and user metadata can be changed after creation, and those must not be
// changed concurrently with other uses of the node.
type BaseNode struct {
	op         OpKind
	operands   []Value
	numOutputs int
	seed       Hash

	xlaShape func() (shapes.Shape, error)
	shapesFn func() ([]shapes.Shape, error)
	nodeHash func() Hash
	dagHash  func() Hash

	shardingHash    Hash
	outputShardings []*xla_data.OpSharding
	dynamicDims     sets.Set[uint32]
	userMetadata    UserMetadata
}

var _ Node = (*BaseNode)(nil)

// NewNode creates a node whose output shape is known.
// numOutputs must be 1, or the shape must be a tuple with numOutputs elements.
func NewNode(op OpKind, operands []Value, xlaShape shapes.Shape, numOutputs int, seed Hash) *BaseNode {
	return newNode(op, operands, nil, func() (shapes.Shape, error) { return xlaShape, nil }, numOutputs, seed, false)
}

// NewNodeWithShapes is like NewNode, but it also takes the shape of each output.
func NewNodeWithShapes(op OpKind, operands []Value, outputShapes []shapes.Shape, xlaShape shapes.Shape,
	numOutputs int, seed Hash) *BaseNode {
	outputShapes = slices.Clone(outputShapes)
	return newNode(op, operands,
		func() ([]shapes.Shape, error) { return outputShapes, nil },
		func() (shapes.Shape, error) { return xlaShape, nil },
		numOutputs, seed, false)
}

// NewNodeLazy creates a node whose output shape is computed by shapeFn only when first needed.
// shapeFn is called at most once, and not at all if the shape is found in the shape cache.
func NewNodeLazy(op OpKind, operands []Value, shapeFn ShapeFn, numOutputs int, seed Hash) *BaseNode {
	return newNode(op, operands, nil, shapeFn, numOutputs, seed, true)
}

// NewNodeWithShapesLazy is like NewNodeLazy, but it also takes a function to compute the shape of each output.
func NewNodeWithShapesLazy(op OpKind, operands []Value, shapesFn ShapesFn, shapeFn ShapeFn,
	numOutputs int, seed Hash) *BaseNode {
	return newNode(op, operands, shapesFn, shapeFn, numOutputs, seed, true)
}

// NewLeafNode creates a node without operands, e.g. a constant or a parameter.
func NewLeafNode(op OpKind, xlaShape shapes.Shape, numOutputs int, seed Hash) *BaseNode {
	return NewNode(op, nil, xlaShape, numOutputs, seed)
}

// NewLeafNodeWithShapes is like NewLeafNode, but it also takes the shape of each output.
func NewLeafNodeWithShapes(op OpKind, outputShapes []shapes.Shape, xlaShape shapes.Shape, numOutputs int,
	seed Hash) *BaseNode {
	return NewNodeWithShapes(op, nil, outputShapes, xlaShape, numOutputs, seed)
}

func newNode(op OpKind, operands []Value, shapesFn ShapesFn, shapeFn ShapeFn, numOutputs int, seed Hash,
	lazy bool) *BaseNode {
	if !op.IsValid() {
		exceptions.Panicf("ir: cannot create a node with an invalid OpKind")
	}
	if numOutputs < 1 {
		exceptions.Panicf("ir: node %s must have at least one output, got numOutputs=%d", op, numOutputs)
	}
	for ii, operand := range operands {
		if !operand.Ok() {
			exceptions.Panicf("ir: operand #%d of node %s is nil", ii, op)
		}
		if operand.Index < 0 || operand.Index >= operand.Node.NumOutputs() {
			exceptions.Panicf("ir: operand #%d of node %s refers to output %d of %s, which has %d outputs",
				ii, op, operand.Index, operand.Node.Op(), operand.Node.NumOutputs())
		}
	}
	n := &BaseNode{
		op:         op,
		operands:   slices.Clone(operands),
		numOutputs: numOutputs,
		seed:       seed,
	}
	if lazy {
		n.xlaShape = sync.OnceValues(func() (shapes.Shape, error) { return n.resolveShape(shapeFn) })
	} else {
		shape, err := shapeFn()
		if err == nil {
			err = n.checkShape(shape)
		}
		if err != nil {
			panic(err)
		}
		n.xlaShape = func() (shapes.Shape, error) { return shape, nil }
	}
	if shapesFn == nil {
		shapesFn = n.shapesFromXlaShape
	}
	n.shapesFn = sync.OnceValues(shapesFn)
	n.nodeHash = sync.OnceValue(func() Hash {
		return HashCombine(n.op.Hash(), Hash(n.XlaShape().Hash()), n.seed)
	})
	n.dagHash = sync.OnceValue(func() Hash {
		h := n.NodeHash()
		for _, operand := range n.operands {
			h = HashCombine(h, operand.Hash())
		}
		return h
	})
	return n
}

// checkShape verifies the shape matches the number of outputs.
func (n *BaseNode) checkShape(shape shapes.Shape) error {
	if !shape.Ok() {
		return errors.Errorf("ir: node %s has an invalid shape", n.op)
	}
	if n.numOutputs > 1 && shape.TupleSize() != n.numOutputs {
		return errors.Errorf("ir: node %s has %d outputs, but its shape %s is not a tuple of that size",
			n.op, n.numOutputs, shape)
	}
	return nil
}

// resolveShape computes the lazy shape, going through the shape cache.
func (n *BaseNode) resolveShape(shapeFn ShapeFn) (shapes.Shape, error) {
	cache := currentShapeCache()
	var key Hash
	if cache != nil {
		key = n.shapeCacheKey()
		if shape, found := cache.Get(key); found {
			if klog.V(2).Enabled() {
				klog.Infof("ir: shape cache hit for %s: %s", n.op, shape)
			}
			return shape, nil
		}
	}
	shape, err := shapeFn()
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "ir: failed to compute shape of node %s", n.op)
	}
	if err = n.checkShape(shape); err != nil {
		return shapes.Invalid(), err
	}
	if cache != nil {
		cache.Add(key, shape.Clone())
	}
	return shape, nil
}

// shapeCacheKey identifies the shape of a node without knowing it: the operation, the seed and the operands.
func (n *BaseNode) shapeCacheKey() Hash {
	h := HashCombine(n.op.Hash(), n.seed, Hash(n.numOutputs))
	for _, operand := range n.operands {
		h = HashCombine(h, operand.Hash())
	}
	return h
}

func (n *BaseNode) shapesFromXlaShape() ([]shapes.Shape, error) {
	shape, err := n.ShapeOrError()
	if err != nil {
		return nil, err
	}
	if n.numOutputs > 1 {
		return slices.Clone(shape.TupleShapes), nil
	}
	return []shapes.Shape{shape}, nil
}

func (n *BaseNode) baseNode() *BaseNode { return n }

// Op returns the kind of operation of the node.
func (n *BaseNode) Op() OpKind { return n.op }

// Operands of the node, in order. The returned slice must not be modified.
func (n *BaseNode) Operands() []Value { return n.operands }

// Operand returns the i-th operand.
func (n *BaseNode) Operand(i int) Value { return n.operands[i] }

// NumOutputs is the number of outputs of the node.
func (n *BaseNode) NumOutputs() int { return n.numOutputs }

// Seed returns the hash seed the node was created with.
func (n *BaseNode) Seed() Hash { return n.seed }

// XlaShape returns the output shape, a tuple if the node has more than one output.
// It panics if the lazy computation of the shape failed, see ShapeOrError.
func (n *BaseNode) XlaShape() shapes.Shape {
	shape, err := n.xlaShape()
	if err != nil {
		panic(err)
	}
	return shape
}

// ShapeOrError returns the output shape, or the error from computing it lazily.
func (n *BaseNode) ShapeOrError() (shapes.Shape, error) {
	return n.xlaShape()
}

// XlaShapeAt returns the shape of the given output. For single output nodes index must be 0.
func (n *BaseNode) XlaShapeAt(index int) shapes.Shape {
	shape := n.XlaShape()
	if n.numOutputs == 1 {
		if index != 0 {
			exceptions.Panicf("ir: node %s has only one output, cannot take shape of output %d", n.op, index)
		}
		return shape
	}
	if index < 0 || index >= n.numOutputs {
		exceptions.Panicf("ir: node %s has %d outputs, cannot take shape of output %d", n.op, n.numOutputs, index)
	}
	return shape.TupleShapes[index]
}

// Shapes returns the shape of each output.
func (n *BaseNode) Shapes() []shapes.Shape {
	outputShapes, err := n.shapesFn()
	if err != nil {
		panic(err)
	}
	return outputShapes
}

// NodeHash is the hash of the operation, its output shape and seed.
func (n *BaseNode) NodeHash() Hash { return n.nodeHash() }

// DagHash is NodeHash combined with the hash of each operand, in order.
func (n *BaseNode) DagHash() Hash { return n.dagHash() }

// ShardingHash is the hash of the sharding annotations, or 0 if there are none.
func (n *BaseNode) ShardingHash() Hash { return n.shardingHash }

// Hash is DagHash, combined with ShardingHash if the node has sharding annotations.
func (n *BaseNode) Hash() Hash {
	if n.shardingHash == 0 {
		return n.DagHash()
	}
	return HashCombine(n.DagHash(), n.shardingHash)
}

// MarkDynamicDimension marks the dimension as dynamic. Marking a dimension more than once has no effect.
func (n *BaseNode) MarkDynamicDimension(dim uint32) {
	if n.dynamicDims == nil {
		n.dynamicDims = sets.Make[uint32]()
	}
	n.dynamicDims.Insert(dim)
}

// DynamicDims returns a copy of the set of dimensions marked as dynamic.
func (n *BaseNode) DynamicDims() sets.Set[uint32] {
	if n.dynamicDims == nil {
		return sets.Make[uint32]()
	}
	return n.dynamicDims.Clone()
}

// Clone is not supported by the base node: concrete operations implement it.
func (n *BaseNode) Clone(operands []Value) Node {
	exceptions.Panicf("ir: cloning not implemented for node %s", n.op)
	return nil
}

// Lower is not supported by the base node: concrete operations implement it.
func (n *BaseNode) Lower(ctx LoweringContext) ([]backends.Op, error) {
	return nil, errors.Wrapf(backends.ErrNotImplemented, "ir: lowering not implemented for node %s", n.op)
}

// String returns a description of the node: shape, operation, and number of outputs, dynamic dimensions and
// metadata, if set.
//
// Concrete nodes append their parameters to it.
func (n *BaseNode) String() string {
	var sb strings.Builder
	if shape, err := n.ShapeOrError(); err != nil {
		sb.WriteString("<invalid shape>")
	} else {
		sb.WriteString(shape.String())
	}
	sb.WriteString(" ")
	sb.WriteString(n.op.String())
	if n.numOutputs > 1 {
		_, _ = fmt.Fprintf(&sb, ", num_outputs=%d", n.numOutputs)
	}
	if len(n.dynamicDims) > 0 {
		dims := slices.Sorted(n.dynamicDims.Items())
		parts := make([]string, len(dims))
		for ii, dim := range dims {
			parts[ii] = fmt.Sprint(dim)
		}
		_, _ = fmt.Fprintf(&sb, ", dynamic_dims=(%s)", strings.Join(parts, ", "))
	}
	if n.userMetadata != nil {
		_, _ = fmt.Fprintf(&sb, ", metadata={%s}", n.userMetadata)
	}
	return sb.String()
}
