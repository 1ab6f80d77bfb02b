// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/lazyxla/pkg/support/sets"
	"github.com/gomlx/lazyxla/pkg/support/xslices"
)

// UserMetadata is arbitrary information attached to a node by the user, used for diagnostics.
// It doesn't affect the node's identity (its hashes).
type UserMetadata interface {
	fmt.Stringer
}

// CustomOpNameMetadata is used to name the backend ops emitted for a node, when lowering it.
type CustomOpNameMetadata struct {
	// OpNamePrefix is prepended to the names of the ops.
	OpNamePrefix string

	// MaxStackDepth is the number of frames of the caller stack to include in the names.
	MaxStackDepth int
}

// String implements UserMetadata.
func (m *CustomOpNameMetadata) String() string {
	return fmt.Sprintf("op_name_prefix=%q, max_stack_depth=%d", m.OpNamePrefix, m.MaxStackDepth)
}

// UserMetadata returns the user metadata attached to the node, or nil.
func (n *BaseNode) UserMetadata() UserMetadata {
	return n.userMetadata
}

// SetUserMetadata attaches metadata to the node, and returns the previous one.
func (n *BaseNode) SetUserMetadata(meta UserMetadata) UserMetadata {
	previous := n.userMetadata
	n.userMetadata = meta
	return previous
}

// SetUserMetadataForSubGraph sets the metadata for this node, and for every node of the subgraph rooted at it
// that doesn't have metadata yet. The traversal stops at nodes that already have metadata.
//
// It returns the previous metadata of this node, so nested scopes can restore it.
func (n *BaseNode) SetUserMetadataForSubGraph(meta UserMetadata) UserMetadata {
	visited := sets.MakeWith(n)
	stack := []*BaseNode{n}
	for len(stack) > 0 {
		var node *BaseNode
		node, stack = xslices.Pop(stack)
		for _, operand := range node.operands {
			operandNode := operand.Node.baseNode()
			if operandNode.userMetadata != nil || !visited.InsertIfMissing(operandNode) {
				continue
			}
			operandNode.userMetadata = meta
			stack = append(stack, operandNode)
		}
	}
	return n.SetUserMetadata(meta)
}
