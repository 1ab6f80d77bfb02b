// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/protos/xla_data"
	"google.golang.org/protobuf/proto"
)

// Sharding returns the sharding annotation of the given output, or nil if it is not set.
func (n *BaseNode) Sharding(index int) *xla_data.OpSharding {
	if len(n.outputShardings) == 0 {
		return nil
	}
	n.checkOutputIndex(index)
	return n.outputShardings[index]
}

// SetSharding attaches a copy of the sharding annotation to the given output, and updates the node's
// ShardingHash (and hence its Hash).
func (n *BaseNode) SetSharding(sharding *xla_data.OpSharding, index int) {
	n.checkOutputIndex(index)
	if sharding == nil {
		exceptions.Panicf("ir: SetSharding(nil, %d) for node %s, use ClearSharding to remove annotations", index, n.op)
	}
	if len(n.outputShardings) == 0 {
		n.outputShardings = make([]*xla_data.OpSharding, n.numOutputs)
	}
	n.outputShardings[index] = proto.Clone(sharding).(*xla_data.OpSharding)
	n.updateShardingHash()
}

// ClearSharding removes all sharding annotations, and resets ShardingHash to 0.
func (n *BaseNode) ClearSharding() {
	n.outputShardings = nil
	n.shardingHash = 0
}

func (n *BaseNode) checkOutputIndex(index int) {
	if index < 0 || index >= n.numOutputs {
		exceptions.Panicf("ir: output index %d out of range for node %s with %d outputs", index, n.op, n.numOutputs)
	}
}

// updateShardingHash recomputes the sharding hash from NodeHash and every output slot, annotated or not:
// the output index is always part of the hash.
func (n *BaseNode) updateShardingHash() {
	h := n.NodeHash()
	for index, sharding := range n.outputShardings {
		h = HashCombine(h, Hash(index))
		if sharding == nil {
			continue
		}
		for _, dim := range sharding.GetTileAssignmentDimensions() {
			h = HashCombine(h, Hash(dim))
		}
		for _, device := range sharding.GetTileAssignmentDevices() {
			h = HashCombine(h, Hash(device))
		}
		for _, lastTileDim := range sharding.GetLastTileDims() {
			h = HashCombine(h, Hash(lastTileDim))
		}
		h = HashCombine(h, Hash(sharding.GetType()))
		var replicated Hash
		if sharding.GetReplicateOnLastTileDim() {
			replicated = 1
		}
		h = HashCombine(h, replicated)
	}
	n.shardingHash = h
}
