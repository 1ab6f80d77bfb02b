// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// CollectiveOps is an interface for collective operations, that is, operations executed across multiple devices.
type CollectiveOps interface {
	// AllReduce is a distributed (multi-device) operation that reduces the operands across replica groups.
	//
	// - operands: list of operands to be reduced -- often this operation is called over all the parameters
	//   of a model, hence the option to pass a variable number of parameters to them.
	// - reductionType: how the operands should be reduced.
	// - replicaGroups: a collection of replica groups: each replica group ([]int) is a collection of devices that
	//   will participate in the distributed operation. The devices are given as indices (hence []int) into the
	//   device assignments (not absolute DeviceNum). An empty list means all replicas form one group.
	//
	// It returns one output per operand, with the same shape as the operand.
	AllReduce(operands []Op, reductionType ReduceOpType, replicaGroups [][]int) ([]Op, error)

	// AllReduceWithToken is like AllReduce, but it is ordered by the given token.
	//
	// It returns len(operands)+1 outputs: the reduced operands, in order, followed by the new token.
	// If pinLayout is set, the backend must not change the layout of the operands.
	AllReduceWithToken(operands []Op, token Op, reductionType ReduceOpType, replicaGroups [][]int,
		pinLayout bool) ([]Op, error)
}
