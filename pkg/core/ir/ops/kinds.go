// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops implements concrete IR nodes: the cross-replica AllReduce, and the leaf and element-wise nodes
// needed to build graphs around it.
//
// Each node embeds *ir.BaseNode and implements Clone, Lower and String.
package ops

import "github.com/gomlx/lazyxla/pkg/core/ir"

// Operation kinds of the nodes in this package.
var (
	OpCrossReplicaSum = ir.NewOpKind("xla", "cross_replica_sum")
	OpDeviceData      = ir.NewOpKind("xla", "device_data")
	OpCreateToken     = ir.NewOpKind("xla", "create_token")
	OpConstant        = ir.NewOpKind("prim", "Constant")
	OpAdd             = ir.NewOpKind("aten", "add")
	OpMul             = ir.NewOpKind("aten", "mul")
)
