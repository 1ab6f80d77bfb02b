// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// DeviceData is a leaf node for data fed to the computation (already on device), lowered as a named parameter.
type DeviceData struct {
	*ir.BaseNode

	name string
}

var _ ir.Node = (*DeviceData)(nil)

// NewDeviceData creates a parameter with the given name and shape. The name is part of its identity.
func NewDeviceData(name string, shape shapes.Shape) *DeviceData {
	if shape.IsTuple() || shape.IsToken() {
		exceptions.Panicf("NewDeviceData(%q) requires an array shape, got %s", name, shape)
	}
	n := &DeviceData{name: name}
	n.BaseNode = ir.NewLeafNode(OpDeviceData, shape, 1, ir.MHash(name))
	return n
}

// Name of the parameter.
func (n *DeviceData) Name() string { return n.name }

// Clone returns a new DeviceData with the same name and shape.
func (n *DeviceData) Clone(operands []ir.Value) ir.Node {
	if len(operands) != 0 {
		exceptions.Panicf("DeviceData.Clone() takes no operands, got %d", len(operands))
	}
	return NewDeviceData(n.name, n.XlaShape())
}

// Lower emits a backend parameter.
func (n *DeviceData) Lower(ctx ir.LoweringContext) ([]backends.Op, error) {
	op, err := ctx.Builder().Parameter(n.name, n.XlaShape())
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s(%q)", n.Op(), n.name)
	}
	return n.ReturnOp(op, ctx), nil
}

// String appends the name of the parameter to the base description.
func (n *DeviceData) String() string {
	return fmt.Sprintf("%s, name=%q", n.BaseNode.String(), n.name)
}
