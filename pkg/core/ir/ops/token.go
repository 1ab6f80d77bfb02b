// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// Token is a leaf node that creates a new ordering token.
type Token struct {
	*ir.BaseNode
}

var _ ir.Node = (*Token)(nil)

// NewToken creates a new ordering token.
func NewToken() *Token {
	return &Token{BaseNode: ir.NewLeafNode(OpCreateToken, shapes.MakeToken(), 1, ir.DefaultHashSeed)}
}

// Clone returns a new Token.
func (n *Token) Clone(operands []ir.Value) ir.Node {
	if len(operands) != 0 {
		exceptions.Panicf("Token.Clone() takes no operands, got %d", len(operands))
	}
	return NewToken()
}

// Lower emits the backend token creation.
func (n *Token) Lower(ctx ir.LoweringContext) ([]backends.Op, error) {
	op, err := ctx.Builder().CreateToken()
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", n.Op())
	}
	return n.ReturnOp(op, ctx), nil
}
