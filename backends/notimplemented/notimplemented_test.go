// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package notimplemented

import (
	"testing"

	"github.com/gomlx/lazyxla/backends"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	builder := (&Backend{}).Builder("test")
	_, err := builder.Add(nil, nil)
	require.ErrorIs(t, err, NotImplementedError)
	require.Contains(t, err.Error(), "Add")

	_, err = builder.AllReduceWithToken(nil, nil, backends.ReduceOpSum, nil, false)
	require.ErrorIs(t, err, backends.ErrNotImplemented)

	custom := errors.New("custom")
	builder = Builder{ErrFn: func(op backends.OpType) error {
		return errors.Wrap(custom, op.String())
	}}
	_, err = builder.CreateToken()
	require.ErrorIs(t, err, custom)
	require.Contains(t, err.Error(), "CreateToken")
}
