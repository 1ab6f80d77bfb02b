// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestScalarFlat(t *testing.T) {
	for _, tc := range []struct {
		dtype dtypes.DType
		want  any
	}{
		{dtypes.Float32, []float32{0.5}},
		{dtypes.Float64, []float64{0.5}},
		{dtypes.Float16, []float16.Float16{float16.Fromfloat32(0.5)}},
		{dtypes.BFloat16, []bfloat16.BFloat16{bfloat16.FromFloat32(0.5)}},
		{dtypes.Complex64, []complex64{0.5}},
		{dtypes.Int32, []int32{0}},
	} {
		t.Run(tc.dtype.String(), func(t *testing.T) {
			flat, err := scalarFlat(tc.dtype, 0.5)
			require.NoError(t, err)
			require.Equal(t, tc.want, flat)
		})
	}
	flat, err := scalarFlat(dtypes.Int64, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, flat)

	_, err = scalarFlat(dtypes.Bool, 1)
	require.Error(t, err)
	_, err = scalarFlat(dtypes.InvalidDType, 1)
	require.Error(t, err)
}
