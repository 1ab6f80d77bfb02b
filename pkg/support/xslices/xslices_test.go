// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"flag"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	require.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	require.Empty(t, Map([]int(nil), strconv.Itoa))
}

func TestPopLast(t *testing.T) {
	stack := []int{1, 2, 3}
	require.Equal(t, 3, Last(stack))
	top, stack := Pop(stack)
	require.Equal(t, 3, top)
	require.Equal(t, []int{1, 2}, stack)

	var empty []int
	top, empty = Pop(empty)
	require.Zero(t, top)
	require.Empty(t, empty)
	require.Panics(t, func() { Last(empty) })
}

func TestFlag(t *testing.T) {
	flagSet := flag.NewFlagSet("test", flag.ContinueOnError)
	values := FlagSet(flagSet, "values", []int{7}, "list of ints", strconv.Atoi)
	require.Equal(t, []int{7}, *values)
	require.NoError(t, flagSet.Parse([]string{"-values=1,2,3"}))
	require.Equal(t, []int{1, 2, 3}, *values)
	require.Equal(t, "1,2,3", flagSet.Lookup("values").Value.String())

	require.Error(t, flagSet.Parse([]string{"-values=1,x"}))
	require.Equal(t, []int{1, 2, 3}, *values, "failed parsing keeps the previous value")

	require.NoError(t, flagSet.Parse([]string{"-values="}))
	require.Empty(t, *values)
}
