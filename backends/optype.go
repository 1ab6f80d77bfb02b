// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// OpType is an enum of all generic operations that can be supported by a Builder.
//
// It is used to identify operations in error messages and in the statements recorded by builders.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota
	OpTypeParameter
	OpTypeConstant
	OpTypeAdd
	OpTypeMul
	OpTypeCreateToken
	OpTypeAllReduce

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)
