// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"flag"
	"fmt"
	"strings"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Last returns the last element of a slice. It panics if the slice is empty.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// Pop last element of the slice, and returns slice with one less element.
// If slice is empty it returns the zero value for `T` and returns slice unchanged.
func Pop[T any](slice []T) (T, []T) {
	var value T
	if len(slice) > 0 {
		value = slice[len(slice)-1]
		slice = slice[:len(slice)-1]
	}
	return value, slice
}

// Flag creates a flag for []T with the given name, description and default value.
// It takes as input a parser for an individual T value, and the flag takes a comma-separated list.
func Flag[T any](name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	return FlagSet(flag.CommandLine, name, defaultValue, usage, parserFn)
}

// FlagSet is like Flag, but defines the flag in the given flag.FlagSet.
func FlagSet[T any](flagSet *flag.FlagSet, name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &genericSliceFlagImpl[T]{
		parsedSlice: defaultValue,
		parserFn:    parserFn,
	}
	flagSet.Var(f, name, usage)
	return &f.parsedSlice
}

// genericSliceFlagImpl implements flag.Value for a generic type.
type genericSliceFlagImpl[T any] struct {
	parsedSlice []T
	parserFn    func(valueStr string) (T, error)
}

func (f *genericSliceFlagImpl[T]) String() string {
	if f == nil || len(f.parsedSlice) == 0 {
		return ""
	}
	parts := Map(f.parsedSlice, func(elem T) string {
		if stringer, ok := any(elem).(fmt.Stringer); ok {
			return stringer.String()
		}
		return fmt.Sprintf("%v", elem)
	})
	return strings.Join(parts, ",")
}

func (f *genericSliceFlagImpl[T]) Set(listStr string) error {
	if listStr == "" {
		f.parsedSlice = make([]T, 0)
		return nil
	}
	parts := strings.Split(listStr, ",")
	parsed := make([]T, len(parts))
	for ii, part := range parts {
		var err error
		parsed[ii], err = f.parserFn(part)
		if err != nil {
			return err
		}
	}
	f.parsedSlice = parsed
	return nil
}
