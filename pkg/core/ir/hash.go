// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// Hash is a structural hash value of a node, a graph or any of its parameters.
type Hash uint64

// DefaultHashSeed is the seed used by nodes that have no operation specific parameters.
const DefaultHashSeed Hash = 0x5a2d296e9

// String implements fmt.Stringer, it prints the hash in hexadecimal.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// HashCombine returns a new hash combining all the given hashes.
// The order matters: HashCombine(a, b) != HashCombine(b, a).
func HashCombine(hashes ...Hash) Hash {
	d := xxhash.New()
	var buf [8]byte
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(buf[:], uint64(h))
		_, _ = d.Write(buf[:])
	}
	return Hash(d.Sum64())
}

// HashNumber returns the hash of a number, integer or float.
// Floats are hashed by their bit representation, so 0.0 and -0.0 hash differently.
func HashNumber[T constraints.Integer | constraints.Float](value T) Hash {
	return MHash(value)
}

// HashString returns the hash of a string.
func HashString(s string) Hash {
	return Hash(xxhash.Sum64String(s))
}

// MHash hashes all the given values, in order, into one Hash.
//
// It is used to build the seed of a node from its operation specific parameters. It accepts
// booleans, numbers (including enums based on integer types and complex numbers), strings, Hash values, values implementing
// `Hash() uint64` (like shapes.Shape), and slices (nested or not) of those.
// It panics for anything else.
func MHash(values ...any) Hash {
	d := xxhash.New()
	for _, value := range values {
		writeHashValue(d, reflect.ValueOf(value))
	}
	return Hash(d.Sum64())
}

type uint64Hasher interface {
	Hash() uint64
}

// Tags distinguishing kinds of values, so []int{} and "" don't collide.
const (
	tagNil byte = iota + 1
	tagBool
	tagInt
	tagUint
	tagFloat
	tagString
	tagSlice
	tagHasher
)

func writeHashValue(d *xxhash.Digest, v reflect.Value) {
	var buf [9]byte
	write := func(tag byte, bits uint64) {
		buf[0] = tag
		binary.LittleEndian.PutUint64(buf[1:], bits)
		_, _ = d.Write(buf[:])
	}
	if !v.IsValid() {
		write(tagNil, 0)
		return
	}
	if v.CanInterface() {
		if hasher, ok := v.Interface().(uint64Hasher); ok {
			write(tagHasher, hasher.Hash())
			return
		}
	}
	switch v.Kind() {
	case reflect.Bool:
		var bits uint64
		if v.Bool() {
			bits = 1
		}
		write(tagBool, bits)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		write(tagInt, uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		write(tagUint, v.Uint())
	case reflect.Float32, reflect.Float64:
		write(tagFloat, math.Float64bits(v.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		write(tagFloat, math.Float64bits(real(c)))
		write(tagFloat, math.Float64bits(imag(c)))
	case reflect.String:
		write(tagString, uint64(v.Len()))
		_, _ = d.WriteString(v.String())
	case reflect.Slice, reflect.Array:
		write(tagSlice, uint64(v.Len()))
		for ii := range v.Len() {
			writeHashValue(d, v.Index(ii))
		}
	default:
		exceptions.Panicf("MHash: cannot hash value of type %s", v.Type())
	}
}
