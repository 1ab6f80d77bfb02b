// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"sync/atomic"

	"github.com/gomlx/lazyxla/types/shapes"
	lru "github.com/hashicorp/golang-lru/v2"
	"k8s.io/klog/v2"
)

// shapeCache holds lazily computed shapes, keyed by the operation, seed and operands of the node.
// It is safe for concurrent use.
var shapeCache atomic.Pointer[lru.Cache[Hash, shapes.Shape]]

func currentShapeCache() *lru.Cache[Hash, shapes.Shape] {
	return shapeCache.Load()
}

func resetShapeCache(size int) {
	if size <= 0 {
		shapeCache.Store(nil)
		return
	}
	cache, err := lru.New[Hash, shapes.Shape](size)
	if err != nil {
		klog.Warningf("ir: disabling shape cache: %v", err)
		shapeCache.Store(nil)
		return
	}
	shapeCache.Store(cache)
}

// ShapeCacheLen returns the number of shapes in the shape cache.
func ShapeCacheLen() int {
	cache := currentShapeCache()
	if cache == nil {
		return 0
	}
	return cache.Len()
}
