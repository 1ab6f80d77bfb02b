// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of the IR package.
type Config struct {
	// CheckedCasts makes NodeCast panic with a *CastError on mismatches, instead of returning nil.
	CheckedCasts bool

	// ShapeCacheSize is the number of entries of the process-wide cache of lazily computed shapes.
	// If 0 the cache is disabled.
	ShapeCacheSize int
}

// DefaultConfig is used if GOMLX_IR is not set.
var DefaultConfig = Config{
	CheckedCasts:   true,
	ShapeCacheSize: 4096,
}

// GOMLX_IR is the environment variable with the configuration of the IR package, read at start up.
//
// The format is described in ParseConfig.
const GOMLX_IR = "GOMLX_IR"

// ParseConfig parses a comma-separated list of options, applied over DefaultConfig:
//
//   - "checked" / "unchecked": sets Config.CheckedCasts.
//   - "shape_cache=<size>": sets Config.ShapeCacheSize; 0 disables it.
//
// Example: "unchecked,shape_cache=1024".
func ParseConfig(config string) (Config, error) {
	c := DefaultConfig
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")
		switch key {
		case "":
			continue
		case "checked", "unchecked":
			if hasValue {
				return c, errors.Errorf("ir config option %q takes no value, got %q", key, part)
			}
			c.CheckedCasts = key == "checked"
		case "shape_cache":
			size, err := strconv.Atoi(value)
			if err != nil || size < 0 {
				return c, errors.Errorf("ir config option %q requires a non-negative integer, got %q", key, value)
			}
			c.ShapeCacheSize = size
		default:
			return c, errors.Errorf("unknown ir config option %q in %q", key, config)
		}
	}
	return c, nil
}

var currentConfig atomic.Pointer[Config]

func init() {
	c := DefaultConfig
	if envConfig, found := os.LookupEnv(GOMLX_IR); found {
		var err error
		c, err = ParseConfig(envConfig)
		if err != nil {
			klog.Warningf("ignoring $%s: %v", GOMLX_IR, err)
			c = DefaultConfig
		}
	}
	SetConfig(c)
}

// CurrentConfig returns the configuration in use.
func CurrentConfig() Config {
	return *currentConfig.Load()
}

// SetConfig changes the configuration. It resets the shape cache.
//
// It returns the previous configuration, so it can be restored.
func SetConfig(c Config) Config {
	previous := currentConfig.Swap(&c)
	resetShapeCache(c.ShapeCacheSize)
	if previous == nil {
		return DefaultConfig
	}
	return *previous
}
