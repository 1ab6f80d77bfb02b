// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	for _, tc := range []struct {
		config string
		want   Config
	}{
		{"", DefaultConfig},
		{"checked", Config{CheckedCasts: true, ShapeCacheSize: DefaultConfig.ShapeCacheSize}},
		{"unchecked", Config{CheckedCasts: false, ShapeCacheSize: DefaultConfig.ShapeCacheSize}},
		{"unchecked, shape_cache=10", Config{CheckedCasts: false, ShapeCacheSize: 10}},
		{"shape_cache=0", Config{CheckedCasts: true, ShapeCacheSize: 0}},
	} {
		t.Run(tc.config, func(t *testing.T) {
			require.Equal(t, tc.want, must.M1(ParseConfig(tc.config)))
		})
	}

	for _, config := range []string{"checked=1", "shape_cache=-1", "shape_cache=x", "fast"} {
		_, err := ParseConfig(config)
		require.Errorf(t, err, "ParseConfig(%q) should have failed", config)
	}
}

func TestSetConfig(t *testing.T) {
	previous := SetConfig(Config{CheckedCasts: false, ShapeCacheSize: 0})
	defer SetConfig(previous)
	require.False(t, CurrentConfig().CheckedCasts)
	require.Equal(t, 0, ShapeCacheLen())

	replaced := SetConfig(Config{CheckedCasts: true, ShapeCacheSize: 8})
	require.Equal(t, Config{CheckedCasts: false, ShapeCacheSize: 0}, replaced)
	require.True(t, CurrentConfig().CheckedCasts)
}
