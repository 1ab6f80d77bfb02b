// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hlotext implements a backend that renders the lowered computation as StableHLO-like text.
//
// It doesn't execute anything: it is used to inspect what IR graphs are lowered into, and to test lowering.
// It registers itself as "hlotext", so it only needs to be imported:
//
//	import _ "github.com/gomlx/lazyxla/backends/hlotext"
//
// The configuration string is a comma-separated list of options:
//
//   - "types": annotate every line of the program with the shape of its results (the default).
//   - "notypes": don't annotate with the shape of the results (operand types are still listed for
//     generic operations).
package hlotext

import (
	"strings"

	"github.com/gomlx/lazyxla/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in GOMLX_BACKEND to select this backend.
const BackendName = "hlotext"

func init() {
	backends.Register(BackendName, New)
}

// Backend creates text builders.
type Backend struct {
	withTypes bool
	finalized bool
}

var _ backends.Backend = (*Backend)(nil)

// New constructs a new text Backend. It implements backends.Constructor.
func New(config string) (backends.Backend, error) {
	return NewWithConfig(config)
}

// NewWithConfig is like New, but returns the concrete *Backend.
func NewWithConfig(config string) (*Backend, error) {
	b := &Backend{withTypes: true}
	for _, option := range strings.Split(config, ",") {
		switch strings.TrimSpace(option) {
		case "":
		case "types":
			b.withTypes = true
		case "notypes":
			b.withTypes = false
		default:
			return nil, errors.Errorf("backend %q: unknown configuration option %q in %q", BackendName, option, config)
		}
	}
	klog.V(1).Infof("backend %q created (config=%q)", BackendName, config)
	return b, nil
}

// Name returns the short name of the backend.
func (b *Backend) Name() string { return BackendName }

// String returns Name.
func (b *Backend) String() string { return b.Name() }

// Description is a longer description of the Backend.
func (b *Backend) Description() string {
	return "Renders lowered computations as StableHLO-like text (no execution)"
}

// Builder creates a new builder, used to lower a computation.
func (b *Backend) Builder(name string) backends.Builder {
	return b.NewBuilder(name)
}

// NewBuilder is like Builder, but returns the concrete *Builder.
func (b *Backend) NewBuilder(name string) *Builder {
	if b.finalized {
		panic(errors.Errorf("backend %q: Builder(%q) called after Finalize()", BackendName, name))
	}
	return &Builder{name: name, backend: b}
}

// Finalize invalidates the backend: no new builders can be created.
func (b *Backend) Finalize() {
	b.finalized = true
}
