// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface to a backend builder: the library that implements the primitive
// operations IR nodes are lowered into.
//
// A Backend is selected by name from the registered ones (see Register), with an optional configuration
// string. Backend implementations usually register themselves in an init() function, so all one needs
// is to import them, e.g.:
//
//	import _ "github.com/gomlx/lazyxla/backends/hlotext"
//
// And then:
//
//	backend := backends.New()
//	builder := backend.Builder("my_computation")
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Backend is the API that needs to be implemented by a backend.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "hlotext".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Builder creates a new builder used to lower a computation.
	Builder(name string) Builder

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// Registered returns whether a backend with the given name was registered.
func Registered(name string) bool {
	_, found := registeredConstructors[name]
	return found
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// GOMLX_BACKEND is the environment variable with the default backend configuration to use.
//
// The format of the configuration string is described in NewWithConfig.
const GOMLX_BACKEND = "GOMLX_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment $GOMLX_BACKEND (GOMLX_BACKEND) is used as a configuration if defined.
// 2. Next, it uses the variable DefaultConfig as the configuration.
// 3. The first registered backend is used with an empty configuration.
//
// It panics if no backend was registered.
func New() Backend {
	config, found := os.LookupEnv(GOMLX_BACKEND)
	if !found {
		config = DefaultConfig
	}
	backend, err := NewWithConfig(config)
	if err != nil {
		panic(err)
	}
	return backend
}

// NewWithConfig takes a configurations string formatted as
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "hlotext") and
// "<backend_configuration>" is backend specific.
//
// If config is empty, the first registered backend is used with an empty configuration.
func NewWithConfig(config string) (Backend, error) {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered backends -- maybe import the text one with import _ "github.com/gomlx/lazyxla/backends/hlotext"?`)
	}
	backendName := firstRegistered
	backendConfig := ""
	if config != "" {
		backendName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given", backendName, config)
	}
	return constructor(backendConfig)
}
