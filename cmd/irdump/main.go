// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// irdump reads the YAML description of an IR graph, lowers it with a backend and prints the lowered program
// and a table with the nodes of the graph: their shapes, hashes and annotations.
//
// Example:
//
//	irdump -backend=hlotext cmd/irdump/testdata/allreduce.yaml
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/lazyxla/backends"
	_ "github.com/gomlx/lazyxla/backends/hlotext"
	"github.com/gomlx/lazyxla/pkg/core/lowering"
	"github.com/gomlx/lazyxla/pkg/support/xslices"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "", fmt.Sprintf("Backend configuration, formatted as "+
		"\"<backend_name>:<backend_configuration>\". If empty uses $%s, or the first registered backend.",
		backends.GOMLX_BACKEND))
	flagTable   = flag.Bool("table", true, "Print a table with the nodes of the graph.")
	flagProgram = flag.Bool("program", true, "Print the lowered program, if the backend can render it.")
	flagOutputs = xslices.Flag("outputs", nil,
		"Comma-separated list of values (\"name\" or \"name:index\") to lower, overriding the outputs in the graph file.",
		func(ref string) (string, error) {
			ref = strings.TrimSpace(ref)
			if ref == "" {
				return "", errors.New("empty output reference")
			}
			return ref, nil
		})
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one graph file. See 'irdump -help'.")
		os.Exit(1)
	}
	f, err := os.Open(args[0])
	if err != nil {
		klog.Errorf("Failed to open graph: %+v", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	var backend backends.Backend
	if *flagBackend == "" {
		backend = backends.New()
	} else {
		backend, err = backends.NewWithConfig(*flagBackend)
		if err != nil {
			klog.Errorf("Failed to create backend: %+v", err)
			os.Exit(1)
		}
	}
	defer backend.Finalize()

	output := termenv.NewOutput(os.Stdout)
	if err = run(output, f, backend, *flagOutputs, *flagTable, *flagProgram); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

// programRenderer is implemented by builders that can render the lowered program, like hlotext.Builder.
type programRenderer interface {
	Program(outputs ...backends.Op) (string, error)
}

// run parses, builds and lowers the graph read from r, and reports to w.
// If outputs is not empty, it replaces the outputs listed in the graph file.
func run(w *termenv.Output, r io.Reader, backend backends.Backend, outputs []string, withTable, withProgram bool) error {
	file, err := ParseGraph(r)
	if err != nil {
		return err
	}
	if len(outputs) > 0 {
		file.Outputs = outputs
	}
	graph, err := file.Build()
	if err != nil {
		return errors.WithMessagef(err, "failed to build graph %q", file.Name)
	}
	klog.V(1).Infof("graph %q: %d nodes, %d outputs", graph.Name, len(graph.Nodes), len(graph.Outputs))

	builder := backend.Builder(graph.Name)
	ctx := lowering.New(builder)
	loweredOutputs, err := ctx.Lower(graph.Outputs...)
	if err != nil {
		return errors.WithMessagef(err, "failed to lower graph %q with backend %q", graph.Name, backend.Name())
	}

	if withTable {
		title := titleStyle.Renderer(lipgloss.NewRenderer(w))
		_, _ = fmt.Fprintln(w, title.Render(fmt.Sprintf("Graph %q", graph.Name)))
		_, _ = fmt.Fprintln(w, nodesTable(w, graph).Render())
	}
	if withProgram {
		renderer, ok := builder.(programRenderer)
		if !ok {
			klog.Warningf("backend %q can't render the lowered program", backend.Name())
			return nil
		}
		program, err := renderer.Program(loweredOutputs...)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprint(w, program)
	}
	return nil
}
