// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/muesli/termenv"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newPlainTable(output *termenv.Output, alignments ...lipgloss.Position) *lgtable.Table {
	renderer := lipgloss.NewRenderer(output)
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(renderer.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				s = headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			}
			return s.Renderer(renderer).Align(alignment)
		})
}

// nodesTable lists the nodes of the graph, in order of definition.
func nodesTable(output *termenv.Output, graph *Graph) *lgtable.Table {
	table := newPlainTable(output, lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("#", "Name", "Op", "Shape", "Memory", "Hash", "Annotations")
	for ii, node := range graph.Nodes {
		shape := "<invalid>"
		memory := "-"
		if s, err := node.ShapeOrError(); err == nil {
			shape = s.String()
			memory = humanize.Bytes(uint64(s.Memory()))
		}
		table.Row(fmt.Sprint(ii), graph.Names[node], node.Op().String(), shape, memory, node.Hash().String(),
			annotations(node))
	}
	return table
}

func annotations(node ir.Node) string {
	var parts []string
	for index := range node.NumOutputs() {
		if sharding := node.Sharding(index); sharding != nil {
			parts = append(parts, fmt.Sprintf("sharding[%d]=%s%v", index, sharding.GetType(),
				sharding.GetTileAssignmentDimensions()))
		}
	}
	if dims := node.DynamicDims(); len(dims) > 0 {
		parts = append(parts, fmt.Sprintf("dynamic_dims=%v", slices.Sorted(dims.Items())))
	}
	if meta := node.UserMetadata(); meta != nil {
		parts = append(parts, meta.String())
	}
	return strings.Join(parts, "; ")
}
