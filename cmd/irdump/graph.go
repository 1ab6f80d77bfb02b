// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/backends"
	"github.com/gomlx/lazyxla/pkg/core/distributed"
	"github.com/gomlx/lazyxla/pkg/core/ir"
	"github.com/gomlx/lazyxla/pkg/core/ir/ops"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// GraphFile is the YAML description of a graph.
type GraphFile struct {
	Name    string     `yaml:"name"`
	Mesh    *MeshSpec  `yaml:"mesh"`    // Required by nodes using "sharding" or "group_axes".
	Nodes   []NodeSpec `yaml:"nodes"`   // In order: inputs must be defined before they are used.
	Outputs []string   `yaml:"outputs"` // "name" or "name:index".
}

// MeshSpec describes the device mesh.
type MeshSpec struct {
	Axes  []string `yaml:"axes"`
	Sizes []int    `yaml:"sizes"`
}

// NodeSpec describes one node. Which fields are used depends on Op.
type NodeSpec struct {
	Name string `yaml:"name"`
	Op   string `yaml:"op"` // device_data, constant, token, add, mul or all_reduce.

	// device_data and constant.
	DType  string    `yaml:"dtype"`
	Dims   []int     `yaml:"dims"`
	Values []float64 `yaml:"values"`

	// add, mul and all_reduce.
	Inputs []string `yaml:"inputs"`

	// all_reduce.
	Token     string   `yaml:"token"`
	Reduce    string   `yaml:"reduce"`
	Scale     *float64 `yaml:"scale"`
	Groups    [][]int  `yaml:"groups"`
	GroupAxes []string `yaml:"group_axes"` // Replica groups computed from the mesh, instead of Groups.
	PinLayout bool     `yaml:"pin_layout"`

	// Annotations, valid for all nodes.
	Sharding     [][]string `yaml:"sharding"` // Mesh axes per tensor axis, an empty list for replicated axes.
	DynamicDims  []uint32   `yaml:"dynamic_dims"`
	OpNamePrefix string     `yaml:"op_name_prefix"` // Set as metadata of the subgraph of the node.
}

// Graph built from a GraphFile.
type Graph struct {
	Name    string
	Nodes   []ir.Node
	Names   map[ir.Node]string
	Outputs []ir.Value
	Mesh    *distributed.DeviceMesh
}

// ParseGraph reads the YAML description of a graph.
func ParseGraph(r io.Reader) (*GraphFile, error) {
	var file GraphFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "failed to parse graph")
	}
	return &file, nil
}

// Build creates the IR nodes of the graph.
// Invalid node constructions (reported by panics in package ops) are converted to errors.
func (f *GraphFile) Build() (g *Graph, err error) {
	err = exceptions.TryCatch[error](func() { g = f.mustBuild() })
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (f *GraphFile) mustBuild() *Graph {
	g := &Graph{Name: f.Name, Names: make(map[ir.Node]string)}
	if g.Name == "" {
		g.Name = "irdump"
	}
	if f.Mesh != nil {
		var err error
		g.Mesh, err = distributed.NewDeviceMesh(f.Mesh.Sizes, f.Mesh.Axes)
		if err != nil {
			panic(errors.WithMessage(err, "invalid mesh"))
		}
	}
	byName := make(map[string]ir.Node, len(f.Nodes))
	for ii, spec := range f.Nodes {
		if spec.Name == "" {
			exceptions.Panicf("node #%d has no name", ii)
		}
		if _, found := byName[spec.Name]; found {
			exceptions.Panicf("node %q defined more than once", spec.Name)
		}
		node, err := g.buildNode(spec, byName)
		if err != nil {
			panic(errors.WithMessagef(err, "node %q", spec.Name))
		}
		if err = g.annotate(node, spec); err != nil {
			panic(errors.WithMessagef(err, "node %q", spec.Name))
		}
		byName[spec.Name] = node
		g.Names[node] = spec.Name
		g.Nodes = append(g.Nodes, node)
	}
	if len(f.Outputs) == 0 {
		exceptions.Panicf("graph %q has no outputs", g.Name)
	}
	for _, output := range f.Outputs {
		value, err := resolveValue(output, byName)
		if err != nil {
			panic(errors.WithMessage(err, "outputs"))
		}
		g.Outputs = append(g.Outputs, value)
	}
	return g
}

func (g *Graph) buildNode(spec NodeSpec, byName map[string]ir.Node) (ir.Node, error) {
	inputs := make([]ir.Value, len(spec.Inputs))
	for ii, input := range spec.Inputs {
		var err error
		inputs[ii], err = resolveValue(input, byName)
		if err != nil {
			return nil, err
		}
	}
	switch spec.Op {
	case "device_data":
		dtype, err := parseDType(spec.DType)
		if err != nil {
			return nil, err
		}
		shape, err := shapes.MakeOrError(dtype, spec.Dims...)
		if err != nil {
			return nil, err
		}
		return ops.NewDeviceData(spec.Name, shape), nil

	case "constant":
		dtype, err := parseDType(spec.DType)
		if err != nil {
			return nil, err
		}
		return ops.NewConstant(convertValues(dtype, spec.Values), spec.Dims...), nil

	case "token":
		return ops.NewToken(), nil

	case "add", "mul":
		if len(inputs) != 2 {
			return nil, errors.Errorf("%s requires 2 inputs, got %d", spec.Op, len(inputs))
		}
		if spec.Op == "add" {
			return ops.NewAdd(inputs[0], inputs[1]), nil
		}
		return ops.NewMul(inputs[0], inputs[1]), nil

	case "all_reduce":
		return g.buildAllReduce(spec, inputs, byName)
	}
	return nil, errors.Errorf("unknown op %q", spec.Op)
}

func (g *Graph) buildAllReduce(spec NodeSpec, inputs []ir.Value, byName map[string]ir.Node) (ir.Node, error) {
	reduceType := backends.ReduceOpSum
	if spec.Reduce != "" {
		var err error
		reduceType, err = backends.ReduceOpTypeString(strings.ReplaceAll(spec.Reduce, "_", ""))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid reduce %q", spec.Reduce)
		}
	}
	scale := 1.0
	if spec.Scale != nil {
		scale = *spec.Scale
	}
	groups := spec.Groups
	if len(spec.GroupAxes) > 0 {
		if len(groups) > 0 {
			return nil, errors.New("only one of groups or group_axes can be given")
		}
		if g.Mesh == nil {
			return nil, errors.New("group_axes requires a mesh")
		}
		var err error
		groups, err = g.Mesh.ComputeReplicaGroups(spec.GroupAxes)
		if err != nil {
			return nil, err
		}
	}
	if spec.Token == "" {
		if len(inputs) != 1 {
			return nil, errors.Errorf("all_reduce without token requires 1 input, got %d", len(inputs))
		}
		if spec.PinLayout {
			return nil, errors.New("pin_layout requires a token")
		}
		return ops.NewAllReduce(reduceType, inputs[0], scale, groups), nil
	}
	token, err := resolveValue(spec.Token, byName)
	if err != nil {
		return nil, err
	}
	return ops.NewAllReduceWithToken(reduceType, inputs, token, scale, groups, spec.PinLayout), nil
}

// annotate sets the sharding, dynamic dimensions and metadata of the node.
func (g *Graph) annotate(node ir.Node, spec NodeSpec) error {
	if len(spec.Sharding) > 0 {
		if g.Mesh == nil {
			return errors.New("sharding requires a mesh")
		}
		axes := make([]distributed.AxisSpec, len(spec.Sharding))
		for ii, axis := range spec.Sharding {
			axes[ii] = axis
		}
		shardingSpec, err := distributed.NewShardingSpec(g.Mesh, axes...)
		if err != nil {
			return err
		}
		shape, err := node.ShapeOrError()
		if err != nil {
			return err
		}
		if shape.IsTuple() || shape.IsToken() {
			return errors.Errorf("sharding only supported for single output array nodes, got shape %s", shape)
		}
		sharding, err := shardingSpec.ToOpSharding(shape.Rank())
		if err != nil {
			return err
		}
		node.SetSharding(sharding, 0)
	}
	for _, dim := range spec.DynamicDims {
		node.MarkDynamicDimension(dim)
	}
	if spec.OpNamePrefix != "" {
		node.SetUserMetadataForSubGraph(&ir.CustomOpNameMetadata{OpNamePrefix: spec.OpNamePrefix})
	}
	return nil
}

// resolveValue parses "name" or "name:index".
func resolveValue(ref string, byName map[string]ir.Node) (ir.Value, error) {
	name, indexStr, hasIndex := strings.Cut(ref, ":")
	node, found := byName[name]
	if !found {
		return ir.Value{}, errors.Errorf("unknown node %q", name)
	}
	index := 0
	if hasIndex {
		var err error
		index, err = strconv.Atoi(indexStr)
		if err != nil {
			return ir.Value{}, errors.Wrapf(err, "invalid output index in %q", ref)
		}
	}
	if index < 0 || index >= node.NumOutputs() {
		return ir.Value{}, errors.Errorf("%q: node %q has %d outputs", ref, name, node.NumOutputs())
	}
	return ir.NewValue(node, index), nil
}

var supportedDTypes = []dtypes.DType{
	dtypes.Bool,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float32, dtypes.Float64,
}

func parseDType(name string) (dtypes.DType, error) {
	for _, dtype := range supportedDTypes {
		if strings.EqualFold(dtype.String(), name) {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported dtype %q", name)
}

// convertValues converts the YAML values to a slice of the Go type of dtype.
func convertValues(dtype dtypes.DType, values []float64) any {
	goType := dtype.GoType()
	flat := reflect.MakeSlice(reflect.SliceOf(goType), len(values), len(values))
	for ii, value := range values {
		if goType.Kind() == reflect.Bool {
			flat.Index(ii).SetBool(value != 0)
			continue
		}
		flat.Index(ii).Set(reflect.ValueOf(value).Convert(goType))
	}
	return flat.Interface()
}
