// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"strings"

	"github.com/gomlx/gopjrt/protos/xla_data"
	"github.com/gomlx/lazyxla/pkg/support/sets"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// ShardingSpec (also known as PartitionSpec in JAX) defines how a logical tensor is to be sharded (partitioned) across
// a DeviceMesh.
//
// The definition is per axis of the logical tensor -- and not per axis of the Mesh, a common confusion.
// If not all axes of the Tensor are defined, the tail axes are considered simply to be replicated across the whole
// mesh.
//
// Each tensor axis can be replicated or sharded across one or more mesh axes.
//
// Example:
//
//	mesh, _ := NewDeviceMesh([]int{2, 2}, []string{"data", "model"})
//
//	// First axis is replicated, second is sharded across "model" devices
//	variableSharding, _ := BuildSpec(mesh).R().S("model").Done()
//
//	// Second axis is sharded across both "data" and "model" devices.
//	largeWeights, _ := BuildSpec(mesh).R().S("data", "model").Done()
type ShardingSpec struct {
	Mesh *DeviceMesh
	Axes []AxisSpec
}

// AxisSpec specifies how a tensor axis is to be sharded (or replicated).
// See details in ShardingSpec.
//
// It's a list of mesh axes names, in order. An empty list means the axis is replicated.
type AxisSpec []string

// ReplicatedAxis is a special AxisSpec that means the tensor axis is replicated.
var ReplicatedAxis = AxisSpec(nil)

// NewShardingSpec creates a new ShardingSpec for a tensor, defined over the given mesh axes.
//
// It takes an axisSpec for each axis of the tensor (omitted axes are assumed to be replicated).
func NewShardingSpec(mesh *DeviceMesh, axisSpec ...AxisSpec) (*ShardingSpec, error) {
	s := &ShardingSpec{mesh, axisSpec}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewReplicatedShardingSpec creates a new ShardingSpec that is replicated across all mesh axes.
func NewReplicatedShardingSpec(mesh *DeviceMesh) *ShardingSpec {
	return &ShardingSpec{mesh, nil}
}

// Validate the spec returning an error if something is invalid.
func (s *ShardingSpec) Validate() error {
	if s.Mesh == nil {
		return errors.New("ShardingSpec requires a DeviceMesh")
	}
	used := sets.Make[int]()
	for axisIdx, tensorAxisSpec := range s.Axes {
		if _, err := s.Mesh.axesIndices(tensorAxisSpec, used); err != nil {
			return errors.WithMessagef(err, "ShardingSpec axis #%d", axisIdx)
		}
	}
	return nil
}

// Rank returns the rank of the tensor this ShardingSpec describes.
func (s *ShardingSpec) Rank() int {
	return len(s.Axes)
}

// IsReplicated returns true if the tensor is fully replicated
// (i.e., not sharded along any axis).
func (s *ShardingSpec) IsReplicated() bool {
	for _, meshAxes := range s.Axes {
		if len(meshAxes) > 0 {
			return false
		}
	}
	return true
}

// String returns a human-readable string representation of the ShardingSpec.
func (s *ShardingSpec) String() string {
	if s == nil {
		return "ShardingSpec<nil>"
	}
	var sb strings.Builder
	sb.WriteString("ShardingSpec{mesh=")
	sb.WriteString(s.Mesh.name)
	sb.WriteString(", axes=[")
	for i, axisSpec := range s.Axes {
		if i > 0 {
			sb.WriteString(", ")
		}
		if len(axisSpec) == 0 {
			sb.WriteString("R")
			continue
		}
		sb.WriteString("S(")
		sb.WriteString(strings.Join(axisSpec, ","))
		sb.WriteString(")")
	}
	sb.WriteString("]}")
	return sb.String()
}

// SpecBuilder is a more ergonomic way of building SharingSpec.
type SpecBuilder struct {
	spec *ShardingSpec
}

// BuildSpec is a more ergonomic way of building SharingSpec.
//
// Example:
//
//	spec, err := distributed.BuildSpec(mesh).R().S("model").Done()
func BuildSpec(mesh *DeviceMesh) *SpecBuilder {
	return &SpecBuilder{spec: &ShardingSpec{Mesh: mesh}}
}

// R adds a replicated axis to the ShardingSpec being built.
func (b *SpecBuilder) R() *SpecBuilder {
	b.spec.Axes = append(b.spec.Axes, ReplicatedAxis)
	return b
}

// S adds a sharded axis along the meshAxes to the ShardingSpec being built.
func (b *SpecBuilder) S(meshAxes ...string) *SpecBuilder {
	b.spec.Axes = append(b.spec.Axes, meshAxes)
	return b
}

// Done builds the ShardingSpec according to the builder specification.
func (b *SpecBuilder) Done() (*ShardingSpec, error) {
	if err := b.spec.Validate(); err != nil {
		return nil, err
	}
	return b.spec, nil
}

// NumDevicesShardingAxis returns the number of devices that will be used to shard the tensor along the given
// tensor axis. If the axis is replicated, it returns 1.
//
// Notice this is about the tensor axis, not the mesh axis. A tensor axis can be sharded across multiple mesh axes.
func (s *ShardingSpec) NumDevicesShardingAxis(axis int) int {
	if axis >= len(s.Axes) {
		return 1
	}
	size := 1
	for _, meshAxis := range s.Axes[axis] {
		size *= s.Mesh.axesSizes[s.Mesh.nameToAxis[meshAxis]]
	}
	return size
}

// ShardShape calculates the shard shape of a tensor given its logical shape and the sharding specification.
//
// The logical shape is the shape of the full tensor across all devices.
// The shard shape is the shape of the tensor on a single device.
//
// It returns an error if the spec has more axes than the shape, or if a sharded dimension is not divisible
// by its number of shards.
func (s *ShardingSpec) ShardShape(logicalShape shapes.Shape) (shapes.Shape, error) {
	if s == nil {
		return logicalShape, nil
	}
	if len(s.Axes) > logicalShape.Rank() {
		return shapes.Invalid(), errors.Errorf("%s has more axes than shape %s", s, logicalShape)
	}
	shardDims := make([]int, logicalShape.Rank())
	for axis, dim := range logicalShape.Dimensions {
		numShards := s.NumDevicesShardingAxis(axis)
		if dim%numShards != 0 {
			return shapes.Invalid(), errors.Errorf("axis #%d of shape %s is not divisible in %d shards", axis,
				logicalShape, numShards)
		}
		shardDims[axis] = dim / numShards
	}
	return shapes.Make(logicalShape.DType, shardDims...), nil
}

// ToOpSharding converts the spec to the XLA OpSharding proto, used to annotate IR nodes, for a tensor of the
// given rank.
//
// A nil or fully replicated spec converts to a REPLICATED sharding.
// Otherwise, the tile assignment has one dimension per tensor axis, plus a last replicated dimension if some
// mesh axes are not used to shard any tensor axis.
func (s *ShardingSpec) ToOpSharding(rank int) (*xla_data.OpSharding, error) {
	if s == nil || s.IsReplicated() {
		return ReplicatedSharding(), nil
	}
	if len(s.Axes) > rank {
		return nil, errors.Errorf("%s has more axes than the tensor rank %d", s, rank)
	}
	used := sets.Make[int]()
	var order []int
	tileDims := make([]int64, 0, rank+1)
	for axis := range rank {
		var meshAxes AxisSpec
		if axis < len(s.Axes) {
			meshAxes = s.Axes[axis]
		}
		indices, err := s.Mesh.axesIndices(meshAxes, used)
		if err != nil {
			return nil, err
		}
		order = append(order, indices...)
		tileDims = append(tileDims, int64(s.NumDevicesShardingAxis(axis)))
	}
	sharding := &xla_data.OpSharding{
		Type: xla_data.OpSharding_OTHER,
	}
	replicated := 1
	for axis, size := range s.Mesh.axesSizes {
		if !used.Has(axis) {
			order = append(order, axis)
			replicated *= size
		}
	}
	if replicated > 1 {
		tileDims = append(tileDims, int64(replicated))
		sharding.ReplicateOnLastTileDim = true
	}
	sharding.TileAssignmentDimensions = tileDims
	for _, device := range s.Mesh.transposedDevices(order) {
		sharding.TileAssignmentDevices = append(sharding.TileAssignmentDevices, int64(device))
	}
	return sharding, nil
}

// ReplicatedSharding returns an OpSharding where the value is replicated on all devices.
func ReplicatedSharding() *xla_data.OpSharding {
	return &xla_data.OpSharding{Type: xla_data.OpSharding_REPLICATED}
}

// MaximalSharding returns an OpSharding where the value lives entirely on the given device.
func MaximalSharding(device int) *xla_data.OpSharding {
	return &xla_data.OpSharding{
		Type:                     xla_data.OpSharding_MAXIMAL,
		TileAssignmentDimensions: []int64{1},
		TileAssignmentDevices:    []int64{int64(device)},
	}
}

// ManualSharding returns an OpSharding marking the value as manually partitioned.
func ManualSharding() *xla_data.OpSharding {
	return &xla_data.OpSharding{Type: xla_data.OpSharding_MANUAL}
}
