// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package distributed describes the logical topology of devices (DeviceMesh) and how tensors are sharded
// over it (ShardingSpec).
//
// IR nodes carry their sharding annotations as XLA OpSharding protos: ShardingSpec.ToOpSharding converts the
// mesh-axes description into one. DeviceMesh.ComputeReplicaGroups produces the replica groups used by collective
// nodes like AllReduce.
package distributed

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyxla/pkg/support/sets"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/pkg/errors"
)

// DeviceMesh defines the logical topology of a set of devices.
type DeviceMesh struct {
	name string

	// axesNames are the names of the mesh axes.
	axesNames []string

	// axesSizes defines the number of devices along each mesh axis.
	axesSizes []int

	// nameToAxis maps axis names to their index.
	nameToAxis map[string]int

	numDevices int

	// logicalDeviceAssignment maps the position of a device in the mesh (row-major) to its logical device number.
	// If nil, the position is the device number.
	logicalDeviceAssignment []int
}

const DefaultMeshName = "mesh"

// IsNameValid checks whether a name is a valid identifier for a mesh name or axis name.
func IsNameValid(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return true
}

// NewDeviceMesh creates a new logical topology of a set of devices.
//
//   - axesSizes: defines the number of devices along each mesh axis, one value per axis.
//   - axesNames: the names of the mesh axes. One value per axis, each a valid identifier (see IsNameValid).
//
// Example:
//
//	mesh, err := distributed.NewDeviceMesh([]int{2, 4}, []string{"data", "model"})
func NewDeviceMesh(axesSizes []int, axesNames []string) (*DeviceMesh, error) {
	if len(axesSizes) != len(axesNames) {
		return nil, errors.Errorf("axesSizes and axesNames must have the same length, got %d and %d",
			len(axesSizes), len(axesNames))
	}
	if len(axesSizes) == 0 {
		return nil, errors.New("DeviceMesh axesSizes cannot be empty")
	}
	m := &DeviceMesh{
		name:       DefaultMeshName,
		axesNames:  slices.Clone(axesNames),
		axesSizes:  slices.Clone(axesSizes),
		nameToAxis: make(map[string]int, len(axesSizes)),
		numDevices: 1,
	}
	for i, name := range m.axesNames {
		if !IsNameValid(name) {
			return nil, errors.Errorf(
				"DeviceMesh axis name %q at index %d is not a valid identifier, it must start with a ASCII letter "+
					"and be followed only by letters, numbers or underscore", name, i)
		}
		if _, found := m.nameToAxis[name]; found {
			return nil, errors.Errorf("DeviceMesh axis name %q is duplicated", name)
		}
		if m.axesSizes[i] <= 0 {
			return nil, errors.Errorf("DeviceMesh axis %q must have a positive size, got %d", name, m.axesSizes[i])
		}
		m.nameToAxis[name] = i
		m.numDevices *= m.axesSizes[i]
	}
	return m, nil
}

// SetName of the mesh.
func (m *DeviceMesh) SetName(name string) {
	m.name = name
}

// Name returns the mesh name.
func (m *DeviceMesh) Name() string {
	return m.name
}

// NumDevices returns the total number of devices in the mesh.
func (m *DeviceMesh) NumDevices() int {
	return m.numDevices
}

// Rank returns the number of axes in the mesh.
func (m *DeviceMesh) Rank() int {
	return len(m.axesSizes)
}

// AxesNames returns a copy of the mesh's axis names.
func (m *DeviceMesh) AxesNames() []string {
	return slices.Clone(m.axesNames)
}

// AxesSizes returns a copy of the mesh's axesSizes.
func (m *DeviceMesh) AxesSizes() []int {
	return slices.Clone(m.axesSizes)
}

// AxisSize returns the number of devices along the given mesh axis.
func (m *DeviceMesh) AxisSize(axisName string) (int, error) {
	idx, found := m.nameToAxis[axisName]
	if !found {
		return 0, errors.Errorf("mesh axis %q not found", axisName)
	}
	return m.axesSizes[idx], nil
}

// String implements the fmt.Stringer interface.
func (m *DeviceMesh) String() string {
	var sb strings.Builder
	sb.WriteString("DeviceMesh(axesSizes={")
	for i, name := range m.axesNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "%s: %d", name, m.axesSizes[i])
	}
	sb.WriteString("})")
	return sb.String()
}

// SetLogicalDeviceAssignment sets the assignment of logical devices to the positions of the mesh.
//
// The length of devices must be equal to NumDevices(), and it must be a permutation of 0 to NumDevices()-1.
// An empty list resets the assignment to the sequential default.
func (m *DeviceMesh) SetLogicalDeviceAssignment(devices ...int) error {
	if len(devices) == 0 {
		m.logicalDeviceAssignment = nil
		return nil
	}
	if len(devices) != m.numDevices {
		return errors.Errorf("devices must have %d elements, got %d", m.numDevices, len(devices))
	}
	seen := sets.Make[int](m.numDevices)
	for _, device := range devices {
		if device < 0 || device >= m.numDevices {
			return errors.Errorf("devices must be between 0 and %d (NumDevices()-1), got device %d",
				m.numDevices-1, device)
		}
		if !seen.InsertIfMissing(device) {
			return errors.Errorf("device #%d is duplicated in mapping", device)
		}
	}
	m.logicalDeviceAssignment = slices.Clone(devices)
	return nil
}

// LogicalDeviceAssignment returns the list of devices in the mesh, in the order they appear in the mesh.
//
// It returns nil if no assignment was set with SetLogicalDeviceAssignment, in which case devices are
// numbered sequentially starting from 0.
func (m *DeviceMesh) LogicalDeviceAssignment() []int {
	if m.logicalDeviceAssignment == nil {
		return nil
	}
	return slices.Clone(m.logicalDeviceAssignment)
}

// DeviceAt returns the logical device number at the given mesh coordinates, one per mesh axis.
func (m *DeviceMesh) DeviceAt(coordinates []int) int {
	flat := 0
	for axis, coord := range coordinates {
		flat = flat*m.axesSizes[axis] + coord
	}
	if m.logicalDeviceAssignment != nil {
		return m.logicalDeviceAssignment[flat]
	}
	return flat
}

// axesIndices converts mesh axes names to their indices, checking that each is used only once.
func (m *DeviceMesh) axesIndices(axes []string, used sets.Set[int]) ([]int, error) {
	indices := make([]int, 0, len(axes))
	for _, axis := range axes {
		idx, found := m.nameToAxis[axis]
		if !found {
			return nil, errors.Errorf("axis %q not found in mesh", axis)
		}
		if !used.InsertIfMissing(idx) {
			return nil, errors.Errorf("axis %q is duplicated: each axis can only appear once", axis)
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// ComputeReplicaGroups returns the replica groups participating in some collective (distributed) operation given the
// axes along which the operation is performed.
//
// Each replica group (a []int) includes the logical devices along the axes specified.
// The other axes will be split into different replica groups.
//
// Example:
//
//	m := NewDeviceMesh([]int{2, 2}, []string{"batch", "data"})
//	batchGroups, _ := m.ComputeReplicaGroups([]string{"batch"})  // -> [][]int{{0, 2}, {1, 3}}
//	dataGroups, _ := m.ComputeReplicaGroups([]string{"data"})    // -> [][]int{{0, 1}, {2, 3}}
//	globalGroups, _ := m.ComputeReplicaGroups([]string{"batch", "data"})  // -> [][]int{{0, 1, 2, 3}}
func (m *DeviceMesh) ComputeReplicaGroups(axes []string) ([][]int, error) {
	used := sets.Make[int](len(axes))
	groupAxes, err := m.axesIndices(axes, used)
	if err != nil {
		return nil, err
	}
	var otherAxes []int
	for axis := range m.axesSizes {
		if !used.Has(axis) {
			otherAxes = append(otherAxes, axis)
		}
	}

	// Iterating over the mesh transposed to (otherAxes..., groupAxes...) yields the devices of each group
	// contiguously.
	order := append(slices.Clone(otherAxes), groupAxes...)
	groupSize := 1
	for _, axis := range groupAxes {
		groupSize *= m.axesSizes[axis]
	}
	devices := m.transposedDevices(order)
	groups := make([][]int, 0, len(devices)/groupSize)
	for start := 0; start < len(devices); start += groupSize {
		groups = append(groups, devices[start:start+groupSize])
	}
	return groups, nil
}

// transposedDevices lists the logical devices of the mesh, iterating over the mesh axes in the given order
// (last axis in order changes fastest).
func (m *DeviceMesh) transposedDevices(order []int) []int {
	dims := make([]int, len(order))
	for i, axis := range order {
		dims[i] = m.axesSizes[axis]
	}
	devices := make([]int, 0, m.numDevices)
	coordinates := make([]int, m.Rank())
	for indices := range shapes.Make(dtypes.Int32, dims...).Iter() {
		for i, axis := range order {
			coordinates[axis] = indices[i]
		}
		devices = append(devices, m.DeviceAt(coordinates))
	}
	return devices
}
