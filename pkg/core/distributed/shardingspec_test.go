// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/protos/xla_data"
	"github.com/gomlx/lazyxla/pkg/core/distributed"
	"github.com/gomlx/lazyxla/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestShardingSpec(t *testing.T) {
	mesh := must.M1(distributed.NewDeviceMesh([]int{2, 2}, []string{"data", "model"}))

	spec := must.M1(distributed.BuildSpec(mesh).R().S("model").Done())
	assert.Equal(t, 2, spec.Rank())
	assert.False(t, spec.IsReplicated())
	assert.Equal(t, "ShardingSpec{mesh=mesh, axes=[R, S(model)]}", spec.String())
	assert.Equal(t, 1, spec.NumDevicesShardingAxis(0))
	assert.Equal(t, 2, spec.NumDevicesShardingAxis(1))
	assert.Equal(t, 1, spec.NumDevicesShardingAxis(5))

	shard := must.M1(spec.ShardShape(shapes.Make(dtypes.Float32, 3, 8)))
	assert.True(t, shard.Equal(shapes.Make(dtypes.Float32, 3, 4)))
	_, err := spec.ShardShape(shapes.Make(dtypes.Float32, 3, 7))
	require.Error(t, err)

	_, err = distributed.BuildSpec(mesh).S("data").S("data").Done()
	require.Error(t, err)
	_, err = distributed.NewShardingSpec(mesh, distributed.AxisSpec{"unknown"})
	require.Error(t, err)

	assert.True(t, distributed.NewReplicatedShardingSpec(mesh).IsReplicated())
	var nilSpec *distributed.ShardingSpec
	assert.Equal(t, "ShardingSpec<nil>", nilSpec.String())
}

func TestToOpSharding(t *testing.T) {
	mesh := must.M1(distributed.NewDeviceMesh([]int{2, 2}, []string{"data", "model"}))

	t.Run("Replicated", func(t *testing.T) {
		sharding := must.M1(distributed.NewReplicatedShardingSpec(mesh).ToOpSharding(2))
		assert.Equal(t, xla_data.OpSharding_REPLICATED, sharding.Type)
		var nilSpec *distributed.ShardingSpec
		assert.True(t, proto.Equal(sharding, must.M1(nilSpec.ToOpSharding(3))))
	})

	t.Run("FullySharded", func(t *testing.T) {
		spec := must.M1(distributed.BuildSpec(mesh).S("data").S("model").Done())
		sharding := must.M1(spec.ToOpSharding(2))
		assert.Equal(t, xla_data.OpSharding_OTHER, sharding.Type)
		assert.Equal(t, []int64{2, 2}, sharding.TileAssignmentDimensions)
		assert.Equal(t, []int64{0, 1, 2, 3}, sharding.TileAssignmentDevices)
		assert.False(t, sharding.ReplicateOnLastTileDim)
	})

	t.Run("TransposedMeshAxes", func(t *testing.T) {
		spec := must.M1(distributed.BuildSpec(mesh).S("model").S("data").Done())
		sharding := must.M1(spec.ToOpSharding(2))
		assert.Equal(t, []int64{2, 2}, sharding.TileAssignmentDimensions)
		assert.Equal(t, []int64{0, 2, 1, 3}, sharding.TileAssignmentDevices)
	})

	t.Run("PartiallyReplicated", func(t *testing.T) {
		spec := must.M1(distributed.BuildSpec(mesh).R().S("model").Done())
		sharding := must.M1(spec.ToOpSharding(2))
		assert.Equal(t, []int64{1, 2, 2}, sharding.TileAssignmentDimensions)
		assert.Equal(t, []int64{0, 2, 1, 3}, sharding.TileAssignmentDevices)
		assert.True(t, sharding.ReplicateOnLastTileDim)
	})

	t.Run("TailAxesReplicated", func(t *testing.T) {
		spec := must.M1(distributed.BuildSpec(mesh).S("data", "model").Done())
		sharding := must.M1(spec.ToOpSharding(3))
		assert.Equal(t, []int64{4, 1, 1}, sharding.TileAssignmentDimensions)
		assert.Equal(t, []int64{0, 1, 2, 3}, sharding.TileAssignmentDevices)
	})

	t.Run("RankTooSmall", func(t *testing.T) {
		spec := must.M1(distributed.BuildSpec(mesh).S("data").S("model").Done())
		_, err := spec.ToOpSharding(1)
		require.Error(t, err)
	})

	t.Run("Helpers", func(t *testing.T) {
		maximal := distributed.MaximalSharding(3)
		assert.Equal(t, xla_data.OpSharding_MAXIMAL, maximal.Type)
		assert.Equal(t, []int64{3}, maximal.TileAssignmentDevices)
		assert.Equal(t, xla_data.OpSharding_MANUAL, distributed.ManualSharding().Type)
	})
}
