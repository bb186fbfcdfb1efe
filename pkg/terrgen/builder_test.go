package terrgen

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder(BuilderConfig{Size: [2]uint32{48, 64}, Depth: 16, TileSizeBits: 4}, nil)
	require.Error(t, err)

	_, err = NewBuilder(BuilderConfig{Size: [2]uint32{64, 64}, Depth: 1 << 16, TileSizeBits: 4}, nil)
	require.Error(t, err)

	_, err = NewBuilder(BuilderConfig{Size: [2]uint32{64, 64}, Depth: 16, TileSizeBits: 3}, nil)
	require.Error(t, err)

	_, err = NewBuilder(BuilderConfig{Size: [2]uint32{64, 64}, Depth: 16, TileSizeBits: 7}, nil)
	require.Error(t, err)

	_, err = NewBuilder(BuilderConfig{
		Size: [2]uint32{64, 64}, Depth: 16, TileSizeBits: 4, Downsample: 5,
	}, nil)
	require.Error(t, err)

	b, err := NewBuilder(BuilderConfig{Size: [2]uint32{64, 64}, Depth: 16, TileSizeBits: 4}, nil)
	require.NoError(t, err)
	require.Nil(t, b.Terrain())
}

func TestBuilderPipeline(t *testing.T) {
	builder, err := NewBuilder(BuilderConfig{
		Size:         [2]uint32{16, 16},
		Depth:        16,
		TileSizeBits: 4,
	}, nil)
	require.NoError(t, err)

	polys := boxShell(mgl32.Vec3{4.5, 4.5, 4.5}, mgl32.Vec3{11.5, 11.5, 11.5})
	terrain, err := builder.Build(polys, [][3]uint32{{0, 0, 15}})
	require.NoError(t, err)
	require.Same(t, terrain, builder.Terrain())
	require.Equal(t, [3]int{16, 16, 16}, terrain.Size())

	// The eroded box spans [5, 11) on every axis; a level-1 cell fully
	// inside it is a usable occluder.
	require.True(t, terrain.SolidAt(1, 6, 6, 8))
	require.True(t, terrain.SolidAt(1, 5, 5, 5))
	require.False(t, terrain.SolidAt(1, 6, 6, 12))
	require.False(t, terrain.SolidAt(1, 0, 0, 8))
	// A cell straddling the box boundary touches eroded-away columns.
	require.False(t, terrain.SolidAt(1, 4, 6, 8))
}

func TestBuilderDownsample(t *testing.T) {
	builder, err := NewBuilder(BuilderConfig{
		Size:         [2]uint32{16, 16},
		Depth:        16,
		TileSizeBits: 4,
		Downsample:   1,
	}, nil)
	require.NoError(t, err)

	polys := boxShell(mgl32.Vec3{4.5, 4.5, 4.5}, mgl32.Vec3{11.5, 11.5, 11.5})
	terrain, err := builder.Build(polys, [][3]uint32{{0, 0, 15}})
	require.NoError(t, err)
	require.Equal(t, [3]int{8, 8, 16}, terrain.Size())

	// Downsampling intersects 2x2 column groups: only groups fully
	// inside the eroded box stay solid.
	require.True(t, terrain.SolidAt(1, 3, 3, 8))
	require.False(t, terrain.SolidAt(1, 0, 0, 8))
}

func TestBuilderTileBudgetRetry(t *testing.T) {
	// 32-voxel tiles need 32*32*8 bytes of scratch; 16-voxel tiles fit
	// in a quarter of that. The builder must fall back to the smaller
	// tiles and succeed.
	builder, err := NewBuilder(BuilderConfig{
		Size:         [2]uint32{32, 32},
		Depth:        16,
		TileSizeBits: 5,
		TileBudget:   4096,
	}, nil)
	require.NoError(t, err)

	polys := boxShell(mgl32.Vec3{4.5, 4.5, 4.5}, mgl32.Vec3{11.5, 11.5, 11.5})
	terrain, err := builder.Build(polys, [][3]uint32{{0, 0, 15}})
	require.NoError(t, err)
	require.NotNil(t, terrain)
	require.True(t, terrain.SolidAt(1, 6, 6, 8))
}

func TestBuilderTileBudgetUnsatisfiable(t *testing.T) {
	builder, err := NewBuilder(BuilderConfig{
		Size:         [2]uint32{32, 32},
		Depth:        16,
		TileSizeBits: 5,
		TileBudget:   64,
	}, nil)
	require.NoError(t, err)

	_, err = builder.Build(nil, [][3]uint32{{0, 0, 15}})
	require.ErrorIs(t, err, ErrTileBudget)
	require.Nil(t, builder.Terrain())
}
