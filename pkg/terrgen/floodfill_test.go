package terrgen

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestRangeFlattener(t *testing.T) {
	var f rangeFlattener
	for _, r := range []zRange{{7, 11}, {3, 8}, {13, 15}, {15, 16}, {20, 24}} {
		f.insert(r)
	}
	require.Equal(t,
		[]zRange{{3, 11}, {13, 16}, {20, 24}},
		f.union(nil))

	f.clear()
	f.insert(zRange{5, 6})
	require.Equal(t, []zRange{{5, 6}}, f.union(nil))
}

// boxShell returns the twelve triangles of an axis-aligned box's
// surface.
func boxShell(lo, hi mgl32.Vec3) []Polygon {
	v := func(x, y, z int) mgl32.Vec3 {
		p := lo
		if x != 0 {
			p[0] = hi.X()
		}
		if y != 0 {
			p[1] = hi.Y()
		}
		if z != 0 {
			p[2] = hi.Z()
		}
		return p
	}
	quads := [6][4]mgl32.Vec3{
		{v(0, 0, 0), v(1, 0, 0), v(1, 1, 0), v(0, 1, 0)},
		{v(0, 0, 1), v(1, 0, 1), v(1, 1, 1), v(0, 1, 1)},
		{v(0, 0, 0), v(1, 0, 0), v(1, 0, 1), v(0, 0, 1)},
		{v(0, 1, 0), v(1, 1, 0), v(1, 1, 1), v(0, 1, 1)},
		{v(0, 0, 0), v(0, 1, 0), v(0, 1, 1), v(0, 0, 1)},
		{v(1, 0, 0), v(1, 1, 0), v(1, 1, 1), v(1, 0, 1)},
	}
	var out []Polygon
	for _, q := range quads {
		out = append(out, Polygon{q[0], q[1], q[2]}, Polygon{q[0], q[2], q[3]})
	}
	return out
}

// voxelizeShell builds a bitmap of a hollow box in a 16x16x16 domain
// split into the given tile layout.
func voxelizeShell(t *testing.T, tileSizeBits uint32) *VoxelBitmap {
	t.Helper()
	tiles := uint32(16) >> tileSizeBits
	domain := &InitialDomain{
		TileSizeBits: tileSizeBits,
		Depth:        16,
		TileCount:    [2]uint32{tiles, tiles},
	}
	set := NewBinnedGeometry(domain)
	binner := NewPolygonBinner(64, domain, set)
	for _, p := range boxShell(mgl32.Vec3{4.5, 4.5, 4.5}, mgl32.Vec3{11.5, 11.5, 11.5}) {
		binner.Insert(p)
	}
	binner.Flush()

	bitmap, err := VoxelizeGeometry(domain, set, 0)
	require.NoError(t, err)
	return bitmap
}

// typeAt resolves a single voxel's type from the RLE representation.
func typeAt(b *VoxelBitmap, x, y, z uint32) VoxelType {
	domain := &b.domain
	tileSize := domain.TileSize()
	tile := &b.tiles[x/tileSize[0]+y/tileSize[1]*domain.TileCount[0]]
	spans := tile.row(x%tileSize[0], y%tileSize[1], tileSize[0])
	start := uint32(0)
	for _, s := range spans {
		if z < uint32(s.ZEnd) && z >= start {
			return s.Type
		}
		start = uint32(s.ZEnd)
	}
	return Empty
}

func TestFloodFillHollowBox(t *testing.T) {
	// tileSizeBits 4 keeps everything in one tile; 3 forces the fill
	// to propagate across tile borders.
	for _, tileSizeBits := range []uint32{4, 3} {
		bitmap := voxelizeShell(t, tileSizeBits)

		require.Equal(t, Solid, typeAt(bitmap, 4, 8, 8), "shell wall")
		require.Equal(t, Empty, typeAt(bitmap, 8, 8, 8), "cavity")
		require.Equal(t, Empty, typeAt(bitmap, 0, 0, 0), "exterior")

		bitmap.FloodFill([][3]uint32{{0, 0, 0}}, Empty, View)

		// The exterior is reachable; the cavity is sealed off.
		require.Equal(t, View, typeAt(bitmap, 0, 0, 0), "bits=%d", tileSizeBits)
		require.Equal(t, View, typeAt(bitmap, 15, 15, 15), "bits=%d", tileSizeBits)
		require.Equal(t, View, typeAt(bitmap, 8, 8, 2), "bits=%d", tileSizeBits)
		require.Equal(t, Solid, typeAt(bitmap, 4, 8, 8), "bits=%d", tileSizeBits)
		require.Equal(t, Empty, typeAt(bitmap, 8, 8, 8), "bits=%d", tileSizeBits)
	}
}

func TestFloodFillStartPointValidation(t *testing.T) {
	bitmap := voxelizeShell(t, 4)

	// Out-of-domain start points are ignored; a start point inside a
	// solid voxel fills nothing.
	bitmap.FloodFill([][3]uint32{{99, 0, 0}, {0, 99, 0}, {0, 0, 99}}, Empty, View)
	require.Equal(t, Empty, typeAt(bitmap, 0, 0, 0))

	bitmap.FloodFill([][3]uint32{{4, 8, 8}}, Empty, View)
	require.Equal(t, Solid, typeAt(bitmap, 4, 8, 8))
	require.Equal(t, Empty, typeAt(bitmap, 0, 0, 0))
}
