// Package terrgen builds occluder terrains from triangle soups. The
// geometry is voxelized tile by tile into an RLE voxel bitmap, outside
// space is flood-filled from the supplied view points, the remainder is
// eroded by one voxel, and the result is downsampled into the run-time
// terrain pyramid.
package terrgen

import "errors"

var (
	// ErrTileBudget is returned when a single tile's voxel bitmap would
	// exceed the configured memory budget.
	ErrTileBudget = errors.New("tile exceeds the voxel bitmap memory budget")

	// ErrUnsupportedSize is returned when the downsampled domain is not
	// power-of-two sized.
	ErrUnsupportedSize = errors.New("domain dimensions must be powers of two")
)

// InitialDomain describes the organization of the data used before
// downsampling. It is comprised of TileCount[0] * TileCount[1] tiles
// arranged on an X-Y grid; each tile is an AABB of TileSize() voxels
// where a voxel is a 1x1x1 cube.
type InitialDomain struct {
	TileSizeBits uint32
	Depth        uint32
	TileCount    [2]uint32
}

// TileSize returns the dimensions of a tile, including the depth.
func (d *InitialDomain) TileSize() [3]uint32 {
	return [3]uint32{1 << d.TileSizeBits, 1 << d.TileSizeBits, d.Depth}
}

// Size returns the dimensions of the whole domain.
func (d *InitialDomain) Size() [3]uint32 {
	return [3]uint32{
		d.TileCount[0] << d.TileSizeBits,
		d.TileCount[1] << d.TileSizeBits,
		d.Depth,
	}
}

// VoxelType classifies a run of voxels.
type VoxelType uint8

const (
	// Empty voxels contain nothing.
	Empty VoxelType = iota
	// Solid voxels are occupied by geometry.
	Solid
	// View voxels are empty space reachable from a view point.
	View
)

// Span is a run of consecutive voxels of one type along the Z axis.
// ZEnd is the exclusive upper bound of the run; the start is the
// previous span's ZEnd, or zero. A row's last span always ends at the
// domain depth.
type Span struct {
	Type VoxelType
	ZEnd uint16
}
