package terrgen

import (
	"fmt"
	"math/bits"

	"penumbra/pkg/cull"
)

// ToTerrain downsamples the bitmap in the X and Y directions by
// 2^downsample and builds the run-time terrain pyramid from the
// result. downsample must not exceed the tile size, and the final
// dimensions must be powers of two.
//
// A downsampled column is solid only where every covered source column
// is non-Empty, so the result never overstates the occluders.
func (b *VoxelBitmap) ToTerrain(downsample uint32) (*cull.Terrain, error) {
	domain := &b.domain
	if downsample > domain.TileSizeBits {
		return nil, fmt.Errorf("failed to export terrain: downsample %d exceeds tile size bits %d",
			downsample, domain.TileSizeBits)
	}

	size := domain.Size()
	outSize := [3]uint32{size[0] >> downsample, size[1] >> downsample, size[2]}
	for _, s := range outSize {
		if s == 0 || bits.OnesCount32(s) != 1 {
			return nil, ErrUnsupportedSize
		}
	}

	tileSize := domain.TileSize()
	outTileSizeX := tileSize[0] >> downsample
	outTileSizeY := tileSize[1] >> downsample

	base := make([]cull.Row, int(outSize[0])*int(outSize[1]))
	buffer := newIntersectBuffer(size[2])

	for tileY := uint32(0); tileY < domain.TileCount[1]; tileY++ {
		for tileX := uint32(0); tileX < domain.TileCount[0]; tileX++ {
			tile := &b.tiles[tileX+tileY*domain.TileCount[0]]

			for y := uint32(0); y < outTileSizeY; y++ {
				for x := uint32(0); x < outTileSizeX; x++ {
					buffer.fill(size[2])
					for sy := y << downsample; sy < (y+1)<<downsample; sy++ {
						for sx := x << downsample; sx < (x+1)<<downsample; sx++ {
							buffer.carve(tile.row(sx, sy, tileSize[0]))
						}
					}

					outX := tileX*outTileSizeX + x
					outY := tileY*outTileSizeY + y
					base[outX+outY*outSize[0]] = buffer.appendRow(nil)
				}
			}
		}
	}

	return cull.NewTerrainFromBase([3]int{int(outSize[0]), int(outSize[1]), int(outSize[2])}, base)
}

// intersectBuffer accumulates the intersection of voxel columns.
type intersectBuffer struct {
	bits []uint64
}

func newIntersectBuffer(depth uint32) *intersectBuffer {
	return &intersectBuffer{bits: make([]uint64, bitWords(depth))}
}

func (ib *intersectBuffer) fill(depth uint32) {
	for i := range ib.bits {
		ib.bits[i] = 0
	}
	bitSetRange(ib.bits, 0, depth)
}

// carve clears the bits covered by the row's Empty spans.
func (ib *intersectBuffer) carve(row []Span) {
	spanZStart := uint32(0)
	for _, s := range row {
		spanZEnd := uint32(s.ZEnd)
		if s.Type == Empty {
			bitClearRange(ib.bits, spanZStart, spanZEnd)
		}
		spanZStart = spanZEnd
	}
}

func (ib *intersectBuffer) appendRow(out cull.Row) cull.Row {
	zStart := uint32(0)
	bitEnumSpans(ib.bits, uint32(len(ib.bits))*wordBits, func(zEnd uint32, set bool) {
		if set {
			out = append(out, cull.Span{Z1: uint16(zStart), Z2: uint16(zEnd)})
		}
		zStart = zEnd
	})
	return out
}
