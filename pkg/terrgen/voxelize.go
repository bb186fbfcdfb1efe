package terrgen

import (
	"fmt"
	"runtime"
	"sync"
)

// VoxelBitmap is an RLE-encoded voxel bitmap covering an initial
// domain, one page of spans per tile.
type VoxelBitmap struct {
	domain InitialDomain
	tiles  []voxelTile
}

type voxelTile struct {
	// rle holds one or more Spans per row; each row's sequence is
	// terminated by a Span whose ZEnd equals the domain depth.
	rle []Span
	// rleIndex maps a tile-local row (x + y*tileSize) to its range in
	// rle: rleIndex[i] .. rleIndex[i+1].
	rleIndex []int32
}

func (t *voxelTile) row(x, y, sizeX uint32) []Span {
	i := x + y*sizeX
	return t.rle[t.rleIndex[i]:t.rleIndex[i+1]]
}

// Domain returns the initial domain this bitmap covers.
func (b *VoxelBitmap) Domain() InitialDomain { return b.domain }

// VoxelizeGeometry constructs a VoxelBitmap by conservatively
// voxelizing binned geometry. tileBudget bounds the memory, in bytes,
// of the dense per-tile scratch bitmap; a domain whose tiles would
// exceed it fails with ErrTileBudget so the caller can retry with
// smaller tiles.
func VoxelizeGeometry(domain *InitialDomain, geometry *BinnedGeometry, tileBudget int) (*VoxelBitmap, error) {
	ts := domain.TileSize()
	if ts[2] >= 65536 {
		return nil, fmt.Errorf("failed to voxelize: domain depth %d exceeds 65535", ts[2])
	}
	if tileBudget > 0 {
		bytes := int(ts[0]) * int(ts[1]) * bitWords(ts[2]) * 8
		if bytes > tileBudget {
			return nil, ErrTileBudget
		}
	}

	bitmap := &VoxelBitmap{
		domain: *domain,
		tiles:  make([]voxelTile, len(geometry.tiles)),
	}

	// Tiles are independent; voxelize them in parallel with one
	// scratch voxelizer per goroutine.
	numWorkers := runtime.NumCPU()
	if numWorkers > len(geometry.tiles) {
		numWorkers = len(geometry.tiles)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	tilesPerWorker := len(geometry.tiles) / numWorkers

	for g := 0; g < numWorkers; g++ {
		wg.Add(1)

		start := g * tilesPerWorker
		end := start + tilesPerWorker
		if g == numWorkers-1 {
			end = len(geometry.tiles)
		}

		go func(start, end int) {
			defer wg.Done()

			vox := newVoxelizer(ts)
			for i := start; i < end; i++ {
				vox.clear()
				for _, p := range geometry.tiles[i] {
					vox.drawPolygon(p)
				}
				tile := &bitmap.tiles[i]
				tile.rle, tile.rleIndex = vox.toRLE(nil, nil)
			}
		}(start, end)
	}

	wg.Wait()
	return bitmap, nil
}

// voxelizer rasterizes polygons into a dense per-tile bit array.
type voxelizer struct {
	// bitmap is indexed [y][x][z/64].
	bitmap   []uint64
	rowWords int
	zBuffer  []ZRange
	sizeX    uint32
	sizeY    uint32
	depth    uint32
	depthF   float32
}

func newVoxelizer(size [3]uint32) *voxelizer {
	rowWords := bitWords(size[2])
	return &voxelizer{
		bitmap:   make([]uint64, int(size[0])*int(size[1])*rowWords),
		rowWords: rowWords,
		zBuffer:  make([]ZRange, size[0]),
		sizeX:    size[0],
		sizeY:    size[1],
		depth:    size[2],
		depthF:   float32(size[2]),
	}
}

func (v *voxelizer) clear() {
	for i := range v.bitmap {
		v.bitmap[i] = 0
	}
}

func (v *voxelizer) rowWordsAt(x, y uint32) []uint64 {
	base := (int(x) + int(y)*int(v.sizeX)) * v.rowWords
	return v.bitmap[base : base+v.rowWords]
}

func (v *voxelizer) drawPolygon(p Polygon) {
	TriCRast(p, [2]uint32{v.sizeX, v.sizeY}, v.zBuffer, func(x0, y uint32, zRanges []ZRange) {
		for i, zr := range zRanges {
			zMin := int32(maxf(zr.Lo, 0))
			zMax := int32(minf(ceilf(zr.Hi), v.depthF))
			if zMin >= zMax {
				continue
			}
			row := v.rowWordsAt(x0+uint32(i), y)
			bitSetRange(row, uint32(zMin), uint32(zMax))
		}
	})
}

// toRLE encodes the dense bitmap into spans, reusing the given slices.
func (v *voxelizer) toRLE(rle []Span, rleIndex []int32) ([]Span, []int32) {
	rle = rle[:0]
	rleIndex = rleIndex[:0]
	for y := uint32(0); y < v.sizeY; y++ {
		for x := uint32(0); x < v.sizeX; x++ {
			rleIndex = append(rleIndex, int32(len(rle)))
			bitEnumSpans(v.rowWordsAt(x, y), v.depth, func(zEnd uint32, set bool) {
				spanType := Empty
				if set {
					spanType = Solid
				}
				rle = append(rle, Span{Type: spanType, ZEnd: uint16(zEnd)})
			})
		}
	}
	rleIndex = append(rleIndex, int32(len(rle)))
	return rle, rleIndex
}
