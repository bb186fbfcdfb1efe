package cull

import (
	"fmt"
	"math/bits"
)

// Span is a run of consecutive solid voxels [Z1, Z2) on a line parallel
// to the Z axis.
type Span struct {
	Z1, Z2 uint16
}

// Row is the set of solid spans of a single (x, y) column, sorted by Z
// in ascending order.
type Row []Span

// Terrain is the multi-resolution occupancy representation consumed by
// the beam caster. All dimensions are powers of two.
//
// Level 0 is the base voxel grid, one row per (x, y) column. It is kept
// for building but never consulted during a cast.
//
// Level l (l >= 1) holds overlapping cells: the row at (x, y) covers the
// base region [x<<(l-1), (x+2)<<(l-1)) x [y<<(l-1), (y+2)<<(l-1)) and
// stores the intersection of the covered columns. A z value present in
// such a row is therefore solid across the cell's whole footprint, which
// is what makes a coarse cell usable as an occluder. Placing cells at
// half-cell granularity avoids the blind spot of aligned mipmaps, where
// a small solid region straddling cell borders never forms a usable
// coarse cell.
type Terrain struct {
	sizeBits [3]uint32
	levels   [][]Row
}

// NewTerrainFromBase builds a Terrain from a base-level grid.
// size must be powers of two; base must hold size[0]*size[1] rows in
// row-major (x + y*size[0]) order, each row sorted by Z.
func NewTerrainFromBase(size [3]int, base []Row) (*Terrain, error) {
	for i, n := range size {
		if n <= 0 || n&(n-1) != 0 {
			return nil, fmt.Errorf("terrain size must be a power of two, got %v", size)
		}
		if i == 2 && n > 1<<16 {
			return nil, fmt.Errorf("terrain depth %d exceeds 65536", n)
		}
	}
	if len(base) != size[0]*size[1] {
		return nil, fmt.Errorf("base level has %d rows, want %d", len(base), size[0]*size[1])
	}

	t := &Terrain{
		sizeBits: [3]uint32{
			uint32(bits.TrailingZeros(uint(size[0]))),
			uint32(bits.TrailingZeros(uint(size[1]))),
			uint32(bits.TrailingZeros(uint(size[2]))),
		},
	}

	numLevels := int(minU32(t.sizeBits[0], t.sizeBits[1])) + 1
	t.levels = make([][]Row, 0, numLevels)
	t.levels = append(t.levels, base)

	ds := newRowDownsampler(size[2])

	// Level 1 intersects the 2x2 column window at every base position.
	t.levels = append(t.levels, downsampleLevel(base, size[0], size[1], 1, ds))

	// Level l (l >= 2) intersects four level l-1 windows two steps apart,
	// halving the position granularity each time.
	for l := 2; l < numLevels; l++ {
		prev := t.levels[l-1]
		w := size[0] >> (l - 2)
		h := size[1] >> (l - 2)
		t.levels = append(t.levels, downsampleLevel(prev, w, h, 2, ds))
	}

	return t, nil
}

// downsampleLevel produces a grid of ceil(w/2) x ceil(h/2) rows (for
// step 2) or w x h rows (for step 1), each being the intersection of the
// four input rows at offsets {0, step} in both axes, clamped to the
// input extent.
func downsampleLevel(in []Row, w, h, step int, ds *rowDownsampler) []Row {
	outW, outH := w, h
	if step == 2 {
		outW = (w + 1) / 2
		outH = (h + 1) / 2
	}
	out := make([]Row, outW*outH)
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			x1 := ox * step
			y1 := oy * step
			x2 := minInt(x1+step, w-1)
			y2 := minInt(y1+step, h-1)
			out[ox+oy*outW] = ds.intersect([4]Row{
				in[x1+y1*w],
				in[x2+y1*w],
				in[x1+y2*w],
				in[x2+y2*w],
			})
		}
	}
	return out
}

// Size returns the base grid dimensions.
func (t *Terrain) Size() [3]int {
	return [3]int{1 << t.sizeBits[0], 1 << t.sizeBits[1], 1 << t.sizeBits[2]}
}

// NumLevels returns the number of levels including the base level.
func (t *Terrain) NumLevels() int { return len(t.levels) }

// FinestUsableLevel returns the finest level a cast may occupy.
// The base level is excluded by design.
func (t *Terrain) FinestUsableLevel() int { return 1 }

// LevelRow returns the span row of the level-l cell at position (x, y).
// For l >= 1 the position is expressed in units of 1<<(l-1) base cells.
func (t *Terrain) LevelRow(l, x, y int) Row {
	stride := 1 << t.sizeBits[0]
	if l >= 1 {
		stride >>= uint(l - 1)
	}
	return t.levels[l][x+y*stride]
}

// SolidAt reports whether the level-l cell at (x, y) is solid at depth z,
// i.e. whether every base voxel covered by the cell at that depth is
// solid.
func (t *Terrain) SolidAt(l, x, y, z int) bool {
	row := t.LevelRow(l, x, y)
	for _, s := range row {
		if z < int(s.Z1) {
			return false
		}
		if z < int(s.Z2) {
			return true
		}
	}
	return false
}

// rowDownsampler intersects span rows using a per-voxel counter, reused
// across rows to avoid reallocation.
type rowDownsampler struct {
	counts []uint8
}

func newRowDownsampler(depth int) *rowDownsampler {
	return &rowDownsampler{counts: make([]uint8, depth)}
}

func (d *rowDownsampler) intersect(rows [4]Row) Row {
	counts := d.counts
	for i := range counts {
		counts[i] = 0
	}
	for _, row := range rows {
		for _, s := range row {
			for z := s.Z1; z < s.Z2; z++ {
				counts[z]++
			}
		}
	}

	var out Row
	z := 0
	for z < len(counts) {
		if counts[z] == 4 {
			start := z
			for z < len(counts) && counts[z] == 4 {
				z++
			}
			out = append(out, Span{uint16(start), uint16(z)})
		} else {
			z++
		}
	}
	return out
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
