package terrgen

// ErodeView erodes the voxels complementary to View by one voxel in
// all six directions and returns the result as a new bitmap containing
// only Solid and Empty voxels:
//
//	(V = View, # = Solid, . = Empty)
//	input:         V V V V # . . . . # V # # # V
//	empty & solid: . . . . # # # # # # . # # # .
//	output:        . . . . . # # # # . . . # . .
//
// The erosion cancels the one-voxel dilation inherent to conservative
// voxelization, so the result is a safe underestimate of the original
// occluders.
func (b *VoxelBitmap) ErodeView() *VoxelBitmap {
	domain := &b.domain
	tileSize := domain.TileSize()
	depth := domain.Depth

	out := &VoxelBitmap{
		domain: *domain,
		tiles:  make([]voxelTile, len(b.tiles)),
	}

	buffer := newErodeBuffer(depth)
	var rle []Span
	var rleIndex []int32

	dirs := [9][2]int32{
		{-1, -1}, {0, -1}, {1, -1},
		{-1, 0}, {0, 0}, {1, 0},
		{-1, 1}, {0, 1}, {1, 1},
	}

	for tileY := uint32(0); tileY < domain.TileCount[1]; tileY++ {
		for tileX := uint32(0); tileX < domain.TileCount[0]; tileX++ {
			rle = rle[:0]
			rleIndex = rleIndex[:0]

			for y := uint32(0); y < tileSize[1]; y++ {
				for x := uint32(0); x < tileSize[0]; x++ {
					rleIndex = append(rleIndex, int32(len(rle)))

					buffer.fill(depth)

					// Intersect the row with its eight X-Y neighbors,
					// eroding laterally. Rows outside the domain count
					// as all non-View.
					for _, d := range dirs {
						row := b.neighborRow(tileX, tileY, int32(x)+d[0], int32(y)+d[1])
						if row != nil {
							buffer.carve(row)
						}
					}

					// Erode along Z.
					buffer.erode()

					rle = buffer.appendRLE(rle, depth)
				}
			}
			rleIndex = append(rleIndex, int32(len(rle)))

			tile := &out.tiles[tileX+tileY*domain.TileCount[0]]
			tile.rle = append([]Span(nil), rle...)
			tile.rleIndex = append([]int32(nil), rleIndex...)
		}
	}

	return out
}

// neighborRow resolves a row by tile-local coordinates that may stick
// one tile beyond the borders of (tileX, tileY). It returns nil outside
// the domain.
func (b *VoxelBitmap) neighborRow(tileX, tileY uint32, x, y int32) []Span {
	domain := &b.domain
	tileSize := domain.TileSize()

	tx, ty := int32(tileX), int32(tileY)
	if x < 0 {
		tx--
		x += int32(tileSize[0])
	} else if x >= int32(tileSize[0]) {
		tx++
		x -= int32(tileSize[0])
	}
	if y < 0 {
		ty--
		y += int32(tileSize[1])
	} else if y >= int32(tileSize[1]) {
		ty++
		y -= int32(tileSize[1])
	}

	if tx < 0 || ty < 0 || tx >= int32(domain.TileCount[0]) || ty >= int32(domain.TileCount[1]) {
		return nil
	}

	tile := &b.tiles[uint32(tx)+uint32(ty)*domain.TileCount[0]]
	return tile.row(uint32(x), uint32(y), tileSize[0])
}

// erodeBuffer computes per-row erosion on a dense bit array.
type erodeBuffer struct {
	bits []uint64
}

func newErodeBuffer(depth uint32) *erodeBuffer {
	return &erodeBuffer{bits: make([]uint64, bitWords(depth))}
}

func (e *erodeBuffer) fill(depth uint32) {
	for i := range e.bits {
		e.bits[i] = 0
	}
	bitSetRange(e.bits, 0, depth)
}

// carve clears the bits covered by the row's View spans.
func (e *erodeBuffer) carve(row []Span) {
	spanZStart := uint32(0)
	for _, s := range row {
		spanZEnd := uint32(s.ZEnd)
		if s.Type == View {
			bitClearRange(e.bits, spanZStart, spanZEnd)
		}
		spanZStart = spanZEnd
	}
}

// erode clears every set bit adjacent to a cleared one.
func (e *erodeBuffer) erode() {
	bits := e.bits
	last := uint64(0)
	for i := range bits {
		old := bits[i]
		var next uint64
		if i+1 < len(bits) {
			next = bits[i+1]
		}
		bits[i] = old & ((old >> 1) | (next << (wordBits - 1))) & ((old << 1) | last)
		last = old >> (wordBits - 1)
	}
}

func (e *erodeBuffer) appendRLE(out []Span, depth uint32) []Span {
	bitEnumSpans(e.bits, depth, func(zEnd uint32, set bool) {
		spanType := Empty
		if set {
			spanType = Solid
		}
		out = append(out, Span{Type: spanType, ZEnd: uint16(zEnd)})
	})
	return out
}
