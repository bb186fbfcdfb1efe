package terrgen

import "sort"

type zRange struct {
	start, end uint32
}

type tileFillState struct {
	influxSpans []influxSpan
}

type influxSpan struct {
	x, y uint32
	z    zRange
}

// FloodFill replaces every voxel of type from that is Z-face reachable
// from one of the start points with type to, in place. Start points
// are given in domain coordinates.
//
// The fill works tile by tile: spans crossing a tile border are queued
// as influx for the neighboring tile, so each tile's RLE data is
// visited a bounded number of times.
func (b *VoxelBitmap) FloodFill(startPoints [][3]uint32, from, to VoxelType) {
	domain := &b.domain
	tileSize := domain.TileSize()
	tileSizeBits := domain.TileSizeBits

	pendingTiles := map[[2]uint32]*tileFillState{}
	var tileQueue [][2]uint32

	enqueue := func(tile [2]uint32, span influxSpan) {
		state, ok := pendingTiles[tile]
		if !ok {
			state = &tileFillState{}
			pendingTiles[tile] = state
			tileQueue = append(tileQueue, tile)
		}
		state.influxSpans = append(state.influxSpans, span)
	}

	for _, p := range startPoints {
		tile := [2]uint32{p[0] / tileSize[0], p[1] / tileSize[1]}
		if tile[0] >= domain.TileCount[0] || tile[1] >= domain.TileCount[1] || p[2] >= domain.Depth {
			continue
		}
		enqueue(tile, influxSpan{
			x: p[0] % tileSize[0],
			y: p[1] % tileSize[1],
			z: zRange{p[2], p[2] + 1},
		})
	}

	// Tile-local state. influxHead chains pending spans per row;
	// rowQueue holds the rows with a non-empty chain.
	rowCount := int(tileSize[0]) * int(tileSize[1])
	influx := make([][]zRange, rowCount)
	rowQueue := make([][2]uint32, 0, rowCount)
	var outflux []influxSpan

	var flattener rangeFlattener
	var flattened []zRange

	for len(tileQueue) > 0 {
		tileID := tileQueue[0]
		tileQueue = tileQueue[1:]
		tileState := pendingTiles[tileID]
		delete(pendingTiles, tileID)

		tile := &b.tiles[tileID[0]+tileID[1]*domain.TileCount[0]]

		for _, in := range tileState.influxSpans {
			i := in.x + in.y*tileSize[0]
			if len(influx[i]) == 0 {
				rowQueue = append(rowQueue, [2]uint32{in.x, in.y})
			}
			influx[i] = append(influx[i], in.z)
		}

		for len(rowQueue) > 0 {
			row := rowQueue[0]
			rowQueue = rowQueue[1:]
			rowX, rowY := row[0], row[1]
			rowIdx := rowX + rowY*tileSize[0]

			// Flatten the row's influx spans into a sorted,
			// non-overlapping sequence so the fill below can walk both
			// lists like a merge sort.
			flattener.clear()
			for _, z := range influx[rowIdx] {
				flattener.insert(z)
			}
			influx[rowIdx] = influx[rowIdx][:0]
			flattened = flattener.union(flattened[:0])

			spans := tile.row(rowX, rowY, tileSize[0])
			spanZStart := uint32(0)
			fluxIdx := 0
			flux := flattened[fluxIdx]

		fillLoop:
			for si := range spans {
				spanZEnd := uint32(spans[si].ZEnd)

				if spans[si].Type == from {
					for flux.end <= spanZStart {
						fluxIdx++
						if fluxIdx >= len(flattened) {
							break fillLoop
						}
						flux = flattened[fluxIdx]
					}

					if spanZEnd > flux.start {
						spans[si].Type = to

						// Propagate to the four neighboring rows.
						z := zRange{spanZStart, spanZEnd}
						dirs := [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
						for _, d := range dirs {
							adjX := int32(rowX) + d[0]
							adjY := int32(rowY) + d[1]
							if adjX >= 0 && adjY >= 0 &&
								adjX < int32(tileSize[0]) && adjY < int32(tileSize[1]) {
								i := uint32(adjX) + uint32(adjY)*tileSize[0]
								if len(influx[i]) == 0 {
									rowQueue = append(rowQueue, [2]uint32{uint32(adjX), uint32(adjY)})
								}
								influx[i] = append(influx[i], z)
							} else {
								outflux = append(outflux, influxSpan{
									x: uint32(adjX),
									y: uint32(adjY),
									z: z,
								})
							}
						}
					}
				}

				spanZStart = spanZEnd
			}
		}

		// Hand the border spans to the adjacent tiles.
		for _, out := range outflux {
			adjTileX := tileID[0] + uint32(int32(out.x)>>tileSizeBits)
			adjTileY := tileID[1] + uint32(int32(out.y)>>tileSizeBits)
			if adjTileX >= domain.TileCount[0] || adjTileY >= domain.TileCount[1] {
				continue
			}
			enqueue([2]uint32{adjTileX, adjTileY}, influxSpan{
				x: out.x % tileSize[0],
				y: out.y % tileSize[1],
				z: out.z,
			})
		}
		outflux = outflux[:0]
	}
}

// rangeFlattener merges a set of possibly overlapping ranges into
// their sorted union.
type rangeFlattener struct {
	endpoints []rangeEndpoint
}

type rangeEndpoint struct {
	pos   uint32
	delta int32
}

func (f *rangeFlattener) clear() { f.endpoints = f.endpoints[:0] }

func (f *rangeFlattener) insert(r zRange) {
	f.endpoints = append(f.endpoints,
		rangeEndpoint{r.start, 1},
		rangeEndpoint{r.end, -1})
}

// union appends the merged, sorted ranges to out and returns it.
func (f *rangeFlattener) union(out []zRange) []zRange {
	endpoints := f.endpoints
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].pos < endpoints[j].pos })

	i := 0
	state := int32(0)
	var start uint32

	for i < len(endpoints) {
		// Track the nesting level across equal positions.
		pos := endpoints[i].pos
		newState := state
		for i < len(endpoints) && endpoints[i].pos == pos {
			newState += endpoints[i].delta
			i++
		}

		if state == 0 {
			if newState != 0 {
				start = pos
			}
		} else if newState == 0 {
			out = append(out, zRange{start, pos})
		}

		state = newState
	}

	return out
}
