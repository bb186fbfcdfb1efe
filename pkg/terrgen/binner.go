package terrgen

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// BinnedGeometry is a polygon soup sorted into the tiles of an initial
// domain. Polygons are stored in tile-local coordinates; a polygon
// overlapping several tiles is stored once per tile.
type BinnedGeometry struct {
	mu    sync.Mutex
	tiles [][]Polygon
}

// NewBinnedGeometry constructs an empty BinnedGeometry for the domain.
func NewBinnedGeometry(domain *InitialDomain) *BinnedGeometry {
	return &BinnedGeometry{
		tiles: make([][]Polygon, domain.TileCount[0]*domain.TileCount[1]),
	}
}

// PolygonBinner buffers polygons and flushes them to a BinnedGeometry
// in batches. Buffering keeps the shared geometry lock short and rare,
// so several binners can feed one BinnedGeometry from separate
// goroutines.
type PolygonBinner struct {
	set         *BinnedGeometry
	numPolygons int
	maxPolygons int
	tileSize    mgl32.Vec2
	tileSizeInv mgl32.Vec2
	tileMax     mgl32.Vec2
	tileCountX  uint32
	tiles       map[[2]uint32][]Polygon
}

// NewPolygonBinner constructs a PolygonBinner feeding set. capacity is
// the number of buffered polygons that triggers an automatic flush.
func NewPolygonBinner(capacity int, domain *InitialDomain, set *BinnedGeometry) *PolygonBinner {
	ts := domain.TileSize()
	tileSize := mgl32.Vec2{float32(ts[0]), float32(ts[1])}
	return &PolygonBinner{
		set:         set,
		maxPolygons: capacity,
		tileSize:    tileSize,
		tileSizeInv: mgl32.Vec2{1 / tileSize.X(), 1 / tileSize.Y()},
		tileMax: mgl32.Vec2{
			float32(domain.TileCount[0]) - 1,
			float32(domain.TileCount[1]) - 1,
		},
		tileCountX: domain.TileCount[0],
		tiles:      map[[2]uint32][]Polygon{},
	}
}

// Flush appends the buffered polygons to the BinnedGeometry.
func (b *PolygonBinner) Flush() {
	if len(b.tiles) == 0 {
		return
	}

	b.set.mu.Lock()
	for coords, polygons := range b.tiles {
		i := coords[0] + coords[1]*b.tileCountX
		b.set.tiles[i] = append(b.set.tiles[i], polygons...)
		delete(b.tiles, coords)
	}
	b.set.mu.Unlock()

	b.numPolygons = 0
}

// Insert adds one polygon, binning it into every tile its bounding box
// overlaps.
func (b *PolygonBinner) Insert(polygon Polygon) {
	xMin, xMax := polygon[0].X()*b.tileSizeInv.X(), polygon[0].X()*b.tileSizeInv.X()
	yMin, yMax := polygon[0].Y()*b.tileSizeInv.Y(), polygon[0].Y()*b.tileSizeInv.Y()
	for _, p := range polygon[1:] {
		xMin = minf(xMin, p.X()*b.tileSizeInv.X())
		xMax = maxf(xMax, p.X()*b.tileSizeInv.X())
		yMin = minf(yMin, p.Y()*b.tileSizeInv.Y())
		yMax = maxf(yMax, p.Y()*b.tileSizeInv.Y())
	}

	x1 := int32(maxf(xMin, 0))
	y1 := int32(maxf(yMin, 0))
	x2 := int32(minf(xMax, b.tileMax.X()))
	y2 := int32(minf(yMax, b.tileMax.Y()))

	if x1 > x2 || y1 > y2 {
		return
	}

	if b.numPolygons+int(x2-x1+1)*int(y2-y1+1) > b.maxPolygons {
		b.Flush()
	}

	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			origin := mgl32.Vec3{float32(x) * b.tileSize.X(), float32(y) * b.tileSize.Y(), 0}
			local := Polygon{
				polygon[0].Sub(origin),
				polygon[1].Sub(origin),
				polygon[2].Sub(origin),
			}
			key := [2]uint32{uint32(x), uint32(y)}
			b.tiles[key] = append(b.tiles[key], local)
			b.numPolygons++
		}
	}
}
