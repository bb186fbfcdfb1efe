package terrgen

import (
	"fmt"
	"math/bits"
	"sync/atomic"
	"time"

	"penumbra/internal/logger"
	"penumbra/pkg/cull"
)

// BuilderConfig configures the terrain build pipeline.
type BuilderConfig struct {
	// Size is the world extent in voxels along X and Y. Both components
	// must be powers of two.
	Size [2]uint32

	// Depth is the world extent in voxels along Z. Must be below 65536.
	Depth uint32

	// TileSizeBits is the log2 edge length of a voxelization tile.
	TileSizeBits uint32

	// Downsample is the log2 factor by which the X-Y grid is coarsened
	// before export. Zero keeps the full resolution.
	Downsample uint32

	// TileBudget caps the dense bitmap size of a single tile, in bytes.
	// When a tile would exceed it, the builder retries with smaller
	// tiles. Zero means no cap.
	TileBudget int

	// BinCapacity is the number of polygons buffered per binner before
	// flushing. Zero selects a reasonable default.
	BinCapacity int
}

const defaultBinCapacity = 4096

// Builder runs the terrain build pipeline and retains the last terrain
// it produced. Build may be called repeatedly as the occluder geometry
// changes; readers obtain a consistent snapshot through Terrain at any
// time, including while a build is in progress.
type Builder struct {
	cfg  BuilderConfig
	log  *logger.Logger
	last atomic.Pointer[cull.Terrain]
}

// NewBuilder validates the configuration and creates a Builder.
func NewBuilder(cfg BuilderConfig, log *logger.Logger) (*Builder, error) {
	if cfg.Size[0] == 0 || cfg.Size[1] == 0 ||
		bits.OnesCount32(cfg.Size[0]) != 1 || bits.OnesCount32(cfg.Size[1]) != 1 {
		return nil, ErrUnsupportedSize
	}
	if cfg.Depth == 0 || cfg.Depth >= 1<<16 {
		return nil, fmt.Errorf("terrgen: depth %d out of range", cfg.Depth)
	}
	if cfg.TileSizeBits < minTileSizeBits {
		return nil, fmt.Errorf("terrgen: tile size bits %d below minimum %d",
			cfg.TileSizeBits, minTileSizeBits)
	}
	if cfg.Downsample > cfg.TileSizeBits {
		return nil, fmt.Errorf("terrgen: downsample %d exceeds tile size bits %d",
			cfg.Downsample, cfg.TileSizeBits)
	}
	maxBits := min32u(log2u32(cfg.Size[0]), log2u32(cfg.Size[1]))
	if cfg.TileSizeBits > maxBits {
		return nil, fmt.Errorf("terrgen: tile size bits %d exceeds domain size", cfg.TileSizeBits)
	}
	if cfg.BinCapacity == 0 {
		cfg.BinCapacity = defaultBinCapacity
	}
	return &Builder{cfg: cfg, log: log}, nil
}

// minTileSizeBits is the smallest tile the budget retry loop will try.
const minTileSizeBits = 4

// Terrain returns the most recently built terrain, or nil if no build
// has succeeded yet.
func (b *Builder) Terrain() *cull.Terrain {
	return b.last.Load()
}

// Build voxelizes the polygons, flood-fills reachable space from the
// view points, erodes the result and exports a terrain pyramid. The
// polygons must lie within the configured domain. On success the new
// terrain replaces the one served by Terrain; on failure the previous
// terrain stays in place.
func (b *Builder) Build(polygons []Polygon, viewPoints [][3]uint32) (*cull.Terrain, error) {
	start := time.Now()

	tileSizeBits := b.cfg.TileSizeBits
	var bitmap *VoxelBitmap
	for {
		domain := InitialDomain{
			TileSizeBits: tileSizeBits,
			Depth:        b.cfg.Depth,
			TileCount: [2]uint32{
				b.cfg.Size[0] >> tileSizeBits,
				b.cfg.Size[1] >> tileSizeBits,
			},
		}

		set := NewBinnedGeometry(&domain)
		binner := NewPolygonBinner(b.cfg.BinCapacity, &domain, set)
		for _, poly := range polygons {
			binner.Insert(poly)
		}
		binner.Flush()

		var err error
		bitmap, err = VoxelizeGeometry(&domain, set, b.cfg.TileBudget)
		if err == nil {
			break
		}
		if err != ErrTileBudget {
			return nil, err
		}
		floor := max32u(minTileSizeBits, b.cfg.Downsample)
		if tileSizeBits <= floor {
			return nil, fmt.Errorf("terrgen: tile budget %d unsatisfiable at %d-bit tiles: %w",
				b.cfg.TileBudget, tileSizeBits, err)
		}
		tileSizeBits--
		if b.log != nil {
			b.log.Warnf("tile budget exceeded, retrying with %d-bit tiles", tileSizeBits)
		}
	}

	bitmap.FloodFill(viewPoints, Empty, View)
	eroded := bitmap.ErodeView()

	terrain, err := eroded.ToTerrain(b.cfg.Downsample)
	if err != nil {
		return nil, err
	}

	b.last.Store(terrain)
	if b.log != nil {
		size := terrain.Size()
		b.log.Infof("terrain built in %v (%dx%dx%d, %d polygons)",
			time.Since(start), size[0], size[1], size[2], len(polygons))
	}
	return terrain, nil
}

func log2u32(x uint32) uint32 { return uint32(bits.Len32(x)) - 1 }

func min32u(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32u(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
