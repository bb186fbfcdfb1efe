// Package engine ties the terrain builder, the beam rasterizer and the
// published depth image into a frame pipeline. Geometry rebuilds and
// depth passes publish their results with atomic pointer swaps, so
// visibility queries always see a complete, consistent snapshot.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"penumbra/internal/logger"
	"penumbra/pkg/config"
	"penumbra/pkg/cull"
	"penumbra/pkg/terrgen"
)

// ErrNoTerrain is returned by RenderDepth before any geometry has been
// set.
var ErrNoTerrain = errors.New("engine: no terrain has been built yet")

// Engine owns the occluder terrain, the beam rasterizer and the depth
// image served to visibility queries.
type Engine struct {
	config *config.Config
	logger *logger.Logger

	builder *terrgen.Builder

	// renderMu serializes depth passes; the rasterizer reuses its
	// internal sample buffers between frames.
	renderMu sync.Mutex
	rast     *cull.Rast

	depth   atomic.Pointer[cull.DepthImage]
	passGen atomic.Uint64
}

// NewEngine creates an engine from the configuration.
func NewEngine(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	builder, err := terrgen.NewBuilder(terrgen.BuilderConfig{
		Size:         [2]uint32{uint32(cfg.Terrain.SizeX), uint32(cfg.Terrain.SizeY)},
		Depth:        uint32(cfg.Terrain.Depth),
		TileSizeBits: uint32(cfg.Terrain.TileSizeBits),
		Downsample:   uint32(cfg.Terrain.Downsample),
		TileBudget:   cfg.Terrain.TileBudget,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terrain builder: %v", err)
	}

	rast := cull.NewRast(cfg.Culling.Resolution)
	if cfg.Culling.Workers > 0 {
		rast.SetWorkers(cfg.Culling.Workers)
	}

	return &Engine{
		config:  cfg,
		logger:  log,
		builder: builder,
		rast:    rast,
	}, nil
}

// SetGeometry rebuilds the occluder terrain from a triangle soup.
// Triangles with non-finite vertices are dropped with a warning rather
// than poisoning the build. The new terrain replaces the old one only
// once the whole pipeline has succeeded; queries keep using the
// previous terrain meanwhile.
func (e *Engine) SetGeometry(triangles []terrgen.Polygon, viewPoints [][3]uint32) error {
	polys := triangles
	dropped := 0
	for _, tri := range triangles {
		if !polygonFinite(tri) {
			dropped++
		}
	}
	if dropped > 0 {
		polys = make([]terrgen.Polygon, 0, len(triangles)-dropped)
		for _, tri := range triangles {
			if polygonFinite(tri) {
				polys = append(polys, tri)
			}
		}
		e.logger.Warnf("dropped %d non-finite occluder triangles", dropped)
	}

	_, err := e.builder.Build(polys, viewPoints)
	return err
}

// RenderDepth runs a full depth pass for the camera matrix and
// publishes the resulting depth image. If another pass starts before
// this one publishes, the stale result is discarded. The previously
// published image keeps serving queries whenever a pass fails, which
// errs on the side of reporting objects visible.
func (e *Engine) RenderDepth(camera mgl32.Mat4) error {
	terrain := e.builder.Terrain()
	if terrain == nil {
		return ErrNoTerrain
	}
	pass := e.passGen.Add(1)
	start := time.Now()

	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	if err := e.rast.SetCamera(camera); err != nil {
		return fmt.Errorf("depth pass rejected camera: %w", err)
	}
	e.rast.Update(terrain)

	size := e.config.Culling.Resolution
	image := cull.NewDepthImage(size, size)
	e.rast.RasterizeTo(image)

	if e.passGen.Load() != pass {
		// A newer pass started while this one was rasterizing.
		return nil
	}
	e.depth.Store(image)
	e.logger.Debugf("depth pass completed in %v", time.Since(start))
	return nil
}

// DepthImage returns the currently published depth image, or nil if no
// pass has completed.
func (e *Engine) DepthImage() *cull.DepthImage {
	return e.depth.Load()
}

// Query tests the convex hull of clip-space vertices against the
// currently published depth image. It reports false only when the hull
// is provably hidden; before the first depth pass everything is
// reported visible.
func (e *Engine) Query(vertices []mgl32.Vec4) (bool, error) {
	image := e.depth.Load()
	if image == nil {
		return true, nil
	}
	return image.QueryAABB(vertices)
}

func polygonFinite(p terrgen.Polygon) bool {
	for _, v := range p {
		for i := 0; i < 3; i++ {
			f := float64(v[i])
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}
