package engine

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"penumbra/internal/logger"
	"penumbra/pkg/config"
	"penumbra/pkg/terrgen"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Culling.Resolution = 64
	cfg.Terrain = config.TerrainConfig{
		SizeX:        64,
		SizeY:        64,
		Depth:        32,
		TileSizeBits: 4,
		Downsample:   0,
	}
	return cfg
}

// wallPolygons is a hollow wall slab crossing the whole domain along Y.
func wallPolygons() []terrgen.Polygon {
	lo := mgl32.Vec3{20.5, 0.5, 0.5}
	hi := mgl32.Vec3{27.5, 63.5, 30.5}
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
	var out []terrgen.Polygon
	for _, q := range quads {
		out = append(out, terrgen.Polygon{q[0], q[1], q[2]}, terrgen.Polygon{q[0], q[2], q[3]})
	}
	return out
}

func reversePerspective(fovy, aspect, near float32) mgl32.Mat4 {
	f := 1 / float32(math.Tan(float64(fovy)/2))
	return mgl32.Mat4FromRows(
		mgl32.Vec4{f / aspect, 0, 0, 0},
		mgl32.Vec4{0, f, 0, 0},
		mgl32.Vec4{0, 0, 0, near},
		mgl32.Vec4{0, 0, -1, 0},
	)
}

func TestEngineLifecycle(t *testing.T) {
	cfg := testConfig()
	eng, err := NewEngine(cfg, logger.NewLogger(cfg.Logging.Level))
	require.NoError(t, err)

	eye := mgl32.Vec3{8, 32, 16}
	view := mgl32.LookAtV(eye, eye.Add(mgl32.Vec3{1, 0, 0}), mgl32.Vec3{0, 0, 1})
	camera := reversePerspective(mgl32.DegToRad(60), 1, 1).Mul4(view)

	// Before any geometry, rendering fails but queries stay safe.
	require.ErrorIs(t, eng.RenderDepth(camera), ErrNoTerrain)
	require.Nil(t, eng.DepthImage())

	visible, err := eng.Query([]mgl32.Vec4{{0, 0, 0.5, 1}, {0, 0, 0.5, 1}, {0, 0, 0.5, 1}, {0, 0, 0.5, 1}})
	require.NoError(t, err)
	require.True(t, visible)

	require.NoError(t, eng.SetGeometry(wallPolygons(), [][3]uint32{{2, 2, 16}}))
	require.NoError(t, eng.RenderDepth(camera))
	require.NotNil(t, eng.DepthImage())

	clipBox := func(lo, hi mgl32.Vec3) []mgl32.Vec4 {
		var out []mgl32.Vec4
		for _, x := range []float32{lo.X(), hi.X()} {
			for _, y := range []float32{lo.Y(), hi.Y()} {
				for _, z := range []float32{lo.Z(), hi.Z()} {
					out = append(out, camera.Mul4x1(mgl32.Vec4{x, y, z, 1}))
				}
			}
		}
		return out
	}

	// The wall hides a box behind it and not one in front of it.
	visible, err = eng.Query(clipBox(mgl32.Vec3{40, 28, 12}, mgl32.Vec3{44, 36, 20}))
	require.NoError(t, err)
	require.False(t, visible)

	visible, err = eng.Query(clipBox(mgl32.Vec3{12, 28, 12}, mgl32.Vec3{16, 36, 20}))
	require.NoError(t, err)
	require.True(t, visible)
}

func TestEngineDropsNonFiniteTriangles(t *testing.T) {
	cfg := testConfig()
	eng, err := NewEngine(cfg, logger.NewLogger(cfg.Logging.Level))
	require.NoError(t, err)

	nan := float32(math.NaN())
	polys := append(wallPolygons(), terrgen.Polygon{
		{nan, 0, 0}, {1, 1, 1}, {2, 2, 2},
	})

	require.NoError(t, eng.SetGeometry(polys, [][3]uint32{{2, 2, 16}}))

	// The build succeeded despite the bad triangle.
	eye := mgl32.Vec3{8, 32, 16}
	view := mgl32.LookAtV(eye, eye.Add(mgl32.Vec3{1, 0, 0}), mgl32.Vec3{0, 0, 1})
	camera := reversePerspective(mgl32.DegToRad(60), 1, 1).Mul4(view)
	require.NoError(t, eng.RenderDepth(camera))
}
