package cull

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// reversePerspective builds a projection whose depth z/w is
// near/distance, matching the depth convention of the pipeline.
func reversePerspective(fovy, aspect, near float32) mgl32.Mat4 {
	f := 1 / float32(math.Tan(float64(fovy)/2))
	return mgl32.Mat4FromRows(
		mgl32.Vec4{f / aspect, 0, 0, 0},
		mgl32.Vec4{0, f, 0, 0},
		mgl32.Vec4{0, 0, 0, near},
		mgl32.Vec4{0, 0, -1, 0},
	)
}

func TestSetCameraSanity(t *testing.T) {
	rast := NewRast(64)

	eye := mgl32.Vec3{1, 2, -3}
	p := mgl32.Frustum(-0.5, 0.5, -0.5, 0.5, 1, 100)
	v := mgl32.LookAtV(eye, mgl32.Vec3{40, -20, 30}, mgl32.Vec3{0.2, 0.5, 0.8})

	require.NoError(t, rast.SetCamera(p.Mul4(v)))

	requireVec3InDelta(t, eye, rast.Eye(), 0.001)
	require.NotEmpty(t, rast.beams)

	// Each beam projection maps its inclination range onto the segment
	// from (0, 0) to (0, 1) at a constant z.
	for i := range rast.beams {
		beam := &rast.beams[i]
		p1 := fromHomogeneous(beam.projection.Mul4x1(
			sphericalToCartesian(0, beam.inclination1).Vec4(0)))
		p2 := fromHomogeneous(beam.projection.Mul4x1(
			sphericalToCartesian(0, beam.inclination2).Vec4(0)))

		require.InDelta(t, 0, float64(p1.X()), 0.001)
		require.InDelta(t, 0, float64(p1.Y()), 0.001)
		require.InDelta(t, 0, float64(p2.X()), 0.001)
		require.InDelta(t, 1, float64(p2.Y()), 0.001)
		require.InDelta(t, float64(p1.Z()), float64(p2.Z()), 0.001)
	}
}

func TestSetCameraRejectsBadMatrices(t *testing.T) {
	rast := NewRast(16)

	nan := float32(math.NaN())
	m := mgl32.Ident4()
	m.Set(0, 0, nan)
	require.ErrorIs(t, rast.SetCamera(m), ErrNonFinite)

	require.ErrorIs(t, rast.SetCamera(mgl32.Mat4{}), ErrSingularMatrix)
}

// A finite, invertible matrix can still drive the projected speed of a
// latitudinal line to infinity, collapsing the computed beam width to
// exactly zero. SetCamera must reject it instead of stalling the
// azimuth sweep.
func TestSetCameraRejectsZeroWidthBeam(t *testing.T) {
	rast := NewRast(16)

	p := mgl32.Frustum(-0.5, 0.5, -0.5, 0.5, 1, 100)
	v := mgl32.LookAtV(mgl32.Vec3{1, 2, -3}, mgl32.Vec3{40, -20, 30}, mgl32.Vec3{0.2, 0.5, 0.8})
	m := p.Mul4(v)
	m.SetRow(0, m.Row(0).Mul(1e30))

	require.ErrorIs(t, rast.SetCamera(m), ErrNonFinite)
}

// wallTerrain builds a 64x64x16 terrain with a thin floor and a solid
// full-height block occupying x >= 32.
func wallTerrain(t *testing.T) *Terrain {
	t.Helper()
	base := make([]Row, 64*64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x >= 32 {
				base[x+y*64] = Row{{0, 16}}
			} else {
				base[x+y*64] = Row{{0, 1}}
			}
		}
	}
	terrain, err := NewTerrainFromBase([3]int{64, 64, 16}, base)
	require.NoError(t, err)
	return terrain
}

func TestRastRenderCoverage(t *testing.T) {
	terrain := wallTerrain(t)

	eye := mgl32.Vec3{16, 32, 8}
	view := mgl32.LookAtV(eye, eye.Add(mgl32.Vec3{1, 0, 0}), mgl32.Vec3{0, 0, 1})
	camera := reversePerspective(mgl32.DegToRad(60), 1, 1).Mul4(view)

	rast := NewRast(64)
	require.NoError(t, rast.SetCamera(camera))
	requireVec3InDelta(t, eye, rast.Eye(), 0.01)

	rast.Update(terrain)

	output := NewDepthImage(64, 64)
	rast.RasterizeTo(output)

	// Every pixel must have been written: unwritten +Inf pixels would
	// silently occlude everything behind them.
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			d := output.At(x, y)
			require.True(t, isFinite32(d), "pixel (%d,%d) left unwritten", x, y)
			require.GreaterOrEqual(t, d, float32(-0.1))
			// Nothing is nearer than the near plane.
			require.LessOrEqual(t, d, float32(1))
		}
	}
}

func TestRastQuerySoundness(t *testing.T) {
	terrain := wallTerrain(t)

	eye := mgl32.Vec3{16, 32, 8}
	view := mgl32.LookAtV(eye, eye.Add(mgl32.Vec3{1, 0, 0}), mgl32.Vec3{0, 0, 1})
	camera := reversePerspective(mgl32.DegToRad(70), 1, 1).Mul4(view)

	rast := NewRast(64)
	require.NoError(t, rast.SetCamera(camera))
	rast.Update(terrain)

	output := NewDepthImage(64, 64)
	rast.RasterizeTo(output)

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

	// A box fully behind the wall is hidden.
	visible, err := output.QueryAABB(clipBox(
		mgl32.Vec3{46, 30, 6}, mgl32.Vec3{50, 34, 10}))
	require.NoError(t, err)
	require.False(t, visible)

	// The same box between the eye and the wall is not.
	visible, err = output.QueryAABB(clipBox(
		mgl32.Vec3{22, 30, 6}, mgl32.Vec3{26, 34, 10}))
	require.NoError(t, err)
	require.True(t, visible)

	// A box floating above the wall pokes over the horizon.
	visible, err = output.QueryAABB(clipBox(
		mgl32.Vec3{40, 30, 22}, mgl32.Vec3{44, 34, 26}))
	require.NoError(t, err)
	require.True(t, visible)
}
