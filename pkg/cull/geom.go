package cull

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// jacobianFromProjection calculates the Jacobian matrix of the projective
// transformation m at the point p given in homogeneous coordinates.
func jacobianFromProjection(m mgl32.Mat4, p mgl32.Vec4) mgl32.Mat3 {
	// ((a + bt) / (c + dt)) d/dt at t=0 = b/c - (a/c)*d/c
	c0 := m.Col(0)
	c1 := m.Col(1)
	c2 := m.Col(2)

	m11 := mgl32.Mat3FromCols(c0.Vec3(), c1.Vec3(), c2.Vec3())

	th := m.Mul4x1(p)
	fac := 1 / th.W()
	t := th.Vec3().Mul(fac)

	sub := mgl32.Mat3FromCols(t.Mul(c0.W()), t.Mul(c1.W()), t.Mul(c2.W()))
	return subMat3(m11, sub).Mul(fac)
}

func subMat3(a, b mgl32.Mat3) mgl32.Mat3 {
	var out mgl32.Mat3
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return out
}

// projectorToLatitudinalLine finds the matrix that maps a directional
// vector x to the point where the plane containing x and elevAxis meets
// the latitudinal line at the given azimuth:
//
//	x' = (x × elevAxis) × p  where p = [-sin θ, cos θ, 0]
//	   = (elevAxis pᵀ - E elevAxis·p) x
func projectorToLatitudinalLine(azimuth float32, elevAxis mgl32.Vec3) mgl32.Mat3 {
	p := mgl32.Vec3{sin32(azimuth), -cos32(azimuth), 0}
	dot := elevAxis.Dot(p)
	return mgl32.Mat3{
		elevAxis.X()*p.X() - dot,
		elevAxis.Y() * p.X(),
		elevAxis.Z() * p.X(),
		elevAxis.X() * p.Y(),
		elevAxis.Y()*p.Y() - dot,
		elevAxis.Z() * p.Y(),
		elevAxis.X() * p.Z(),
		elevAxis.Y() * p.Z(),
		elevAxis.Z()*p.Z() - dot,
	}
}

// inclinationRange is the portion of a latitudinal line bounded on one
// side: [-π/2, Angle] when Upper, [Angle, π/2] otherwise.
type inclinationRange struct {
	Upper bool
	Angle float32
}

// inclinationIntersectingHalfSpace finds where the latitudinal line at
// the given azimuth meets the half space dot(x, normal) >= 0 containing
// the origin.
func inclinationIntersectingHalfSpace(azimuth float32, normal mgl32.Vec3) inclinationRange {
	px := cos32(azimuth)
	py := sin32(azimuth)
	n0 := normal.X()*px + normal.Y()*py
	n1 := normal.Z()

	if n1 < 0 {
		return inclinationRange{Upper: true, Angle: atan232(n0, -n1)}
	}
	return inclinationRange{Upper: false, Angle: atan232(-n0, n1)}
}

// clamp intersects r with the interval [lo, hi].
func (r inclinationRange) clamp(lo, hi float32) (float32, float32) {
	if r.Upper {
		return lo, min32(hi, r.Angle)
	}
	return max32(lo, r.Angle), hi
}

// sphericalToCartesian converts (1, azimuth, inclination) to cartesian
// coordinates.
func sphericalToCartesian(azimuth, inclination float32) mgl32.Vec3 {
	aCos, aSin := cos32(azimuth), sin32(azimuth)
	iCos, iSin := cos32(inclination), sin32(inclination)
	return mgl32.Vec3{aCos * iCos, aSin * iCos, iSin}
}

// sphericalToCartesianDAzimuth is ∂sphericalToCartesian/∂azimuth.
func sphericalToCartesianDAzimuth(azimuth, inclination float32) mgl32.Vec3 {
	aCos, aSin := cos32(azimuth), sin32(azimuth)
	iCos := cos32(inclination)
	return mgl32.Vec3{-aSin * iCos, aCos * iCos, 0}
}

// unprojectorXYToInfinity finds the 3x3 matrix U such that for the
// viewport-to-model matrix m, U * [x y 1] is the direction in which the
// viewport point (x, y) unprojects to infinity: U picks the z making
// m * [x y z 1] a point at infinity.
func unprojectorXYToInfinity(m mgl32.Mat4) mgl32.Mat3 {
	t := 1 / m.Col(2).W()
	x := m.Col(0).Sub(m.Col(2).Mul(m.Col(0).W() * t))
	y := m.Col(1).Sub(m.Col(2).Mul(m.Col(1).W() * t))
	w := m.Col(3).Sub(m.Col(2).Mul(m.Col(3).W() * t))
	return mgl32.Mat3FromCols(x.Vec3(), y.Vec3(), w.Vec3())
}

// fromHomogeneous performs the perspective division of a Vec4.
func fromHomogeneous(v mgl32.Vec4) mgl32.Vec3 {
	return v.Vec3().Mul(1 / v.W())
}

func sin32(x float32) float32   { return float32(math.Sin(float64(x))) }
func cos32(x float32) float32   { return float32(math.Cos(float64(x))) }
func ceil32(x float32) float32  { return float32(math.Ceil(float64(x))) }
func floor32(x float32) float32 { return float32(math.Floor(float64(x))) }

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func atan232(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func isFinite32(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}
