package terrgen

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ZRange is the interval of Z values a triangle covers within one
// voxel column. Lo > Hi means the column is not covered.
type ZRange struct {
	Lo, Hi float32
}

// Polygon is a triangle in domain coordinates.
type Polygon [3]mgl32.Vec3

// TriCRast conservatively rasterizes a triangle on the X-Y plane.
//
// For every scanline the triangle touches, scanline is called with the
// coordinates of the left-most produced cell and the Z ranges of the
// consecutive cells starting there. The range of cell (x, y) bounds the
// Z values the triangle attains anywhere inside the unit square of that
// cell, computed by clipping the slice's border edges against the
// square.
//
// The viewport is x in [0, size[0]), y in [0, size[1]). zBuffer is
// scratch space with at least size[0] elements.
func TriCRast(
	vertices Polygon,
	size [2]uint32,
	zBuffer []ZRange,
	scanline func(x, y uint32, zRanges []ZRange),
) {
	v0, v1, v2 := vertices[0], vertices[1], vertices[2]

	// Sort by Y.
	if v1.Y() < v0.Y() {
		v0, v1 = v1, v0
	}
	if v2.Y() < v1.Y() {
		v1, v2 = v2, v1
	}
	if v1.Y() < v0.Y() {
		v0, v1 = v1, v0
	}

	zBuffer = zBuffer[:size[0]]
	if size[0] == 0 || size[1] == 0 {
		return
	}

	v0yi := int32(floorf(v0.Y()))
	v1yi := int32(floorf(v1.Y()))
	v2yi := int32(floorf(v2.Y()))

	yi := maxI32(0, v0yi)
	if yi >= int32(size[1]) {
		return
	}

	dx01 := (v1.X() - v0.X()) / (v1.Y() - v0.Y())
	dz01 := (v1.Z() - v0.Z()) / (v1.Y() - v0.Y())
	dx12 := (v2.X() - v1.X()) / (v2.Y() - v1.Y())
	dz12 := (v2.Z() - v1.Z()) / (v2.Y() - v1.Y())
	dx02 := (v2.X() - v0.X()) / (v2.Y() - v0.Y())
	dz02 := (v2.Z() - v0.Z()) / (v2.Y() - v0.Y())

	// Side 1 follows the edges 0-1 and 1-2, side 2 the edge 0-2.
	var sideX1, sideZ1, sideX2, sideZ2 float32

	emit := func(yi int32, xs ...float32) (uint32, []ZRange) {
		return initScanline(yi, zBuffer, xs)
	}

	topHalf := func() bool {
		if yi == v0yi {
			if yi == v2yi {
				// The whole triangle sits inside one scanline.
				if x0, r := emit(yi, v0.X(), v1.X(), v2.X()); r != nil {
					drawScanline(v0.X(), v0.Z(), v1.X(), v1.Z(), zBuffer)
					drawScanline(v1.X(), v1.Z(), v2.X(), v2.Z(), zBuffer)
					drawScanline(v0.X(), v0.Z(), v2.X(), v2.Z(), zBuffer)
					scanline(x0, uint32(yi), r)
				}
				return false
			}

			frac := float32(yi+1) - v0.Y()
			sideX2 = v0.X() + dx02*frac
			sideZ2 = v0.Z() + dz02*frac

			if yi == v1yi {
				// The top scanline contains both v0 and v1.
				frac := float32(yi+1) - v1.Y()
				sideX1 = v1.X() + dx12*frac
				sideZ1 = v1.Z() + dz12*frac

				if x0, r := emit(yi, v0.X(), v1.X(), sideX1, sideX2); r != nil {
					drawScanline(v0.X(), v0.Z(), v1.X(), v1.Z(), zBuffer)
					drawScanline(v1.X(), v1.Z(), sideX1, sideZ1, zBuffer)
					drawScanline(v0.X(), v0.Z(), sideX2, sideZ2, zBuffer)
					drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
					scanline(x0, uint32(yi), r)
				}

				yi++
				return true
			}

			sideX1 = v0.X() + dx01*frac
			sideZ1 = v0.Z() + dz01*frac

			if x0, r := emit(yi, v0.X(), sideX1, sideX2); r != nil {
				drawScanline(v0.X(), v0.Z(), sideX1, sideZ1, zBuffer)
				drawScanline(v0.X(), v0.Z(), sideX2, sideZ2, zBuffer)
				drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
				scanline(x0, uint32(yi), r)
			}
			yi++
		} else if yi > v1yi {
			// The clip plane cuts below v1; resume on the lower half.
			frac := float32(yi) - v0.Y()
			sideX2 = v0.X() + dx02*frac
			sideZ2 = v0.Z() + dz02*frac

			frac = float32(yi) - v1.Y()
			sideX1 = v1.X() + dx12*frac
			sideZ1 = v1.Z() + dz12*frac
			return true
		} else {
			frac := float32(yi) - v0.Y()
			sideX2 = v0.X() + dx02*frac
			sideZ2 = v0.Z() + dz02*frac
			sideX1 = v0.X() + dx01*frac
			sideZ1 = v0.Z() + dz01*frac
		}

		for yi < minI32(v1yi, int32(size[1])) {
			nextSideX1 := sideX1 + dx01
			nextSideZ1 := sideZ1 + dz01
			nextSideX2 := sideX2 + dx02
			nextSideZ2 := sideZ2 + dz02

			if x0, r := emit(yi, nextSideX1, nextSideX2, sideX1, sideX2); r != nil {
				drawScanline(nextSideX1, nextSideZ1, nextSideX2, nextSideZ2, zBuffer)
				drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
				drawScanline(sideX1, sideZ1, nextSideX1, nextSideZ1, zBuffer)
				drawScanline(sideX2, sideZ2, nextSideX2, nextSideZ2, zBuffer)
				scanline(x0, uint32(yi), r)
			}

			sideX1, sideZ1 = nextSideX1, nextSideZ1
			sideX2, sideZ2 = nextSideX2, nextSideZ2
			yi++
		}

		if yi >= int32(size[1]) {
			return false
		}

		if yi != v1yi {
			return false
		}

		if yi == v2yi {
			// The bottom scanline contains both v1 and v2.
			if x0, r := emit(yi, v2.X(), v1.X(), sideX1, sideX2); r != nil {
				drawScanline(v2.X(), v2.Z(), v1.X(), v1.Z(), zBuffer)
				drawScanline(v1.X(), v1.Z(), sideX1, sideZ1, zBuffer)
				drawScanline(v2.X(), v2.Z(), sideX2, sideZ2, zBuffer)
				drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
				scanline(x0, uint32(yi), r)
			}
			return false
		}

		// The scanline containing v1 spans both halves.
		frac := float32(yi+1) - v1.Y()
		nextSideX1 := v1.X() + dx12*frac
		nextSideZ1 := v1.Z() + dz12*frac
		nextSideX2 := sideX2 + dx02
		nextSideZ2 := sideZ2 + dz02

		if x0, r := emit(yi, nextSideX1, nextSideX2, sideX1, sideX2, v1.X()); r != nil {
			drawScanline(nextSideX1, nextSideZ1, nextSideX2, nextSideZ2, zBuffer)
			drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
			drawScanline(sideX1, sideZ1, v1.X(), v1.Z(), zBuffer)
			drawScanline(v1.X(), v1.Z(), nextSideX1, nextSideZ1, zBuffer)
			drawScanline(sideX2, sideZ2, nextSideX2, nextSideZ2, zBuffer)
			scanline(x0, uint32(yi), r)
		}

		sideX1, sideZ1 = nextSideX1, nextSideZ1
		sideX2, sideZ2 = nextSideX2, nextSideZ2
		yi++
		return true
	}

	if !topHalf() {
		return
	}

	for yi < minI32(v2yi, int32(size[1])) {
		nextSideX1 := sideX1 + dx12
		nextSideZ1 := sideZ1 + dz12
		nextSideX2 := sideX2 + dx02
		nextSideZ2 := sideZ2 + dz02

		if x0, r := emit(yi, nextSideX1, nextSideX2, sideX1, sideX2); r != nil {
			drawScanline(nextSideX1, nextSideZ1, nextSideX2, nextSideZ2, zBuffer)
			drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
			drawScanline(sideX1, sideZ1, nextSideX1, nextSideZ1, zBuffer)
			drawScanline(sideX2, sideZ2, nextSideX2, nextSideZ2, zBuffer)
			scanline(x0, uint32(yi), r)
		}

		sideX1, sideZ1 = nextSideX1, nextSideZ1
		sideX2, sideZ2 = nextSideX2, nextSideZ2
		yi++
	}

	if yi >= int32(size[1]) || yi != v2yi {
		return
	}

	if x0, r := emit(yi, v2.X(), sideX1, sideX2); r != nil {
		drawScanline(v2.X(), v2.Z(), sideX1, sideZ1, zBuffer)
		drawScanline(v2.X(), v2.Z(), sideX2, sideZ2, zBuffer)
		drawScanline(sideX1, sideZ1, sideX2, sideZ2, zBuffer)
		scanline(x0, uint32(yi), r)
	}
}

// initScanline resets the scratch buffer and computes the clamped cell
// range covered by the given X endpoints. It returns a nil slice when
// the range misses the viewport.
func initScanline(y int32, zBuffer []ZRange, xs []float32) (uint32, []ZRange) {
	xMin := int32(math.MaxInt32)
	xMax := int32(math.MinInt32)
	for _, x := range xs {
		xi := int32(x)
		if xi < xMin {
			xMin = xi
		}
		if xi > xMax {
			xMax = xi
		}
	}
	xMin = maxI32(xMin, 0)
	xMax = minI32(xMax, int32(len(zBuffer))-1)
	if xMin > xMax {
		return 0, nil
	}

	for i := range zBuffer {
		zBuffer[i] = ZRange{Lo: float32(math.Inf(1)), Hi: float32(math.Inf(-1))}
	}
	return uint32(xMin), zBuffer[xMin : xMax+1]
}

// drawScanline accumulates the Z extrema of the segment (x0,z0)-(x1,z1)
// into the cells it crosses.
func drawScanline(x0, z0, x1, z1 float32, zBuffer []ZRange) {
	if x1 < x0 {
		x0, z0, x1, z1 = x1, z1, x0, z0
	}

	v0xi := int32(x0)
	v1xi := int32(x1)

	if maxI32(v0xi, 0) > minI32(v1xi, int32(len(zBuffer))-1) {
		return
	}

	var x int32
	z := z0
	dz := (z1 - z0) / (x1 - x0)

	if v0xi >= 0 {
		if v1xi == v0xi {
			out := &zBuffer[v0xi]
			out.Lo = minf(out.Lo, minf(z0, z1))
			out.Hi = maxf(out.Hi, maxf(z0, z1))
			return
		}

		z += (float32(v0xi+1) - x0) * dz
		x = v0xi + 1

		out := &zBuffer[v0xi]
		out.Lo = minf(out.Lo, minf(z0, z))
		out.Hi = maxf(out.Hi, maxf(z0, z))
	} else {
		z -= x0 * dz
		x = 0
	}

	for x < minI32(v1xi, int32(len(zBuffer))) {
		nextZ := z + dz

		out := &zBuffer[x]
		out.Lo = minf(out.Lo, minf(nextZ, z))
		out.Hi = maxf(out.Hi, maxf(nextZ, z))

		z = nextZ
		x++
	}

	if int(x) < len(zBuffer) && x == v1xi {
		out := &zBuffer[v1xi]
		out.Lo = minf(out.Lo, minf(z1, z))
		out.Hi = maxf(out.Hi, maxf(z1, z))
	}
}

func floorf(x float32) float32 { return float32(math.Floor(float64(x))) }
func ceilf(x float32) float32  { return float32(math.Ceil(float64(x))) }

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
