package cull

import (
	"github.com/go-gl/mathgl/mgl32"
)

// depthFar is the depth value of the sky. Depth values grow toward the
// camera; smaller means farther, which is the conservative direction
// for minimum compositing.
const depthFar float32 = 0

const noFloorCeiling = int32(-1)

// opticast casts a single beam through the terrain and produces a 1D
// conservative depth image.
//
// The beam is the wedge between azimuth1 and azimuth2. projection maps
// beam space (x = distance along the beam's bisector on the horizontal
// plane, z = height) to the beam depth buffer, with y covering [0, 1]
// before scaling. lateralProjection bounds how much the projected depth
// can differ between the beam's two side planes; the painted depth is
// lowered by that bound so it stays conservative across the beam's
// width. cov is scratch space reused between calls.
func opticast(
	terrain *Terrain,
	azimuth1, azimuth2 float32,
	projection, lateralProjection mgl32.Mat4,
	eye mgl32.Vec3,
	outputDepth []float32,
	cov *CovBuffer,
) {
	if len(outputDepth) == 0 {
		return
	}
	cov.Resize(uint32(len(outputDepth)))

	dir1 := mgl32.Vec2{cos32(azimuth1), sin32(azimuth1)}
	dir2 := mgl32.Vec2{cos32(azimuth2), sin32(azimuth2)}
	theta := (azimuth1 + azimuth2) * 0.5
	dirPrimary := mgl32.Vec2{cos32(theta), sin32(theta)}

	// Set up frustum termination. The cast stops once
	// dist*terminateFactor >= terminateRef holds for any of the three
	// bounding planes of the beam depth buffer.
	var terminateFactor, terminateRef [3]float32
	{
		depth := float32(terrain.Size()[2])
		start1 := projection.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
		start2 := projection.Mul4x1(mgl32.Vec4{0, 0, depth, 1})
		dir := projection.Col(0)

		// y_beam >= 0
		if dir.Y() >= 0 {
			terminateFactor[0], terminateRef[0] = 0, 1
		} else {
			terminateFactor[0] = -dir.Y()
			terminateRef[0] = max32(start1.Y(), start2.Y())
		}

		// y_beam <= 1 (y_cs - w_cs <= 0)
		if dir.Y()-dir.W() <= 0 {
			terminateFactor[1], terminateRef[1] = 0, 1
		} else {
			terminateFactor[1] = dir.Y() - dir.W()
			terminateRef[1] = max32(start1.W()-start1.Y(), start2.W()-start2.Y())
		}

		// z_beam >= 0
		if dir.Z() >= 0 {
			terminateFactor[2], terminateRef[2] = 0, 1
		} else {
			terminateFactor[2] = -dir.Z()
			terminateRef[2] = max32(start1.Z(), start2.Z())
		}
	}

	// Scale the beam projection so y lands directly on sample indices.
	n := float32(len(outputDepth))
	projection.Set(1, 0, projection.At(1, 0)*n)
	projection.Set(1, 1, projection.At(1, 1)*n)
	projection.Set(1, 2, projection.At(1, 2)*n)
	projection.Set(1, 3, projection.At(1, 3)*n)

	projX := projection.Col(0)
	projZ := projection.Col(2)
	projW := projection.Col(3)
	latX := lateralProjection.Col(0)
	latZ := lateralProjection.Col(2)

	size := terrain.Size()

	var pre Preproc
	var localDirPrimary mgl32.Vec2
	var localEyeDist float32

	// Rast caps the beam width at 0.4 rad, far below the caster's 45
	// degree limit, so the cast cannot be rejected here.
	_, _ = MipBeamCast(
		[2]uint32{uint32(size[0]), uint32(size[1])},
		uint32(terrain.NumLevels()),
		mgl32.Vec2{eye.X(), eye.Y()},
		dir1,
		dir2,
		func(p *Preproc) {
			pre = *p

			// Mirror the primary direction and the eye into the
			// normalized frame so per-cell distances can be measured
			// there without undoing the transform.
			localDirPrimary = dirPrimary
			localEye := mgl32.Vec2{eye.X(), eye.Y()}
			sx, sy := float32(size[0]), float32(size[1])
			if pre.SwapXY {
				localDirPrimary = mgl32.Vec2{localDirPrimary.Y(), localDirPrimary.X()}
				localEye = mgl32.Vec2{localEye.Y(), localEye.X()}
				sx, sy = sy, sx
			}
			if pre.FlipX {
				localDirPrimary[0] = -localDirPrimary[0]
				localEye[0] = sx - localEye[0]
			}
			if pre.FlipY {
				localDirPrimary[1] = -localDirPrimary[1]
				localEye[1] = sy - localEye[1]
			}
			localEyeDist = localEye.Dot(localDirPrimary)
		},
		func(in *Incidence) bool {
			cell := in.Cell(&pre)
			row := terrain.LevelRow(int(cell.Mip)+1, int(cell.Pos[0]), int(cell.Pos[1]))

			// Find the distances of the leftmost and rightmost beam-cell
			// intersections, measured along the primary direction.
			cellRawPos := in.CellRaw.PosMin()
			cellSize := in.CellRaw.SizeF()

			const invFix = 1.0 / fixScale
			ix := [4]float32{
				float32(in.IntersectionsRaw[0][0][0]) * invFix, // ray 1, enter
				float32(in.IntersectionsRaw[1][0][0]) * invFix, // ray 1, leave
				float32(in.IntersectionsRaw[0][1][0]) * invFix, // ray 2, enter
				float32(in.IntersectionsRaw[1][1][0]) * invFix, // ray 2, leave
			}
			iy := [4]float32{
				float32(in.IntersectionsRaw[0][0][1]) * invFix,
				float32(in.IntersectionsRaw[1][0][1]) * invFix,
				float32(in.IntersectionsRaw[0][1][1]) * invFix,
				float32(in.IntersectionsRaw[1][1][1]) * invFix,
			}
			if pre.Slope2Neg {
				// Ray 2's y displacements are measured from the top
				// border in this case.
				iy[2] = cellSize - iy[2]
				iy[3] = cellSize - iy[3]
			}

			dpx, dpy := localDirPrimary.X(), localDirPrimary.Y()
			cellDist := float32(cellRawPos[0])*dpx + float32(cellRawPos[1])*dpy - localEyeDist

			// Each intersection point is cellRawPos + cellSize - i, so
			// its distance is cellDist + cellSize*(dpx+dpy) - dot(i, dp).
			base := cellDist + cellSize*(dpx+dpy)
			var d [4]float32
			for k := 0; k < 4; k++ {
				d[k] = base - (ix[k]*dpx + iy[k]*dpy)
			}
			enterDist := max32(d[0], d[2])
			leaveDist := min32(d[1], d[3])

			for k := 0; k < 3; k++ {
				if terminateFactor[k]*enterDist >= terminateRef[k] {
					return true
				}
			}

			if in.IncludesStart {
				// The camera is inside this row's column. Draw the
				// floor and the ceiling instead of the spans.
				floorCeil := floorAndCeilingOfRow(eye.Z(), row)

				for i, zi := range floorCeil {
					if zi == noFloorCeiling {
						continue
					}
					z := float32(zi)

					// The near edge is directly below/above the camera.
					p1 := projW.Add(projZ.Mul(z))
					p2 := projW.Add(projZ.Mul(z)).Add(projX.Mul(leaveDist))

					p1Lat := latZ.Mul(z)
					p2Lat := latX.Mul(leaveDist).Add(latZ.Mul(z))
					p1[2] -= abs(p1.Z()*p1Lat.W()-p1.W()*p1Lat.Z()) / p1.W()
					p2[2] -= abs(p2.Z()*p2Lat.W()-p2.W()*p2Lat.Z()) / p2.W()

					p1, p2, ok := clipNearPlane(p1, p2)
					if !ok {
						continue
					}

					q1, q2 := fromHomogeneous(p1), fromHomogeneous(p2)

					// q1.y should already be close to one of the ends;
					// snap it so no gap can open up.
					if i == 0 {
						q1[1] = 0
					} else {
						q1[1] = n
					}

					if q1.Y() > q2.Y() {
						q1[1], q2[1] = q2[1], q1[1]
						q1[2], q2[2] = q2[2], q1[2]
					}

					paintSpan(q1, q2, outputDepth, cov)
				}
				return false
			}

			for _, span := range row {
				z1 := float32(span.Z1)
				z2 := float32(span.Z2)

				// Use the "reverse" AABB of the span (like the incircle
				// of a triangle): an edge on the camera's side of the
				// eye plane takes the far distance.
				bottomDist := enterDist
				if z1 > eye.Z() {
					bottomDist = leaveDist
				}
				topDist := enterDist
				if z2 < eye.Z() {
					topDist = leaveDist
				}

				p1 := projW.Add(projX.Mul(bottomDist)).Add(projZ.Mul(z1))
				p2 := projW.Add(projX.Mul(topDist)).Add(projZ.Mul(z2))

				// The beam's left and right edges project to different
				// depths; subtract a first-order bound on the difference
				// so the lower one wins.
				p1Lat := latX.Mul(bottomDist).Add(latZ.Mul(z1))
				p2Lat := latX.Mul(topDist).Add(latZ.Mul(z2))
				p1[2] -= abs(p1.Z()*p1Lat.W()-p1.W()*p1Lat.Z()) / p1.W()
				p2[2] -= abs(p2.Z()*p2Lat.W()-p2.W()*p2Lat.Z()) / p2.W()

				p1, p2, ok := clipNearPlane(p1, p2)
				if !ok {
					continue
				}

				paintSpan(fromHomogeneous(p1), fromHomogeneous(p2), outputDepth, cov)
			}
			return false
		},
	)

	// Whatever is still uncovered is sky.
	cov.PaintAll(func(i uint32) {
		outputDepth[i] = depthFar
	})
}

// floorAndCeilingOfRow finds the Z coordinates of the floor below and
// the ceiling above the eye, assuming the eye is inside the row's
// column. Either value is noFloorCeiling when absent.
func floorAndCeilingOfRow(eyeZ float32, row Row) [2]int32 {
	eye := int32(eyeZ)
	last := noFloorCeiling
	for _, s := range row {
		if int32(s.Z1) >= eye {
			return [2]int32{last, int32(s.Z1)}
		}
		last = int32(s.Z2)
	}
	return [2]int32{last, noFloorCeiling}
}

// clipNearPlane clips the segment p1-p2 by the plane z == w. The last
// return is false when the segment is clipped away entirely.
func clipNearPlane(p1, p2 mgl32.Vec4) (mgl32.Vec4, mgl32.Vec4, bool) {
	c1 := p1.Z() > p1.W()
	c2 := p2.Z() > p2.W()
	switch {
	case c1 && c2:
		return p1, p2, false
	case c1 || c2:
		dot1 := p1.Z() - p1.W()
		dot2 := p2.Z() - p2.W()
		fraction := dot1 / (dot1 - dot2)
		mid := p1.Add(p2.Sub(p1).Mul(fraction))
		mid[3] = mid.Z()
		if c1 {
			return mid, p2, true
		}
		return p1, mid, true
	default:
		return p1, p2, true
	}
}

// paintSpan rasterizes the segment p1-p2 (in beam depth buffer
// coordinates, after the perspective division) through the coverage
// buffer, storing each covered sample's minimum depth along the
// segment.
func paintSpan(p1, p2 mgl32.Vec3, outputDepth []float32, cov *CovBuffer) {
	y1 := int32(max32(ceil32(p1.Y()), 0))
	y2 := int32(min32(p2.Y(), float32(len(outputDepth))))
	if y1 >= y2 {
		return
	}

	deltaZ := (p2.Z() - p1.Z()) / (p2.Y() - p1.Y())
	startZ := p1.Z() + deltaZ*(float32(y1)-p1.Y())

	// The minimum of z over the sample interval [i, i+1] sits at the
	// right end when the slope is negative.
	if deltaZ < 0 {
		startZ += deltaZ
	}

	baseZ := startZ - float32(y1)*deltaZ
	cov.Paint(uint32(y1), uint32(y2), func(i uint32) {
		outputDepth[i] = baseZ + float32(i)*deltaZ
	})
}
