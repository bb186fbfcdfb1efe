package cull

import (
	"math"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

const halfPi = float32(math.Pi / 2)

// Rast distributes beams over the view frustum, casts them through a
// terrain, and reprojects the resulting warped depth buffer into a
// conservative depth image.
type Rast struct {
	size    int
	workers int

	beams   []beamInfo
	eye     mgl32.Vec3
	samples []float32

	cameraMatrix       mgl32.Mat4
	cameraMatrixInv    mgl32.Mat4
	cameraMatrixUnproj mgl32.Mat3
}

type beamInfo struct {
	azimuth1, azimuth2         float32
	inclination1, inclination2 float32

	// numSamples can be zero, in which case the beam is excluded from
	// the process.
	numSamples   int
	samplesStart int

	// projection maps beam space to the beam depth buffer (x = 0,
	// y in [0, 1]).
	projection mgl32.Mat4
	// lateralProjection is used to adjust Z values for the beam's width.
	lateralProjection mgl32.Mat4
}

// NewRast constructs a Rast. resolution adjusts the density of the
// internal buffer; the pixel count of one side of the output depth
// image is a good starting point.
func NewRast(resolution int) *Rast {
	return &Rast{
		size:    resolution,
		workers: runtime.NumCPU(),
		beams:   make([]beamInfo, 0, resolution*2),
	}
}

// SetWorkers overrides the number of goroutines used by Update and
// RasterizeTo. Values below one select one.
func (r *Rast) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	r.workers = n
}

// Eye returns the camera position recovered from the last camera
// matrix.
func (r *Rast) Eye() mgl32.Vec3 { return r.eye }

// SetCamera updates the camera matrix (the product of the projection,
// view, and model matrices) and recalculates the sample distribution.
func (r *Rast) SetCamera(m mgl32.Mat4) error {
	for _, v := range m {
		if !isFinite32(v) {
			return ErrNonFinite
		}
	}
	mInv := m.Inv()
	if mInv == (mgl32.Mat4{}) {
		return ErrSingularMatrix
	}

	r.cameraMatrix = m
	r.cameraMatrixInv = mInv

	// Find the camera position by solving M*[x y z 1] == [0 0 z' 0]:
	// for a perspective matrix, a point projects to [0 0 ±inf] iff it
	// sits at the camera origin.
	r.eye = fromHomogeneous(mInv.Mul4x1(mgl32.Vec4{0, 0, 1, 0}))
	for _, v := range r.eye {
		if !isFinite32(v) {
			return ErrNonFinite
		}
	}

	// The viewport sizes used for the azimuth range and the inclination
	// range must differ slightly; this keeps the distribution stable
	// when a vanishing point is near the viewport border.
	safeMargin := 4 / float32(r.size)
	outer := 1 + safeMargin

	// Viewport border normals in the model space. A normal is a
	// bivector, so it transforms by the inverse transpose.
	j1 := jacobianFromProjection(mInv, mgl32.Vec4{-outer, -outer, 0.5, 1}).Transpose().Inv()
	j2 := jacobianFromProjection(mInv, mgl32.Vec4{outer, outer, 0.5, 1}).Transpose().Inv()
	msViewportNormals := [4]mgl32.Vec3{
		j1.Mul3x1(mgl32.Vec3{0, -outer, 0}),
		j2.Mul3x1(mgl32.Vec3{outer, 0, 0}),
		j2.Mul3x1(mgl32.Vec3{0, outer, 0}),
		j1.Mul3x1(mgl32.Vec3{-outer, 0, 0}),
	}

	// The visible portion of the latitudinal line at a given azimuth is
	// the intersection of the half spaces behind the border planes.
	inclinationRangeForAzimuth := func(azimuth float32) (float32, float32) {
		lo, hi := -halfPi, halfPi
		for _, normal := range msViewportNormals {
			rng := inclinationIntersectingHalfSpace(azimuth, normal.Mul(-1))
			lo, hi = rng.clamp(lo, hi)
		}
		return lo, max32(lo, hi)
	}

	// Find the range of azimuth angles visible within the viewport by
	// unprojecting the viewport corners to infinity.
	mUnproj := unprojectorXYToInfinity(mInv)
	r.cameraMatrixUnproj = mUnproj

	viewportVertices := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	var angles [4]float32
	for i, v := range viewportVertices {
		dir := mUnproj.Mul3x1(mgl32.Vec3{v[0], v[1], 1})
		if dir.X() == 0 && dir.Y() == 0 {
			angles[i] = float32(math.NaN())
		} else {
			angles[i] = atan232(dir.Y(), dir.X())
		}
	}

	// Wrap-around correction: adjacent corners must differ by < 180°.
	const pi2 = float32(math.Pi * 2)
	for i := 1; i < len(angles); i++ {
		angles[i] += round32((angles[i-1]-angles[i])*(1/pi2)) * pi2
	}

	var azimuth1, azimuth2 float32
	if abs(angles[3]-angles[0]) <= math.Pi {
		azimuth1 = min32(min32(angles[0], angles[1]), min32(angles[2], angles[3]))
		azimuth2 = max32(max32(angles[0], angles[1]), max32(angles[2], angles[3]))
	} else {
		// A vanishing point is inside the viewport; the full circle of
		// azimuth angles is visible.
		azimuth1, azimuth2 = 0, pi2
	}
	if !isFinite32(azimuth1) || !isFinite32(azimuth2) || azimuth1 > azimuth2 {
		return ErrNonFinite
	}

	// Distribute beams over the azimuth range, spacing the latitudinal
	// lines to roughly match the output resolution.
	r.beams = r.beams[:0]
	lastLo, lastHi := inclinationRangeForAzimuth(azimuth1)
	lastAngle := azimuth1

	for {
		// The average of |∂Project(x)/∂φ| over the visible portion of
		// the latitudinal line at lastAngle.
		d1 := jacobianFromProjection(m, sphericalToCartesian(lastAngle, lastLo).Vec4(0)).
			Mul3x1(sphericalToCartesianDAzimuth(lastAngle, lastLo))
		d2 := jacobianFromProjection(m, sphericalToCartesian(lastAngle, lastHi).Vec4(0)).
			Mul3x1(sphericalToCartesianDAzimuth(lastAngle, lastHi))

		width := 2 / float32(r.size) / ((d1.Len() + d2.Len()) * 0.5)
		if !isFinite32(width) || width <= 0 {
			// An infinite Jacobian speed yields width == 0, which would
			// stall the sweep.
			return ErrNonFinite
		}

		// The beam caster cannot handle wide beams.
		width = min32(width, 0.4)

		angle := lastAngle + width
		end := false
		if angle >= azimuth2 {
			end = true
			angle = azimuth2
		}

		lo, hi := inclinationRangeForAzimuth(angle)

		r.beams = append(r.beams, beamInfo{
			azimuth1:     lastAngle,
			azimuth2:     angle,
			inclination1: min32(lo, lastLo),
			inclination2: max32(hi, lastHi),
		})

		lastAngle = angle
		lastLo, lastHi = lo, hi

		if end {
			break
		}
	}

	for i := range r.beams {
		beam := &r.beams[i]

		// Project the endpoints of the primary latitudinal line.
		theta := (beam.azimuth1 + beam.azimuth2) * 0.5
		p1 := fromHomogeneous(m.Mul4x1(sphericalToCartesian(theta, beam.inclination1).Vec4(0)))
		p2 := fromHomogeneous(m.Mul4x1(sphericalToCartesian(theta, beam.inclination2).Vec4(0)))

		diff := mgl32.Vec2{p2.X() - p1.X(), p2.Y() - p1.Y()}
		length := diff.Len()
		chebyshevLen := max32(abs(diff.X()), abs(diff.Y()))

		if (diff.X() == 0 && diff.Y() == 0) || length == 0 || chebyshevLen == 0 {
			beam.numSamples = 0
			continue
		}

		beam.numSamples = int(ceil32(chebyshevLen * 0.5 * float32(r.size)))
		if beam.numSamples > 1<<20 {
			beam.numSamples = 1 << 20
		}

		// Beam projection: beam space to model space, the camera
		// matrix, then reorient so p2-p1 aligns to the Y axis with p1
		// at the origin.
		reorient := mgl32.Mat4FromRows(
			mgl32.Vec4{},
			mgl32.Vec4{diff.X(), diff.Y(), 0, 0}.Mul(1/(length*length)),
			mgl32.Vec4{0, 0, 1, 0},
			mgl32.Vec4{0, 0, 0, 1},
		)
		beam.projection = reorient.
			Mul4(mgl32.Translate3D(-p1.X(), -p1.Y(), 0)).
			Mul4(m).
			Mul4(mgl32.Translate3D(r.eye.X(), r.eye.Y(), 0)).
			Mul4(mgl32.HomogRotate3DZ(theta))

		// The lateral projection bounds the Z difference between the
		// beam's center plane and its side planes.
		scale := 1 / cos32(theta-beam.azimuth1)
		lateral := mgl32.HomogRotate3DZ(beam.azimuth1).
			Mul4(mgl32.Scale3D(scale, scale, 1)).
			Sub(mgl32.HomogRotate3DZ(theta))
		beam.lateralProjection = m.
			Mul4(mgl32.Translate3D(r.eye.X(), r.eye.Y(), 0)).
			Mul4(lateral)
	}

	// Allocate the beam depth buffers.
	samplesStart := 0
	for i := range r.beams {
		r.beams[i].samplesStart = samplesStart
		samplesStart += r.beams[i].numSamples
	}
	if cap(r.samples) < samplesStart {
		r.samples = make([]float32, samplesStart)
	} else {
		r.samples = r.samples[:samplesStart]
	}

	return nil
}

// Update renders the terrain into the internal warped depth buffer.
// A camera matrix must have been set with SetCamera.
func (r *Rast) Update(terrain *Terrain) {
	numWorkers := r.workers
	if numWorkers > len(r.beams) {
		numWorkers = len(r.beams)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	beamsPerWorker := len(r.beams) / numWorkers

	for g := 0; g < numWorkers; g++ {
		wg.Add(1)

		start := g * beamsPerWorker
		end := start + beamsPerWorker
		if g == numWorkers-1 {
			end = len(r.beams)
		}

		go func(start, end int) {
			defer wg.Done()

			var cov CovBuffer
			for i := start; i < end; i++ {
				beam := &r.beams[i]
				if beam.numSamples == 0 {
					continue
				}
				opticast(
					terrain,
					beam.azimuth1, beam.azimuth2,
					beam.projection, beam.lateralProjection,
					r.eye,
					r.samples[beam.samplesStart:beam.samplesStart+beam.numSamples],
					&cov,
				)
			}
		}(start, end)
	}

	wg.Wait()
}

// RasterizeTo reprojects the internal warped depth buffer, produced by
// Update, into a conservative depth image.
func (r *Rast) RasterizeTo(output *DepthImage) {
	size := output.Size()
	output.Clear()

	// [-1, 1] to [0, size]
	m := mgl32.Scale3D(float32(size[0])*0.5, float32(size[1])*0.5, 1).
		Mul4(mgl32.Translate3D(1, 1, 0)).
		Mul4(r.cameraMatrix)

	numWorkers := r.workers
	if numWorkers > len(r.beams) {
		numWorkers = len(r.beams)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var locks shardLocks
	var wg sync.WaitGroup
	beamsPerWorker := len(r.beams) / numWorkers

	for g := 0; g < numWorkers; g++ {
		wg.Add(1)

		start := g * beamsPerWorker
		end := start + beamsPerWorker
		if g == numWorkers-1 {
			end = len(r.beams)
		}

		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				beam := &r.beams[i]
				if beam.numSamples == 0 {
					continue
				}
				r.splatBeam(beam, m, output, &locks)
			}
		}(start, end)
	}

	wg.Wait()
}

// splatBeam writes one beam's samples into the output depth image,
// taking the minimum where samples overlap.
func (r *Rast) splatBeam(beam *beamInfo, m mgl32.Mat4, output *DepthImage, locks *shardLocks) {
	size := output.Size()
	bitmap := output.image
	samples := r.samples[beam.samplesStart : beam.samplesStart+beam.numSamples]

	start1, step1, start2, step2 := beamSampleSidePoints(beam, r.cameraMatrix, r.cameraMatrixUnproj)

	// Viewport space; the transform is linear, so the sequences stay
	// arithmetic.
	toViewport := func(v mgl32.Vec3) mgl32.Vec3 {
		q := m.Mul4x1(v.Vec4(0))
		return mgl32.Vec3{q.X(), q.Y(), q.W()}
	}
	start1, step1 = toViewport(start1), toViewport(step1)
	start2, step2 = toViewport(start2), toViewport(step2)

	// The AABB corners of the edge between samples i-1 and i.
	corner := func(i int) (mgl32.Vec2, mgl32.Vec2) {
		fi := float32(i)
		p1 := start1.Add(step1.Mul(fi))
		p2 := start2.Add(step2.Mul(fi))
		q1 := mgl32.Vec2{p1.X() / p1.Z(), p1.Y() / p1.Z()}
		q2 := mgl32.Vec2{p2.X() / p2.Z(), p2.Y() / p2.Z()}
		lo := mgl32.Vec2{min32(q1.X(), q2.X()), min32(q1.Y(), q2.Y())}
		hi := mgl32.Vec2{max32(q1.X(), q2.X()), max32(q1.Y(), q2.Y())}
		return lo, hi
	}

	prevLo, prevHi := corner(0)
	for i := range samples {
		curLo, curHi := corner(i + 1)

		// Inflating the bounding box is fine; the safest depth wins
		// where samples overlap.
		xMin := int(max32(min32(prevLo.X(), curLo.X()), 0))
		yMin := int(max32(min32(prevLo.Y(), curLo.Y()), 0))
		xMax := int(min32(max32(prevHi.X(), curHi.X()), float32(size[0]-1))) + 1
		yMax := int(min32(max32(prevHi.Y(), curHi.Y()), float32(size[1]-1))) + 1

		prevLo, prevHi = curLo, curHi

		if xMin >= xMax || yMin >= yMax {
			continue
		}

		newDepth := samples[i]
		for y := yMin; y < yMax; y++ {
			mu := locks.rowLock(y)
			mu.Lock()
			row := bitmap[y*size[0]:]
			for x := xMin; x < xMax; x++ {
				if newDepth < row[x] {
					row[x] = newDepth
				}
			}
			mu.Unlock()
		}
	}
}

// beamSampleSidePoints returns the two arithmetic sequences of
// model-space directions tracing the beam's side edges, as (start,
// step) pairs. The points at indices 0 through numSamples are valid.
func beamSampleSidePoints(
	beam *beamInfo,
	cameraMatrix mgl32.Mat4,
	cameraMatrixUnproj mgl32.Mat3,
) (start1, step1, start2, step2 mgl32.Vec3) {
	// The primary latitudinal line, projected to the viewport and then
	// pushed back out to infinity.
	theta := (beam.azimuth1 + beam.azimuth2) * 0.5
	vsStart := fromHomogeneous(
		cameraMatrix.Mul4x1(sphericalToCartesian(theta, beam.inclination1).Vec4(0)))
	vsEnd := fromHomogeneous(
		cameraMatrix.Mul4x1(sphericalToCartesian(theta, beam.inclination2).Vec4(0)))

	vsStart = mgl32.Vec3{vsStart.X(), vsStart.Y(), 1}
	vsEnd = mgl32.Vec3{vsEnd.X(), vsEnd.Y(), 1}
	vsStep := vsEnd.Sub(vsStart).Mul(1 / float32(beam.numSamples))

	binormal := mgl32.Vec3{-sin32(theta), cos32(theta), 0}
	m1 := projectorToLatitudinalLine(beam.azimuth1, binormal).Mul3(cameraMatrixUnproj)
	m2 := projectorToLatitudinalLine(beam.azimuth2, binormal).Mul3(cameraMatrixUnproj)

	return m1.Mul3x1(vsStart), m1.Mul3x1(vsStep), m2.Mul3x1(vsStart), m2.Mul3x1(vsStep)
}

func round32(x float32) float32 { return float32(math.Round(float64(x))) }
