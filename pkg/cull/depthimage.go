package cull

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DepthImage is a conservative depth buffer produced by
// Rast.RasterizeTo and consumed by occlusion queries. Depth values grow
// toward the camera; a recorded value is never nearer than the true
// terrain surface.
type DepthImage struct {
	size  [2]int
	image []float32
}

// NewDepthImage creates a cleared depth image of the given size.
func NewDepthImage(width, height int) *DepthImage {
	im := &DepthImage{
		size:  [2]int{width, height},
		image: make([]float32, width*height),
	}
	im.Clear()
	return im
}

// Size returns the image dimensions in pixels.
func (im *DepthImage) Size() [2]int { return im.size }

// At returns the depth value at the pixel (x, y).
func (im *DepthImage) At(x, y int) float32 { return im.image[x+y*im.size[0]] }

// Pixels exposes the backing pixel slice in row-major order.
func (im *DepthImage) Pixels() []float32 { return im.image }

// Clear resets every pixel to positive infinity, the pre-composite
// value meaning "no depth information, everything occluded".
func (im *DepthImage) Clear() {
	inf := float32(math.Inf(1))
	for i := range im.image {
		im.image[i] = inf
	}
}

// QueryAABB tests the clip-space axis-aligned bounding box of the given
// vertices against the depth image. It returns false only when the box
// is provably invisible; true means possibly visible.
//
// The box is clipped against the view volume (-w <= x, y <= w,
// 0 <= z <= w) before the perspective division so a W range touching
// zero never produces a negative or NaN divisor.
func (im *DepthImage) QueryAABB(vertices []mgl32.Vec4) (bool, error) {
	if len(vertices) < 4 {
		return false, ErrDegenerateQuery
	}

	var lo, hi mgl32.Vec4
	for i, v := range vertices {
		for _, c := range v {
			if !isFinite32(c) {
				return false, ErrNonFinite
			}
		}
		if i == 0 {
			lo, hi = v, v
			continue
		}
		for k := 0; k < 4; k++ {
			lo[k] = min32(lo[k], v[k])
			hi[k] = max32(hi[k], v[k])
		}
	}

	// Clip the box against the view volume while still in homogeneous
	// coordinates. Every surviving point has w >= z >= 0, so the W
	// lower bound clamps to positive zero, never negative.
	w1 := max32(max32(lo.W(), lo.Z()), 0)
	w2 := hi.W()
	x1 := max32(lo.X(), -w2)
	x2 := min32(hi.X(), w2)
	y1 := max32(lo.Y(), -w2)
	y2 := min32(hi.Y(), w2)
	z1 := max32(lo.Z(), 0)
	z2 := min32(hi.Z(), w2)

	if x1 > x2 || y1 > y2 || z1 > z2 || w1 > w2 {
		// Entirely outside the view volume.
		return false, nil
	}

	if w1 == 0 {
		// The box reaches the camera plane; its screen extent is
		// unbounded and its nearest depth unbounded, so it can only be
		// declared visible.
		return true, nil
	}

	// Conservative screen-space rectangle of the clipped box. With
	// 0 < w1 <= w2 the extrema of x/w and y/w are attained at interval
	// endpoints.
	ndcXMin := min32(x1/w1, x1/w2)
	ndcXMax := max32(x2/w1, x2/w2)
	ndcYMin := min32(y1/w1, y1/w2)
	ndcYMax := max32(y2/w1, y2/w2)

	// Clamp in float space before converting: with a tiny w1 the NDC
	// extrema overflow int and the conversion result is unspecified.
	width, height := im.size[0], im.size[1]
	pxMin := int(max32(floor32((ndcXMin*0.5+0.5)*float32(width)), 0))
	pxMax := int(min32(ceil32((ndcXMax*0.5+0.5)*float32(width)), float32(width)))
	pyMin := int(max32(floor32((ndcYMin*0.5+0.5)*float32(height)), 0))
	pyMax := int(min32(ceil32((ndcYMax*0.5+0.5)*float32(height)), float32(height)))

	if pxMin >= pxMax || pyMin >= pyMax {
		// Entirely off screen.
		return false, nil
	}

	// The box's nearest depth. The box is occluded iff even this depth
	// lies behind the recorded terrain depth at every covered pixel.
	nearest := z2 / w1

	for y := pyMin; y < pyMax; y++ {
		row := im.image[y*width : (y+1)*width]
		for x := pxMin; x < pxMax; x++ {
			if nearest > row[x] {
				return true, nil
			}
		}
	}
	return false, nil
}
