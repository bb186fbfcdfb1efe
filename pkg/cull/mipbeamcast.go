package cull

import (
	"math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
)

// fixBits is the fractional bit count of the s15.16 fixed-point format
// used by the beam caster's main loop.
const fixBits = 16

// fixScale converts grid-unit floats to fixed point.
const fixScale = float32(1 << fixBits)

// Cell identifies one cell visited by a beam cast.
//
// A cell of mip m occupies x in [Pos[0]<<m, (Pos[0]+2)<<m) and
// y in [Pos[1]<<m, (Pos[1]+2)<<m): cells are two base units wide at
// mip 0 and are positioned at half-cell granularity. Mip 0 corresponds
// to terrain level 1; the base level is never visited.
type Cell struct {
	Pos [2]int32
	Mip uint32
}

// PosMin returns the inclusive minimum corner of the cell in base units.
func (c Cell) PosMin() [2]int32 {
	return [2]int32{c.Pos[0] << c.Mip, c.Pos[1] << c.Mip}
}

// PosMax returns the exclusive maximum corner of the cell in base units.
func (c Cell) PosMax() [2]int32 {
	s := c.Size()
	m := c.PosMin()
	return [2]int32{m[0] + s, m[1] + s}
}

// Size returns the cell's side length in base units.
func (c Cell) Size() int32 { return 2 << c.Mip }

// SizeF is Size as a float32.
func (c Cell) SizeF() float32 { return float32(int32(2) << c.Mip) }

// Preproc records the axis normalization applied to the beam so the
// caller can map raw outputs back to the original frame.
type Preproc struct {
	SwapXY    bool
	FlipX     bool
	FlipY     bool
	Slope2Neg bool
	Size      [2]uint32
}

// Incidence describes a beam entering and leaving one cell.
type Incidence struct {
	// CellRaw is the visited cell in the normalized frame.
	CellRaw Cell

	// IntersectionsRaw holds the fixed-point distances from the cell's
	// right and bottom borders at the entering ([0]) and leaving ([1])
	// points, for each extremal ray ([.][0] = dir1, [.][1] = dir2).
	// The Y distance of ray 2 is measured from the top border instead
	// when Preproc.Slope2Neg is set.
	IntersectionsRaw [2][2][2]int32

	// IncludesStart is set when the cell contains the beam vertex.
	IncludesStart bool
}

// Cell maps the raw cell back through the recorded normalization.
func (in *Incidence) Cell(pre *Preproc) Cell {
	c := in.CellRaw
	if pre.FlipX {
		c.Pos[0] = int32(pre.Size[0]>>c.Mip) - 2 - c.Pos[0]
	}
	if pre.FlipY {
		c.Pos[1] = int32(pre.Size[1]>>c.Mip) - 2 - c.Pos[1]
	}
	if pre.SwapXY {
		c.Pos[0], c.Pos[1] = c.Pos[1], c.Pos[0]
	}
	return c
}

// MipBeamCast walks a thin beam across a 2D grid, visiting the minimal
// gap-free sequence of cells whose sizes adapt to the beam's width.
//
// The beam is the wedge between two half lines starting at start and
// extending toward dir1 and dir2. The interior angle must stay below
// 45 degrees so that a single axis stays major after normalization;
// wider wedges are rejected with ErrBeamAngle before any visit.
// Grid occupancy is the caller's concern: visit receives every cell the
// beam passes through and decides what to do with it.
//
// numLevels must equal log2(min(size[0], size[1])) + 1. begin, if not
// nil, is called once with the normalization record before any visit.
// Traversal stops when visit returns true or the beam leaves the grid.
func MipBeamCast(
	size [2]uint32,
	numLevels uint32,
	start, dir1, dir2 mgl32.Vec2,
	begin func(*Preproc),
	visit func(*Incidence) bool,
) (Preproc, error) {
	var pre Preproc

	// tan of the interior angle is |cross|/dot; the wedge is valid only
	// when dot > 0 (below 90 degrees) and |cross| < dot (below 45).
	cross := dir1.X()*dir2.Y() - dir1.Y()*dir2.X()
	dot := dir1.Dot(dir2)
	if dot <= 0 || abs32(cross) >= dot {
		return pre, ErrBeamAngle
	}

	// Axis normalization: reflect and swap so dir1 ends up in the
	// SE-right octant (x >= 0, 0 <= y <= x).
	if abs32(dir1.Y()) > abs32(dir1.X()) {
		pre.SwapXY = true
		size[0], size[1] = size[1], size[0]
		start = mgl32.Vec2{start.Y(), start.X()}
		dir1 = mgl32.Vec2{dir1.Y(), dir1.X()}
		dir2 = mgl32.Vec2{dir2.Y(), dir2.X()}
	}
	if dir1.X() < 0 {
		pre.FlipX = true
		start[0] = float32(size[0]) - start.X()
		dir1[0] = -dir1.X()
		dir2[0] = -dir2.X()
	}
	if dir1.Y() < 0 {
		pre.FlipY = true
		start[1] = float32(size[1]) - start.Y()
		dir1[1] = -dir1.Y()
		dir2[1] = -dir2.Y()
	}
	pre.Slope2Neg = dir2.Y() < 0
	pre.Size = size

	if begin != nil {
		begin(&pre)
	}

	// Rescale both directions to unit X so the Y components become
	// slopes.
	dir1 = mgl32.Vec2{1, dir1.Y() / dir1.X()}
	dir2 = mgl32.Vec2{1, dir2.Y() / dir2.X()}

	sizeXF := float32(size[0])
	sizeYF := float32(size[1])

	// Entry resolution: find the first cell, classifying the start
	// point against the grid.
	var cell Cell
	var innerStart [2]mgl32.Vec2
	hasInnerStart := false

	switch {
	case start.X() >= sizeXF || start.Y() >= sizeYF:
		// Never or only partly coincides with the grid.
		return pre, nil

	case start.Y() >= 0 && start.X() >= 0:
		// Starts inside the grid.
		cell = Cell{Pos: [2]int32{int32(start.X()), int32(start.Y())}}

	case start.Y() >= 0:
		// start.X() < 0: the beam can only enter through the left side.
		y1 := start.Y() - start.X()*dir1.Y()
		y2 := start.Y() - start.X()*dir2.Y()
		swapped := y1 > y2
		if swapped {
			y1, y2 = y2, y1
		}
		if y1 >= 0 && y2 < sizeYF {
			cell = aabbToCell(0, int32(y1), 0, int32(y2))
			if swapped {
				innerStart = [2]mgl32.Vec2{{0, y2}, {0, y1}}
			} else {
				innerStart = [2]mgl32.Vec2{{0, y1}, {0, y2}}
			}
			hasInnerStart = true
		} else {
			return pre, nil
		}

	default:
		// start.Y() < 0: entry through the top side, the left side, or
		// both, depending on which way the slopes point.
		if dir2.Y() <= 0 {
			return pre, nil
		}

		s1, s2 := dir1.Y(), dir2.Y()
		swapped := s1 > s2
		if swapped {
			s1, s2 = s2, s1
		}

		y1 := start.Y() + (sizeXF-start.X())*s1 // at x = size[0]
		y2 := start.Y() - start.X()*s2          // at x = 0
		y3 := start.Y() - start.X()*s1          // at x = 0

		if y1 <= 0 {
			return pre, nil
		}

		x1 := start.X() - start.Y()/s1 // at y = 0
		x2 := start.X() - start.Y()/s2 // at y = 0

		switch {
		case start.X() >= 0:
			cell = aabbToCell(int32(x2), 0, int32(x1), 0)
			innerStart = [2]mgl32.Vec2{{x1, 0}, {x2, 0}}
		case y2 > sizeYF:
			return pre, nil
		case y3 >= 0:
			cell = aabbToCell(0, int32(y3), 0, int32(y2))
			innerStart = [2]mgl32.Vec2{{0, y3}, {0, y2}}
		case x2 < 0:
			// Enters through both the top and left sides.
			cell = aabbToCell(0, 0, int32(x1), int32(y2))
			innerStart = [2]mgl32.Vec2{{x1, 0}, {0, y2}}
		default:
			cell = aabbToCell(int32(x2), 0, int32(x1), 0)
			innerStart = [2]mgl32.Vec2{{x1, 0}, {x2, 0}}
		}
		hasInnerStart = true

		if swapped {
			innerStart[0], innerStart[1] = innerStart[1], innerStart[0]
		}
	}

	if !cellUsable(cell, size, numLevels) {
		return pre, nil
	}

	includesStart := !hasInnerStart

	// Fixed-point state. Two points track where the extremal rays
	// currently stand; dx/dy are their distances to the exit borders of
	// the current cell.
	startFix := [2]int32{int32(start.X() * fixScale), int32(start.Y() * fixScale)}
	slope1 := int32(dir1.Y() * fixScale)
	slope2 := int32(abs32(dir2.Y()) * fixScale)

	islope1 := int32((int64(1) << (fixBits * 2)) / int64(maxI32(slope1, 1)))
	islope2 := int32((int64(1) << (fixBits * 2)) / int64(maxI32(slope2, 1)))

	start1, start2 := startFix, startFix
	if hasInnerStart {
		start1 = [2]int32{int32(innerStart[0].X() * fixScale), int32(innerStart[0].Y() * fixScale)}
		start2 = [2]int32{int32(innerStart[1].X() * fixScale), int32(innerStart[1].Y() * fixScale)}
	}

	dx1 := (cell.PosMax()[0] << fixBits) - start1[0]
	dx2 := (cell.PosMax()[0] << fixBits) - start2[0]
	dy1 := (cell.PosMax()[1] << fixBits) - start1[1]
	var dy2 int32
	if pre.Slope2Neg {
		dy2 = start2[1] - (cell.PosMin()[1] << fixBits)
	} else {
		dy2 = (cell.PosMax()[1] << fixBits) - start2[1]
	}

	for {
		// Find the portal, the polyline through which the beam's full
		// width exits the current cell. Its AABB follows from the two
		// endpoints unless it wraps a corner pair.
		newDy1 := dy1 - fixMul(slope1, dx1)
		newDy2 := dy2 - fixMul(slope2, dx2)
		newDx1 := dx1 - fixMul(dy1, islope1)
		newDx2 := dx2 - fixMul(dy2, islope2)

		topBorder := cell.PosMin()[1] - 1
		top := cell.PosMin()[1]
		bottom := cell.PosMax()[1]
		right := cell.PosMax()[0]

		enter := [2][2]int32{{dx1, dy1}, {dx2, dy2}}

		var portalX1, portalY1, portalX2, portalY2 int32

		if newDy1 < 0 {
			// Ray 1 exits through the bottom border.
			portalY1 = bottom
			portalX1 = right - fixCeil(dx1-fixMul(dy1, islope1))
			dx1 = newDx1
			dy1 = 0
		} else {
			// Ray 1 exits through the right border.
			portalY1 = bottom - fixCeil(newDy1)
			portalX1 = right
			dx1 = 0
			dy1 = newDy1
		}

		portalX2TB := right - fixCeil(dx2-fixMul(dy2, islope2))
		var koShapeX int32
		if pre.Slope2Neg {
			if newDy2 < 0 {
				// Ray 2 exits through the top border. The portal also
				// wraps the right edge; account for it when sizing the
				// next cell.
				koShapeX = right
				portalX2 = portalX2TB
				portalY2 = topBorder
				dx2 = newDx2
				dy2 = 0
			} else {
				portalY2 = top + fixFloor(newDy2)
				portalX2 = right
				dx2 = 0
				dy2 = newDy2
			}
		} else {
			if newDy2 < 0 {
				portalX2 = portalX2TB
				portalY2 = bottom
				dx2 = newDx2
				dy2 = 0
			} else {
				portalY2 = bottom - fixCeil(newDy2)
				portalX2 = right
				dx2 = 0
				dy2 = newDy2
			}
		}

		newCell := aabbToCell(
			minI32(portalX1, portalX2),
			minI32(portalY1, portalY2),
			maxI32(maxI32(portalX1, portalX2), koShapeX),
			maxI32(portalY1, portalY2),
		)

		in := Incidence{
			CellRaw:          cell,
			IntersectionsRaw: [2][2][2]int32{enter, {{dx1, dy1}, {dx2, dy2}}},
			IncludesStart:    includesStart,
		}
		if visit(&in) {
			return pre, nil
		}

		if !cellUsable(newCell, size, numLevels) {
			return pre, nil
		}

		includesStart = false

		// Shift the tracked distances into the next cell's frame.
		dx := newCell.PosMax()[0] - cell.PosMax()[0]
		dx1 += dx << fixBits
		dx2 += dx << fixBits

		dy1 += (newCell.PosMax()[1] - cell.PosMax()[1]) << fixBits
		if pre.Slope2Neg {
			dy2 -= (newCell.PosMin()[1] - cell.PosMin()[1]) << fixBits
		} else {
			dy2 += (newCell.PosMax()[1] - cell.PosMax()[1]) << fixBits
		}

		cell = newCell
	}
}

// cellUsable reports whether a cell can be represented by the terrain:
// its mip must have a pyramid level and its position must leave room for
// the two-unit window.
func cellUsable(c Cell, size [2]uint32, numLevels uint32) bool {
	return c.Mip < numLevels-1 &&
		uint32(c.Pos[0]) < (size[0]-1)>>c.Mip &&
		uint32(c.Pos[1]) < (size[1]-1)>>c.Mip
}

// aabbToCell finds the smallest cell that contains the rectangle with
// the given inclusive corners.
func aabbToCell(xMin, yMin, xMax, yMax int32) Cell {
	// ceil(log2(max(extent) + 1))
	mip := uint32(31 - bits.LeadingZeros32(uint32((xMax-xMin)|(yMax-yMin)|1)))

	// The fit is either mip or mip+1 depending on alignment.
	xMinRnd := xMin >> mip
	yMinRnd := yMin >> mip
	xMaxRnd := (xMax - (1 << mip)) >> mip
	yMaxRnd := (yMax - (1 << mip)) >> mip

	var enlarge uint32
	if xMinRnd < xMaxRnd || yMinRnd < yMaxRnd {
		enlarge = 1
	}

	return Cell{
		Pos: [2]int32{xMinRnd >> enlarge, yMinRnd >> enlarge},
		Mip: mip + enlarge,
	}
}

func fixMul(x, y int32) int32 {
	return int32((int64(x) * int64(y)) >> fixBits)
}

func fixFloor(x int32) int32 {
	return x >> fixBits
}

func fixCeil(x int32) int32 {
	return (x + (1 << fixBits) - 1) >> fixBits
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
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
