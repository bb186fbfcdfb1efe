package main

import (
	"github.com/go-gl/mathgl/mgl32"

	noise "penumbra/internal/math"
	"penumbra/pkg/terrgen"
)

// sampleGeometry generates a rolling heightfield with scattered pillars
// as a triangle soup, in voxel coordinates. The returned view point
// floats above the center of the terrain.
func sampleGeometry(sizeX, sizeY, depth int, seed int64) ([]terrgen.Polygon, [][3]uint32) {
	ng := noise.NewNoiseGenerator(seed)

	const cell = 8
	nx, ny := sizeX/cell, sizeY/cell

	var polys []terrgen.Polygon
	for cy := 0; cy < ny; cy++ {
		for cx := 0; cx < nx; cx++ {
			fx := (float64(cx) + 0.5) / float64(nx)
			fy := (float64(cy) + 0.5) / float64(ny)

			// Rolling hills: fractal noise plus a ridge layer for crests.
			h := 0.3 +
				0.2*ng.FBM2D(fx*4, fy*4, 4, 2.0, 0.5, seed) +
				0.1*ng.Ridge2D(fx*7, fy*7, seed+101)

			// Occasional tall pillar.
			if ng.RandomFloat() < 0.02 {
				h += 0.4 + 0.3*ng.RandomFloat()
			}

			height := float32(h) * float32(depth)
			if height < 1 {
				height = 1
			}
			if height > float32(depth-2) {
				height = float32(depth - 2)
			}

			x0 := float32(cx * cell)
			y0 := float32(cy * cell)
			polys = appendBox(polys,
				mgl32.Vec3{x0, y0, 0},
				mgl32.Vec3{x0 + cell, y0 + cell, height})
		}
	}

	viewPoint := [3]uint32{uint32(sizeX / 2), uint32(sizeY / 2), uint32(depth - 2)}
	return polys, [][3]uint32{viewPoint}
}

// appendBox emits the twelve triangles of an axis-aligned box.
func appendBox(out []terrgen.Polygon, lo, hi mgl32.Vec3) []terrgen.Polygon {
	v := func(x, y, z int) mgl32.Vec3 {
		p := mgl32.Vec3{lo.X(), lo.Y(), lo.Z()}
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
		{v(0, 0, 0), v(1, 0, 0), v(1, 1, 0), v(0, 1, 0)}, // bottom
		{v(0, 0, 1), v(1, 0, 1), v(1, 1, 1), v(0, 1, 1)}, // top
		{v(0, 0, 0), v(1, 0, 0), v(1, 0, 1), v(0, 0, 1)}, // south
		{v(0, 1, 0), v(1, 1, 0), v(1, 1, 1), v(0, 1, 1)}, // north
		{v(0, 0, 0), v(0, 1, 0), v(0, 1, 1), v(0, 0, 1)}, // west
		{v(1, 0, 0), v(1, 1, 0), v(1, 1, 1), v(1, 0, 1)}, // east
	}
	for _, q := range quads {
		out = append(out,
			terrgen.Polygon{q[0], q[1], q[2]},
			terrgen.Polygon{q[0], q[2], q[3]})
	}
	return out
}
