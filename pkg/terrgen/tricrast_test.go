package terrgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriCRastConservative(t *testing.T) {
	size := [2]uint32{16, 16}
	zBuffer := make([]ZRange, size[0])

	patterns := []Polygon{
		{{4.5, 2.5, 1.0}, {15.5, 11.5, 3.0}, {7.5, 14.5, 7.0}},
		// degenerate: point
		{{4.0, 4.0, 4.0}, {4.0, 4.0, 2.0}, {4.0, 4.0, 1.0}},
		// degenerate: horizontal line
		{{4.0, 4.0, 4.0}, {8.0, 4.0, 2.0}, {4.0, 4.0, 1.0}},
		// degenerate: vertical line
		{{4.0, 4.0, 4.0}, {4.0, 6.0, 2.0}, {4.0, 8.0, 1.0}},
		// degenerate: line
		{{4.0, 4.0, 4.0}, {5.0, 6.0, 2.0}, {6.0, 8.0, 1.0}},
		// scanline special cases where vertex rows coincide
		{{4.0, 4.0, 4.0}, {8.0, 4.5, 2.0}, {6.0, 6.0, 1.0}},
		{{4.0, 4.0, 4.0}, {8.0, 5.5, 2.0}, {6.0, 5.9, 1.0}},
		{{4.0, 4.0, 4.0}, {8.0, 4.2, 2.0}, {6.0, 4.8, 1.0}},
		// clipped by each border
		{{-4.5, 2.5, 1.0}, {15.5, 11.5, 3.0}, {-7.5, 14.5, 7.0}},
		{{4.5, 2.5, 1.0}, {20.5, 11.5, 3.0}, {7.5, 14.5, 7.0}},
		{{4.5, -4.5, 1.0}, {15.5, -1.5, 3.0}, {7.5, 14.5, 7.0}},
		// clipped away completely
		{{4.5, -7.5, 1.0}, {15.5, -6.5, 3.0}, {7.5, -3.5, 7.0}},
		// vertices on the bottom border
		{{4.5, 16.0, 1.0}, {15.5, 18.0, 3.0}, {7.5, 20.0, 7.0}},
		{{4.5, 14.0, 1.0}, {15.5, 16.0, 3.0}, {7.5, 18.0, 7.0}},
		{{4.5, 12.0, 1.0}, {15.5, 14.0, 3.0}, {7.5, 16.0, 7.0}},
		// a large triangle mostly outside the grid
		{{6.387413, 22.655037, 10.262598},
			{34.602814, 3.326641, 33.970768},
			{13.196243, -2.00811, 8.0031395}},
	}

	for pi, vertices := range patterns {
		var zPredicted [16][16]*ZRange
		var visited [16][16]uint8
		var zVisited [16][16]*ZRange

		zMin := minf(vertices[0].Z(), minf(vertices[1].Z(), vertices[2].Z()))
		zMax := maxf(vertices[0].Z(), maxf(vertices[1].Z(), vertices[2].Z()))

		TriCRast(vertices, size, zBuffer, func(x, y uint32, zRanges []ZRange) {
			for i, r := range zRanges {
				cx := x + uint32(i)
				require.Less(t, cx, size[0])
				require.Less(t, y, size[1])
				rc := r
				zPredicted[y][cx] = &rc
				visited[y][cx] |= 0b11

				// Emitted ranges never exceed the triangle's Z extent.
				require.GreaterOrEqual(t, r.Lo, zMin-0.0001, "pattern %d", pi)
				require.LessOrEqual(t, r.Hi, zMax+0.0001, "pattern %d", pi)
			}
		})

		// Point-sample the triangle with barycentric coordinates; every
		// sample must land in an emitted Z range, and emitted cells must
		// be near some sample.
		for xi := 1; xi <= 49; xi++ {
			for yi := 1; yi <= 49; yi++ {
				bx := float32(xi) / 50
				by := float32(yi) / 50
				p := vertices[0].Add(vertices[1].Sub(vertices[0]).Mul(bx))
				p = p.Add(vertices[2].Sub(p).Mul(by))

				px, py := int(p.X()), int(p.Y())
				for ix := px - 1; ix <= px+1; ix++ {
					for iy := py - 1; iy <= py+1; iy++ {
						if ix < 0 || iy < 0 || ix >= 16 || iy >= 16 {
							continue
						}
						visited[iy][ix] &= 0b1
						r := zVisited[iy][ix]
						if r == nil {
							r = &ZRange{10000, -10000}
							zVisited[iy][ix] = r
						}
						r.Lo = minf(r.Lo, p.Z())
						r.Hi = maxf(r.Hi, p.Z())
					}
				}

				if p.X() < 0 || p.Y() < 0 ||
					p.X() >= float32(size[0]) || p.Y() >= float32(size[1]) {
					continue
				}
				r := zPredicted[py][px]
				require.NotNil(t, r, "pattern %d: sample %v missed", pi, p)
				require.GreaterOrEqual(t, p.Z(), r.Lo-0.0001, "pattern %d at %v", pi, p)
				require.LessOrEqual(t, p.Z(), r.Hi+0.0001, "pattern %d at %v", pi, p)
			}
		}

		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				require.NotEqual(t, uint8(0b11), visited[y][x],
					"pattern %d: cell (%d,%d) emitted far from any sample", pi, x, y)
				if zVisited[y][x] != nil && zPredicted[y][x] != nil {
					require.GreaterOrEqual(t, zPredicted[y][x].Lo, zVisited[y][x].Lo-0.5,
						"pattern %d: cell (%d,%d) Z overconservative", pi, x, y)
					require.LessOrEqual(t, zPredicted[y][x].Hi, zVisited[y][x].Hi+0.5,
						"pattern %d: cell (%d,%d) Z overconservative", pi, x, y)
				}
			}
		}
	}
}
