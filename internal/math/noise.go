package noise

import (
	"math"
	"math/rand"
)

// NoiseGenerator produces gradient noise for procedural heightfields
type NoiseGenerator struct {
	rng *rand.Rand
}

// NewNoiseGenerator creates a generator for the given seed
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	return &NoiseGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// RandomFloat returns a random float in range [0.0, 1.0)
func (ng *NoiseGenerator) RandomFloat() float64 {
	return ng.rng.Float64()
}

// Perlin2D generates 2D Perlin noise
func (ng *NoiseGenerator) Perlin2D(x, y float64, seed int64) float64 {
	// Get grid points
	x0 := math.Floor(x)
	x1 := x0 + 1.0
	y0 := math.Floor(y)
	y1 := y0 + 1.0

	// Smooth interpolation factors
	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	// Get gradients
	g00 := gradient2D(hash(int(x0), int(y0), int(seed)))
	g10 := gradient2D(hash(int(x1), int(y0), int(seed)))
	g01 := gradient2D(hash(int(x0), int(y1), int(seed)))
	g11 := gradient2D(hash(int(x1), int(y1), int(seed)))

	// Calculate dot products
	dp00 := dot2D(g00[0], g00[1], x-x0, y-y0)
	dp10 := dot2D(g10[0], g10[1], x-x1, y-y0)
	dp01 := dot2D(g01[0], g01[1], x-x0, y-y1)
	dp11 := dot2D(g11[0], g11[1], x-x1, y-y1)

	// Interpolate along x, then y
	v0 := lerp(dp00, dp10, sx)
	v1 := lerp(dp01, dp11, sx)
	return lerp(v0, v1, sy)
}

// FBM2D generates 2D Fractal Brownian Motion noise
func (ng *NoiseGenerator) FBM2D(x, y float64, octaves int, lacunarity, gain float64, seed int64) float64 {
	result := 0.0
	amplitude := 1.0
	frequency := 1.0
	max := 0.0

	for i := 0; i < octaves; i++ {
		result += ng.Perlin2D(x*frequency, y*frequency, seed+int64(i)) * amplitude
		max += amplitude
		amplitude *= gain
		frequency *= lacunarity
	}

	// Normalize
	return result / max
}

// Ridge2D generates 2D ridge noise (useful for terrain ridges/mountains)
func (ng *NoiseGenerator) Ridge2D(x, y float64, seed int64) float64 {
	n := ng.Perlin2D(x, y, seed)

	// Fold the noise around zero and invert to create ridges
	n = 1.0 - math.Abs(n)

	// Sharpen the ridges with a power function
	return math.Pow(n, 2)
}

// hash generates a deterministic hash from grid coordinates
func hash(x, y, seed int) int {
	h := seed + x*374761393 + y*668265263
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// gradient2D generates a 2D gradient from a hash
func gradient2D(hash int) [2]float64 {
	switch hash & 7 {
	case 0:
		return [2]float64{1, 0}
	case 1:
		return [2]float64{-1, 0}
	case 2:
		return [2]float64{0, 1}
	case 3:
		return [2]float64{0, -1}
	case 4:
		return [2]float64{1, 1}
	case 5:
		return [2]float64{-1, 1}
	case 6:
		return [2]float64{1, -1}
	default:
		return [2]float64{-1, -1}
	}
}

// dot2D calculates 2D dot product
func dot2D(x1, y1, x2, y2 float64) float64 {
	return x1*x2 + y1*y2
}

// lerp performs linear interpolation
func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// smoothstep applies a smoothing function to t
func smoothstep(t float64) float64 {
	// Improved Perlin smoothstep: 6t^5 - 15t^4 + 10t^3
	return t * t * t * (t*(t*6.0-15.0) + 10.0)
}
