package cull

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCovBufferPaintOnce(t *testing.T) {
	var cov CovBuffer
	cov.Resize(200)
	require.Equal(t, uint32(200), cov.Len())

	painted := make([]int, 200)

	cov.Paint(10, 80, func(i uint32) {
		require.True(t, i >= 10 && i < 80)
		painted[i]++
	})
	// Overlapping paint only yields the still-unpainted indices.
	cov.Paint(50, 130, func(i uint32) {
		require.True(t, i >= 80 && i < 130)
		painted[i]++
	})
	cov.PaintAll(func(i uint32) {
		painted[i]++
	})

	for i, n := range painted {
		require.Equal(t, 1, n, "index %d painted %d times", i, n)
	}
}

func TestCovBufferEmptySpan(t *testing.T) {
	var cov CovBuffer
	cov.Resize(64)
	cov.Paint(30, 30, func(i uint32) {
		t.Fatalf("painted %d for an empty span", i)
	})
	cov.Paint(40, 30, func(i uint32) {
		t.Fatalf("painted %d for an inverted span", i)
	})
}

func TestCovBufferWordBoundaries(t *testing.T) {
	var cov CovBuffer
	cov.Resize(192)

	cov.Paint(63, 65, func(i uint32) {
		require.True(t, i == 63 || i == 64)
	})
	cov.Paint(64, 128, func(i uint32) {
		require.True(t, i >= 65 && i < 128, "index %d", i)
	})

	var rest []uint32
	cov.PaintAll(func(i uint32) { rest = append(rest, i) })
	// 2 + 63 indices are already painted.
	require.Len(t, rest, 192-65)
}

func TestCovBufferRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := uint32(rng.Intn(300) + 1)
		var cov CovBuffer
		cov.Resize(n)

		painted := make([]bool, n)
		for op := 0; op < 20; op++ {
			a := uint32(rng.Intn(int(n)))
			b := uint32(rng.Intn(int(n)))
			if a > b {
				a, b = b, a
			}
			cov.Paint(a, b, func(i uint32) {
				require.False(t, painted[i])
				require.True(t, i >= a && i < b)
				painted[i] = true
			})
		}
		cov.PaintAll(func(i uint32) {
			require.False(t, painted[i])
			painted[i] = true
		})
		for i, p := range painted {
			require.True(t, p, "index %d never painted", i)
		}
	}
}
