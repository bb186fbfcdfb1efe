package terrgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErodeViewHollowBox(t *testing.T) {
	for _, tileSizeBits := range []uint32{4, 3} {
		bitmap := voxelizeShell(t, tileSizeBits)
		bitmap.FloodFill([][3]uint32{{0, 0, 0}}, Empty, View)

		eroded := bitmap.ErodeView()
		require.Equal(t, bitmap.Domain(), eroded.Domain())

		// Everything not reachable from the view point counts as an
		// occluder: the shell and its sealed cavity fuse into one solid
		// box, shrunk by one voxel on every side.
		require.Equal(t, Solid, typeAt(eroded, 8, 8, 8), "bits=%d", tileSizeBits)
		require.Equal(t, Solid, typeAt(eroded, 5, 8, 8), "bits=%d", tileSizeBits)
		require.Equal(t, Empty, typeAt(eroded, 4, 8, 8), "bits=%d", tileSizeBits)
		require.Equal(t, Empty, typeAt(eroded, 8, 8, 11), "bits=%d", tileSizeBits)
		require.Equal(t, Solid, typeAt(eroded, 8, 8, 10), "bits=%d", tileSizeBits)
		require.Equal(t, Empty, typeAt(eroded, 0, 0, 0), "bits=%d", tileSizeBits)

		// The output never contains View voxels.
		erodedDomain := eroded.Domain()
		size := erodedDomain.Size()
		for x := uint32(0); x < size[0]; x++ {
			for y := uint32(0); y < size[1]; y++ {
				for z := uint32(0); z < size[2]; z++ {
					require.NotEqual(t, View, typeAt(eroded, x, y, z))
				}
			}
		}
	}
}

// An all-View bitmap erodes to nothing; an untouched one is clipped
// only at the domain boundary, which counts as non-View.
func TestErodeViewExtremes(t *testing.T) {
	bitmap := voxelizeShell(t, 4)
	bitmap.FloodFill([][3]uint32{{0, 0, 0}}, Empty, View)

	// Fill the cavity too, leaving only the shell.
	bitmap.FloodFill([][3]uint32{{8, 8, 8}}, Empty, View)

	eroded := bitmap.ErodeView()

	// A one-voxel-thick shell between View on both sides vanishes.
	erodedDomain := eroded.Domain()
	size := erodedDomain.Size()
	for x := uint32(0); x < size[0]; x++ {
		for y := uint32(0); y < size[1]; y++ {
			for z := uint32(0); z < size[2]; z++ {
				if typeAt(eroded, x, y, z) == Solid {
					// Only voxels of the shell at least two voxels
					// thick may survive; corners of the conservative
					// voxelization can be that thick.
					require.Equal(t, Solid, typeAt(bitmap, x, y, z))
				}
			}
		}
	}
}
