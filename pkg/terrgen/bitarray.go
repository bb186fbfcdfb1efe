package terrgen

import "math/bits"

// Bit-array helpers used by the voxelizer and the morphology passes.
// A row of voxels along the Z axis is packed into a []uint64, bit i
// representing the voxel at z = i.

const wordBits = 64

func bitWords(n uint32) int { return int((n + wordBits - 1) / wordBits) }

// bitSetRange sets the bits in [start, end).
func bitSetRange(words []uint64, start, end uint32) {
	if start >= end {
		return
	}
	first, last := start/wordBits, (end-1)/wordBits
	startMask := ^uint64(0) << (start % wordBits)
	endMask := ^uint64(0) >> (wordBits - 1 - (end-1)%wordBits)
	if first == last {
		words[first] |= startMask & endMask
		return
	}
	words[first] |= startMask
	for i := first + 1; i < last; i++ {
		words[i] = ^uint64(0)
	}
	words[last] |= endMask
}

// bitClearRange clears the bits in [start, end).
func bitClearRange(words []uint64, start, end uint32) {
	if start >= end {
		return
	}
	first, last := start/wordBits, (end-1)/wordBits
	startMask := ^uint64(0) << (start % wordBits)
	endMask := ^uint64(0) >> (wordBits - 1 - (end-1)%wordBits)
	if first == last {
		words[first] &^= startMask & endMask
		return
	}
	words[first] &^= startMask
	for i := first + 1; i < last; i++ {
		words[i] = 0
	}
	words[last] &^= endMask
}

// bitEnumSpans visits the maximal runs of equal bits in [0, depth), in
// order, reporting each run's exclusive upper bound and value. The
// last call always carries zEnd == depth.
func bitEnumSpans(words []uint64, depth uint32, handler func(zEnd uint32, set bool)) {
	if depth == 0 {
		return
	}

	pos := uint32(0)
	cur := words[0]&1 != 0

	for pos < depth {
		// Extend the current run until a differing bit or the depth.
		next := pos
		for next < depth {
			shift := next % wordBits
			w := words[next/wordBits]
			if !cur {
				w = ^w
			}
			// Inverting before the shift pads with zero bits, so the
			// count never runs past the word boundary.
			w >>= shift
			n := uint32(bits.TrailingZeros64(^w))
			next += n
			if n < wordBits-shift {
				break
			}
		}

		if next >= depth {
			handler(depth, cur)
			return
		}
		handler(next, cur)
		pos = next
		cur = !cur
	}
}
