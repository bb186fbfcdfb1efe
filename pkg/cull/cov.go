package cull

import "math/bits"

const covWordBits = 64

// CovBuffer tracks which samples of a beam depth buffer have been
// written, so that nearer geometry painted first keeps ownership of its
// samples. It is a plain bit array: a set bit means "not yet painted".
type CovBuffer struct {
	words []uint64
	n     uint32
}

// Resize clears the buffer and marks n samples as unpainted.
func (c *CovBuffer) Resize(n uint32) {
	count := int(n/covWordBits) + 1
	if cap(c.words) < count {
		c.words = make([]uint64, count)
	}
	c.words = c.words[:count]
	for i := range c.words {
		c.words[i] = ^uint64(0)
	}
	c.n = n
}

// Len returns the sample count set by the last Resize.
func (c *CovBuffer) Len() uint32 { return c.n }

// Paint visits every unpainted index in [start, end) exactly once and
// marks it painted.
func (c *CovBuffer) Paint(start, end uint32, paint func(i uint32)) {
	if start >= end {
		return
	}
	wi := int(start / covWordBits)
	last := int((end - 1) / covWordBits)
	for ; wi <= last; wi++ {
		w := c.words[wi]

		// Mask off bits outside [start, end).
		base := uint32(wi) * covWordBits
		if base < start {
			w &^= (1 << (start - base)) - 1
		}
		if base+covWordBits > end {
			w &= (1 << (end - base)) - 1
		}

		c.words[wi] &^= w
		for w != 0 {
			i := base + uint32(bits.TrailingZeros64(w))
			paint(i)
			w &= w - 1
		}
	}
}

// PaintAll visits every remaining unpainted index and marks it painted.
func (c *CovBuffer) PaintAll(paint func(i uint32)) {
	c.Paint(0, c.n, paint)
}
