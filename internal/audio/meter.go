// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

const (
	signMask = 1 << 31
	oneBits  = 0x3f800000 // math.Float32bits(1)
	infBits  = 0x7f800000 // math.Float32bits(+Inf)
)

// levelCell carries one instantaneous peak from the audio thread to any
// number of readers. It has no ordering relationship with other fields.
type levelCell struct {
	bits atomic.Uint32
}

func (c *levelCell) store(v float32) { c.bits.Store(math.Float32bits(v)) }

func (c *levelCell) load() float32 { return math.Float32frombits(c.bits.Load()) }

// peakLevel returns the largest magnitude in buf, capped at 1.
//
// With the sign bit cleared, IEEE-754 bit patterns order the same way as the
// magnitudes they encode, so the scan runs on integers. NaNs sort above +Inf
// and are skipped.
func peakLevel(buf []float32) float32 {
	var peak uint32
	for _, s := range buf {
		a := math.Float32bits(s) &^ signMask
		if a > peak && a <= infBits {
			peak = a
		}
	}
	return math.Float32frombits(min(peak, oneBits))
}
