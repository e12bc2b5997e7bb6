// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"sync/atomic"
)

// Param is a normalized [0, 1] control written by the control thread and read
// by the audio thread. The zero value holds 0.
type Param struct {
	bits atomic.Uint32
}

// NewParam returns a Param holding the clamped initial value.
func NewParam(initial float32) *Param {
	p := &Param{}
	p.Set(initial)
	return p
}

// Set stores v clamped to [0, 1].
func (p *Param) Set(v float32) {
	p.bits.Store(math.Float32bits(clamp01(v)))
}

// Get loads the current value.
func (p *Param) Get() float32 {
	return math.Float32frombits(p.bits.Load())
}
