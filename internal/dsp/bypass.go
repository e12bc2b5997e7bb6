// SPDX-License-Identifier: MIT
package dsp

import "sync/atomic"

// Effect is the transform a Bypass gates. Process is only reached while the
// stage is enabled.
type Effect interface {
	Process(x float32) float32
	Prepare(sampleRate float64)
	Reset()
}

// Bypass wraps an Effect with a true-bypass switch.
//
// While disabled ProcessSample returns its input bit for bit and never calls
// the effect, so filter memory is left exactly as it was. Toggling takes
// effect on the next sample with no cross-fade, which can produce an audible
// click on loud material.
type Bypass struct {
	effect  Effect
	enabled atomic.Bool
}

var _ Processor = (*Bypass)(nil)

// NewBypass returns an enabled stage around effect.
func NewBypass(effect Effect) *Bypass {
	b := &Bypass{effect: effect}
	b.enabled.Store(true)
	return b
}

// SetEnabled switches between the Enabled and Disabled states.
func (b *Bypass) SetEnabled(enabled bool) {
	b.enabled.Store(enabled)
}

// Enabled reports whether the effect is in the signal path.
func (b *Bypass) Enabled() bool {
	return b.enabled.Load()
}

// ProcessSample passes x through untouched while disabled.
func (b *Bypass) ProcessSample(x float32) float32 {
	if !b.enabled.Load() {
		return x
	}
	return b.effect.Process(x)
}

func (b *Bypass) Prepare(sampleRate float64) { b.effect.Prepare(sampleRate) }
func (b *Bypass) Reset()                     { b.effect.Reset() }
