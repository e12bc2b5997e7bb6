// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	DefaultDrive = 0.5
	DefaultTone  = 0.5
	DefaultLevel = 0.7

	DefaultSampleRate = 44100.0

	// Pre-gain range: drive 0 is unity, drive 1 is 10x.
	maxDriveGain = 9.0

	// Tone cutoff range for the one-pole filter, in Hz.
	minToneCutoff = 200.0
	maxToneCutoff = 5000.0

	// Beyond this magnitude the rational clipper is pinned to +/-1.
	softClipKnee = 3.0
)

// overdriveParams is an immutable snapshot of every control the audio thread
// reads. The control thread publishes a fresh copy on each write.
type overdriveParams struct {
	drive, tone, level float32
	sampleRate         float64

	lowpassCoeff  float32
	highpassCoeff float32 // unused by Process; the highpass branch is clipped - lowpassed
}

func (p overdriveParams) withCoefficients() *overdriveParams {
	cutoff := minToneCutoff + float64(p.tone)*(maxToneCutoff-minToneCutoff)
	rc := 1.0 / (2.0 * math.Pi * cutoff)
	dt := 1.0 / p.sampleRate
	p.lowpassCoeff = float32(dt / (rc + dt))
	p.highpassCoeff = float32(rc / (rc + dt))
	return &p
}

// Overdrive is a soft-clipping drive pedal with a tone blend and output level.
//
// Per sample: pre-gain by drive, rational soft clip, one-pole lowpass with the
// highpass taken as the residual, blend the two by tone, scale by level.
// The filter memory is owned by the audio thread.
type Overdrive struct {
	*Bypass

	mu     sync.Mutex // serializes control-side writers
	params atomic.Pointer[overdriveParams]

	filterState float32
}

var (
	_ Processor = (*Overdrive)(nil)
	_ Effect    = (*Overdrive)(nil)
)

// NewOverdrive returns an enabled pedal with drive 0.5, tone 0.5, level 0.7
// prepared for 44.1 kHz.
func NewOverdrive() *Overdrive {
	o := &Overdrive{}
	o.Bypass = NewBypass(o)
	o.params.Store(overdriveParams{
		drive:      DefaultDrive,
		tone:       DefaultTone,
		level:      DefaultLevel,
		sampleRate: DefaultSampleRate,
	}.withCoefficients())
	return o
}

// update applies fn to a copy of the current snapshot and publishes it.
func (o *Overdrive) update(fn func(p *overdriveParams)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next := *o.params.Load()
	fn(&next)
	o.params.Store(next.withCoefficients())
}

func (o *Overdrive) SetDrive(drive float32) {
	o.update(func(p *overdriveParams) { p.drive = clamp01(drive) })
}

// SetTone sets the dark (0) to bright (1) blend and moves the filter cutoff.
func (o *Overdrive) SetTone(tone float32) {
	o.update(func(p *overdriveParams) { p.tone = clamp01(tone) })
}

func (o *Overdrive) SetLevel(level float32) {
	o.update(func(p *overdriveParams) { p.level = clamp01(level) })
}

func (o *Overdrive) Drive() float32 { return o.params.Load().drive }
func (o *Overdrive) Tone() float32  { return o.params.Load().tone }
func (o *Overdrive) Level() float32 { return o.params.Load().level }

// SampleRate returns the rate the coefficients were derived for.
func (o *Overdrive) SampleRate() float64 { return o.params.Load().sampleRate }

// Coefficients returns the current lowpass and complementary highpass
// coefficients.
func (o *Overdrive) Coefficients() (lowpass, highpass float32) {
	p := o.params.Load()
	return p.lowpassCoeff, p.highpassCoeff
}

// Prepare stores sampleRate, recomputes the filter coefficients and clears
// the filter memory. Non-positive rates are ignored for the coefficients.
func (o *Overdrive) Prepare(sampleRate float64) {
	if sampleRate > 0 {
		o.update(func(p *overdriveParams) { p.sampleRate = sampleRate })
	}
	o.Reset()
}

// Reset clears the filter memory. Parameters are untouched.
func (o *Overdrive) Reset() {
	o.filterState = 0
}

// Process runs the overdrive on one sample. It is reached through
// ProcessSample only while the pedal is enabled.
func (o *Overdrive) Process(x float32) float32 {
	p := o.params.Load()

	driven := x * (1 + p.drive*maxDriveGain)
	clipped := SoftClip(driven)

	o.filterState += p.lowpassCoeff * (clipped - o.filterState)
	lowpassed := o.filterState
	highpassed := clipped - lowpassed

	blended := lowpassed*(1-p.tone) + highpassed*p.tone
	return blended * p.level
}

// SoftClip is a Pade-style rational saturation curve. It is odd, continuous
// at the +/-3 knee and bounded to [-1, 1].
func SoftClip(x float32) float32 {
	if x > -softClipKnee && x < softClipKnee {
		x2 := x * x
		return x * (27 + x2) / (27 + 9*x2)
	}
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return x // NaN
}
