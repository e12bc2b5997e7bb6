// SPDX-License-Identifier: MIT
/*
Package dsp implements the sample-level processing units that run inside the
real-time audio callback:
- Processor, the contract every unit satisfies
- Bypass, an enable/disable gate around an Effect
- GainStage, the extension point for amplifier models
- Overdrive, a drive/tone/level soft-clipping pedal

Real-Time Rules:
- ProcessSample never allocates, locks or blocks
- Parameters written by the control thread are published atomically
- Prepare and Reset are only called while the callback is not running
*/
package dsp

// Processor turns one input sample into one output sample.
//
// ProcessSample is called from the real-time audio thread and must run in
// bounded time without allocating, locking or blocking. Any history it keeps
// (filter memory) belongs to the instance, so a single Processor must not be
// driven from two threads at once.
type Processor interface {
	ProcessSample(x float32) float32

	// Prepare re-derives sample-rate dependent coefficients and clears state.
	Prepare(sampleRate float64)

	// Reset clears accumulated state without touching parameters.
	Reset()
}

// BlockProcessor is implemented by units with a genuinely multi-channel
// algorithm. ProcessBlock uses it instead of the mono fan-out when present.
type BlockProcessor interface {
	Processor
	ProcessBlock(buffer []float32, channels, samples int)
}

// ProcessBlock runs p over an interleaved buffer in place.
//
// The default behaviour reads the first channel of every frame, feeds it to
// ProcessSample and writes the result to every channel of that frame. Frames
// that would run past the end of buffer are left untouched.
func ProcessBlock(p Processor, buffer []float32, channels, samples int) {
	if bp, ok := p.(BlockProcessor); ok {
		bp.ProcessBlock(buffer, channels, samples)
		return
	}
	if channels <= 0 || samples <= 0 {
		return
	}
	if frames := len(buffer) / channels; samples > frames {
		samples = frames
	}

	for i := range samples {
		frame := buffer[i*channels : (i+1)*channels]
		out := p.ProcessSample(frame[0])
		for ch := range frame {
			frame[ch] = out
		}
	}
}

// Lifecycle provides no-op Prepare and Reset for stateless units.
type Lifecycle struct{}

func (Lifecycle) Prepare(float64) {}
func (Lifecycle) Reset()          {}

// clamp01 limits v to the normalized parameter range [0, 1].
// NaN collapses to 0.
func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
