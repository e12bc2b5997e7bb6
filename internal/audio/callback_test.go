// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"github.com/gordonklaus/portaudio"

	"finirig/internal/dsp"
	"finirig/pkg/utils"
)

func newBuffers(channels, frames int) [][]float32 {
	bufs := make([][]float32, channels)
	for i := range bufs {
		bufs[i] = make([]float32, frames)
	}
	return bufs
}

func fill(bufs [][]float32, v float32) {
	for _, b := range bufs {
		for i := range b {
			b[i] = v
		}
	}
}

func TestProcessPassthrough(t *testing.T) {
	tests := []struct {
		name     string
		channels int
	}{
		{"mono out", 1},
		{"stereo out", 2},
		{"four channel out", 4},
	}

	input := utils.GenerateComplexWave(testFrameSize, testSampleRate)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Options{})
			out := newBuffers(tt.channels, testFrameSize)
			fill(out, 0.9) // stale data from the previous buffer

			e.process([][]float32{input}, out)

			for i, want := range input {
				if out[0][i] != want {
					t.Fatalf("out[0][%d] = %v, want %v", i, out[0][i], want)
				}
				if tt.channels > 1 && out[1][i] != want {
					t.Fatalf("out[1][%d] = %v, want duplicate %v", i, out[1][i], want)
				}
			}
			for ch := 2; ch < tt.channels; ch++ {
				if p := utils.PeakAbs(out[ch]); p != 0 {
					t.Errorf("channel %d peak = %v, want silence", ch, p)
				}
			}
		})
	}
}

func TestProcessMetering(t *testing.T) {
	e := NewEngine(Options{})
	out := newBuffers(2, 3)

	e.process([][]float32{{0.2, -0.5, 0.3}}, out)

	if got := e.InputLevel(); got != 0.5 {
		t.Errorf("InputLevel = %v, want 0.5", got)
	}
	if got := e.OutputLevel(); got != 0.5 {
		t.Errorf("OutputLevel = %v, want 0.5 in passthrough", got)
	}
}

func TestProcessUsesProcessor(t *testing.T) {
	e := NewEngine(Options{})
	e.SetProcessor(&spyProcessor{gain: 0.5})

	in := []float32{0.2, -0.8, 0.4}
	out := newBuffers(2, len(in))
	e.process([][]float32{in}, out)

	for i, x := range in {
		want := x * 0.5
		if out[0][i] != want || out[1][i] != want {
			t.Errorf("frame %d = %v/%v, want %v", i, out[0][i], out[1][i], want)
		}
	}
	if got := e.InputLevel(); got != 0.8 {
		t.Errorf("InputLevel = %v, want 0.8", got)
	}
	if got := e.OutputLevel(); got != 0.4 {
		t.Errorf("OutputLevel = %v, want 0.4", got)
	}
}

func TestProcessWithOverdrive(t *testing.T) {
	e := NewEngine(Options{})
	od := dsp.NewOverdrive()
	e.SetProcessor(od)

	in := utils.GenerateSineWave(testFrameSize, testSampleRate, 110, 0.8)
	out := newBuffers(2, testFrameSize)
	e.process([][]float32{in}, out)

	// Overdrive output stays within its level.
	if peak := utils.PeakAbs(out[0]); peak == 0 || peak > dsp.DefaultLevel {
		t.Errorf("peak = %v, want in (0, %v]", peak, dsp.DefaultLevel)
	}

	od.SetEnabled(false)
	e.process([][]float32{in}, out)
	for i := range in {
		if out[0][i] != in[i] {
			t.Fatalf("bypassed frame %d = %v, want %v", i, out[0][i], in[i])
		}
	}
}

func TestProcessWithoutInput(t *testing.T) {
	tests := []struct {
		name string
		in   [][]float32
	}{
		{"no input channels", nil},
		{"nil first channel", [][]float32{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Options{})
			p := &spyProcessor{gain: 1}
			e.SetProcessor(p)
			out := newBuffers(2, testFrameSize)
			fill(out, 0.7)

			e.process(tt.in, out)

			for ch := range out {
				if peak := utils.PeakAbs(out[ch]); peak != 0 {
					t.Errorf("channel %d peak = %v, want silence", ch, peak)
				}
			}
			if e.InputLevel() != 0 || e.OutputLevel() != 0 {
				t.Errorf("levels = %v/%v, want 0/0", e.InputLevel(), e.OutputLevel())
			}
		})
	}
}

func TestProcessWithoutOutput(t *testing.T) {
	e := NewEngine(Options{})
	e.process([][]float32{{0.25, -0.1}}, nil)
	if got := e.InputLevel(); got != 0.25 {
		t.Errorf("InputLevel = %v, want 0.25", got)
	}
	if got := e.OutputLevel(); got != 0 {
		t.Errorf("OutputLevel = %v, want 0", got)
	}
}

func TestProcessShortOutput(t *testing.T) {
	e := NewEngine(Options{})
	out := newBuffers(2, 2)
	e.process([][]float32{{0.1, 0.2, 0.3, 0.4}}, out)
	if out[0][1] != 0.2 || out[1][1] != 0.2 {
		t.Errorf("out = %v", out)
	}
}

type panicProcessor struct{ dsp.Lifecycle }

func (panicProcessor) ProcessSample(float32) float32 { panic("boom") }

func TestProcessRecoversToSilence(t *testing.T) {
	e := NewEngine(Options{})
	e.SetProcessor(panicProcessor{})

	out := newBuffers(2, 4)
	fill(out, 0.5)
	e.process([][]float32{{0.1, 0.2, 0.3, 0.4}}, out)

	for ch := range out {
		if peak := utils.PeakAbs(out[ch]); peak != 0 {
			t.Errorf("channel %d peak = %v, want silence", ch, peak)
		}
	}
	if e.OutputLevel() != 0 {
		t.Errorf("OutputLevel = %v, want 0", e.OutputLevel())
	}
	if Status(e.status.Load())&StatusProcessorFault == 0 {
		t.Error("processor fault not flagged")
	}
}

func TestProcessStreamRecordsFlags(t *testing.T) {
	e := NewEngine(Options{})
	out := newBuffers(1, 1)

	e.processStream(nil, out, portaudio.StreamCallbackTimeInfo{}, portaudio.InputOverflow)
	e.processStream(nil, out, portaudio.StreamCallbackTimeInfo{}, portaudio.OutputUnderflow)
	e.processStream(nil, out, portaudio.StreamCallbackTimeInfo{}, 0)

	want := StatusInputOverflow | StatusOutputUnderflow
	if got := Status(e.status.Load()); got != want {
		t.Errorf("status = %v, want %v", got, want)
	}
}

func TestProcessNaNInputDoesNotPoisonMeter(t *testing.T) {
	e := NewEngine(Options{})
	out := newBuffers(1, 3)
	e.process([][]float32{{float32(math.NaN()), 0.3, -0.1}}, out)
	if got := e.InputLevel(); got != 0.3 {
		t.Errorf("InputLevel = %v, want 0.3", got)
	}
}

// TestProcessHotPath verifies the callback allocates nothing.
func TestProcessHotPath(t *testing.T) {
	e := NewEngine(Options{})
	e.SetProcessor(dsp.NewOverdrive())

	in := [][]float32{utils.GenerateComplexWave(testFrameSize, testSampleRate)}
	out := newBuffers(2, testFrameSize)

	allocs := testing.AllocsPerRun(100, func() {
		e.processStream(in, out, portaudio.StreamCallbackTimeInfo{}, 0)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in callback, got %.1f", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	e := NewEngine(Options{})
	e.SetProcessor(dsp.NewOverdrive())

	in := [][]float32{utils.GenerateComplexWave(testFrameSize, testSampleRate)}
	out := newBuffers(2, testFrameSize)

	b.ReportAllocs()
	for b.Loop() {
		e.process(in, out)
	}
}
