// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"testing"
)

// doubler doubles its input and counts how often it ran.
type doubler struct {
	calls    int
	prepared float64
	resets   int
}

func (d *doubler) Process(x float32) float32 { d.calls++; return x * 2 }
func (d *doubler) Prepare(sampleRate float64) { d.prepared = sampleRate }
func (d *doubler) Reset()                     { d.resets++ }

func TestBypassEnabledState(t *testing.T) {
	b := NewBypass(&doubler{})

	if !b.Enabled() {
		t.Error("Stage should be enabled by default")
	}

	b.SetEnabled(false)
	if b.Enabled() {
		t.Error("Stage should be disabled after SetEnabled(false)")
	}

	b.SetEnabled(true)
	b.SetEnabled(true)
	if !b.Enabled() {
		t.Error("Stage should remain enabled after repeated SetEnabled(true)")
	}
}

func TestBypassProcessing(t *testing.T) {
	effect := &doubler{}
	b := NewBypass(effect)

	if got := b.ProcessSample(0.5); got != 1 {
		t.Errorf("enabled: got %v, want 1", got)
	}

	b.SetEnabled(false)
	if got := b.ProcessSample(0.5); got != 0.5 {
		t.Errorf("disabled: got %v, want 0.5", got)
	}
	if effect.calls != 1 {
		t.Errorf("effect ran %d times, want 1 (no delegate call while disabled)", effect.calls)
	}
}

func TestBypassIsBitExact(t *testing.T) {
	b := NewBypass(&doubler{})
	b.SetEnabled(false)

	inputs := []float32{
		0, float32(math.Copysign(0, -1)), 1e-38, -1e-38, 0.1, -0.999999,
		math.MaxFloat32, -math.MaxFloat32,
		float32(math.Inf(1)), float32(math.Inf(-1)), float32(math.NaN()),
	}
	for _, x := range inputs {
		got := b.ProcessSample(x)
		if math.Float32bits(got) != math.Float32bits(x) {
			t.Errorf("ProcessSample(%v) = %v, bits differ", x, got)
		}
	}
}

func TestBypassLeavesOverdriveStateUntouched(t *testing.T) {
	signal := []float32{0.3, -0.2, 0.7, 0.1, -0.6, 0.05}

	reference := NewOverdrive()
	reference.SetTone(0.2)
	want := make([]float32, len(signal))
	for i, x := range signal {
		want[i] = reference.ProcessSample(x)
	}

	od := NewOverdrive()
	od.SetTone(0.2)
	for i, x := range signal {
		if i == 3 {
			// A burst of bypassed samples in the middle must not disturb the filter.
			od.SetEnabled(false)
			for range 64 {
				od.ProcessSample(0.9)
			}
			od.SetEnabled(true)
		}
		if got := od.ProcessSample(x); got != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestBypassDelegatesLifecycle(t *testing.T) {
	effect := &doubler{}
	b := NewBypass(effect)

	b.Prepare(48000)
	b.Reset()

	if effect.prepared != 48000 {
		t.Errorf("Prepare not delegated, got %v", effect.prepared)
	}
	if effect.resets != 1 {
		t.Errorf("Reset not delegated, got %d", effect.resets)
	}
}
