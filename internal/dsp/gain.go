// SPDX-License-Identifier: MIT
package dsp

// GainStage is the extension point for amplifier models. Gain and master
// volume are independent normalized controls; how they combine is up to the
// concrete model.
type GainStage interface {
	Processor
	SetGain(g float32)
	Gain() float32
	SetMasterVolume(v float32)
	MasterVolume() float32
}

// GainControls implements the GainStage accessors. Amplifier models embed it
// and read Gain and MasterVolume from ProcessSample. Both start at 0; setters
// clamp to [0, 1].
type GainControls struct {
	gain   Param
	master Param
}

func (c *GainControls) SetGain(g float32)         { c.gain.Set(g) }
func (c *GainControls) Gain() float32             { return c.gain.Get() }
func (c *GainControls) SetMasterVolume(v float32) { c.master.Set(v) }
func (c *GainControls) MasterVolume() float32     { return c.master.Get() }
