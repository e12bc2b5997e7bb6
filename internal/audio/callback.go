// SPDX-License-Identifier: MIT
package audio

import "github.com/gordonklaus/portaudio"

// processStream is the PortAudio callback.
// Performance Critical:
// - Runs on the driver's real-time thread
// - No allocations, locks or blocking calls
// - Writes only to the buffers it is handed and to atomics
func (e *Engine) processStream(in, out [][]float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags != 0 {
		e.status.Or(uint32(flags))
	}
	e.process(in, out)
}

// process meters the first input channel, runs it through the installed
// processor (or copies it) into the first output channel and duplicates
// that into the second. Remaining output channels stay silent.
func (e *Engine) process(in, out [][]float32) {
	defer e.recoverSilence(out)

	var input []float32
	if len(in) > 0 {
		input = in[0]
	}
	e.inputLevel.store(peakLevel(input))

	for _, ch := range out {
		clear(ch)
	}
	if len(out) == 0 {
		e.outputLevel.store(0)
		return
	}

	first := out[0]
	if input != nil {
		n := min(len(input), len(first))
		if slot := e.slot.Load(); slot != nil {
			p := slot.processor
			for i := range n {
				first[i] = p.ProcessSample(input[i])
			}
		} else {
			copy(first, input[:n])
		}
		if len(out) > 1 {
			copy(out[1], first)
		}
	}

	e.outputLevel.store(peakLevel(first))
}

// recoverSilence turns a processor panic into a silent buffer and a
// StatusProcessorFault for the watchdog.
func (e *Engine) recoverSilence(out [][]float32) {
	if r := recover(); r != nil {
		for _, ch := range out {
			clear(ch)
		}
		e.outputLevel.store(0)
		e.status.Or(uint32(StatusProcessorFault))
	}
}
