// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

var (
	ErrNotInitialized   = errors.New("engine not initialized")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrNoOutputChannels = errors.New("no output channels available")
	ErrClosed           = errors.New("engine closed")
)

// ConfigError reports a device that rejected the requested configuration.
type ConfigError struct {
	Op     string
	Device string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("audio: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("audio: %s %q: %v", e.Op, e.Device, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StartError reports a stream that could not be started.
type StartError struct {
	Device string
	Err    error
}

func (e *StartError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("audio: start: %v", e.Err)
	}
	return fmt.Sprintf("audio: start %q: %v", e.Device, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Status is a set of runtime conditions raised by the audio callback.
type Status uint32

const (
	StatusInputUnderflow  = Status(portaudio.InputUnderflow)
	StatusInputOverflow   = Status(portaudio.InputOverflow)
	StatusOutputUnderflow = Status(portaudio.OutputUnderflow)
	StatusOutputOverflow  = Status(portaudio.OutputOverflow)
	StatusPrimingOutput   = Status(portaudio.PrimingOutput)

	// StatusProcessorFault is raised when the installed processor panicked
	// and the buffer was replaced with silence.
	StatusProcessorFault Status = 1 << 16
)

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusInputUnderflow, "input underflow"},
	{StatusInputOverflow, "input overflow"},
	{StatusOutputUnderflow, "output underflow"},
	{StatusOutputOverflow, "output overflow"},
	{StatusPrimingOutput, "priming output"},
	{StatusProcessorFault, "processor fault"},
}

func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	for _, n := range statusNames {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
			s &^= n.bit
		}
	}
	if s != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(s)))
	}
	return strings.Join(parts, ", ")
}

// DeviceError is a runtime condition observed on the audio thread and
// delivered on Engine.Errors.
type DeviceError struct {
	Status Status
	Time   time.Time
}

func (e *DeviceError) Error() string {
	return "audio: device: " + e.Status.String()
}
