// SPDX-License-Identifier: MIT
package transport

import "time"

// Transport defines a generic interface for sending telemetry frames or events.
// Implementations should be thread-safe and must not block the caller for long.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types carried in the Type field of every payload.
const (
	TypeLevels      = "levels"
	TypeDeviceError = "device_error"
)

// LevelFrame is one metering snapshot of the rig.
type LevelFrame struct {
	Type       string    `json:"type"`
	Seq        uint32    `json:"seq"`
	Time       time.Time `json:"time"`
	Input      float32   `json:"input"`       // Linear peak, [0, 1]
	Output     float32   `json:"output"`      // Linear peak, [0, 1]
	InputHold  float32   `json:"input_hold"`  // Held peak, [0, 1]
	OutputHold float32   `json:"output_hold"` // Held peak, [0, 1]
	InputDB    float64   `json:"input_db"`    // Peak in dBFS, floored
	OutputDB   float64   `json:"output_db"`   // Peak in dBFS, floored
	Bypassed   bool      `json:"bypassed,omitzero"`
}

// DeviceEvent reports a runtime condition raised by the audio device.
type DeviceEvent struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Multi fans every payload out to several transports. Send reports the
// first error but always tries every transport.
type Multi []Transport

func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)
