// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strconv"
)

// DeviceInfo describes the active device configuration.
type DeviceInfo struct {
	Name           string
	Type           string
	SampleRate     float64
	BufferSize     int
	InputChannels  int
	OutputChannels int
}

// String renders the info one field per line in a fixed order so that
// consumers can parse it by line prefix. The zero value renders as
// "No device".
func (d DeviceInfo) String() string {
	if d.Name == "" {
		return "No device"
	}
	return fmt.Sprintf("Device: %s\nType: %s\nSample Rate: %s Hz\nBuffer Size: %d samples\nInput Channels: %d\nOutput Channels: %d",
		d.Name,
		d.Type,
		strconv.FormatFloat(d.SampleRate, 'f', -1, 64),
		d.BufferSize,
		d.InputChannels,
		d.OutputChannels,
	)
}
