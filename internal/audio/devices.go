// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// stream is the part of *portaudio.Stream the engine drives.
type stream interface {
	Start() error
	Stop() error
	Close() error
	Info() *portaudio.StreamInfo
}

// PortAudio entry points, replaced in tests.
var (
	paLibInitialize              = portaudio.Initialize
	paLibTerminate               = portaudio.Terminate
	paLibDevicesFunc             = portaudio.Devices
	paLibDefaultInputDeviceFunc  = portaudio.DefaultInputDevice
	paLibDefaultOutputDeviceFunc = portaudio.DefaultOutputDevice
	paLibIsFormatSupported       = func(p portaudio.StreamParameters, callback any) error {
		return portaudio.IsFormatSupported(p, callback)
	}
	paLibOpenStream = func(p portaudio.StreamParameters, callback any) (stream, error) {
		s, err := portaudio.OpenStream(p, callback)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Device is a host audio device as reported by PortAudio.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
	LowOutputLatency  time.Duration
	HighOutputLatency time.Duration
}

// FormattedName returns the device name in "<type>: <name>" form.
func (d Device) FormattedName() string {
	return FormatDeviceName(d.HostAPI, d.Name)
}

// FormatDeviceName joins a host API (device type) name and a device name.
func FormatDeviceName(hostAPI, name string) string {
	if hostAPI == "" {
		return name
	}
	return hostAPI + ": " + name
}

// StripDeviceType removes a "<type>:" prefix up to the first colon.
func StripDeviceType(name string) string {
	if _, bare, ok := strings.Cut(name, ":"); ok {
		return strings.TrimSpace(bare)
	}
	return strings.TrimSpace(name)
}

// Devices returns all available audio devices.
func Devices() ([]Device, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = newDevice(i, info)
	}
	return devices, nil
}

func newDevice(id int, info *portaudio.DeviceInfo) Device {
	return Device{
		ID:                id,
		Name:              info.Name,
		HostAPI:           hostAPIName(info),
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
		LowInputLatency:   info.DefaultLowInputLatency,
		HighInputLatency:  info.DefaultHighInputLatency,
		LowOutputLatency:  info.DefaultLowOutputLatency,
		HighOutputLatency: info.DefaultHighOutputLatency,
	}
}

// ListDevices writes information about all available audio devices to w.
// For each device, it shows:
// - Device ID and formatted name
// - Device direction (Input/Output/Input+Output)
// - Channel counts
// - Default sample rate
// - Latency ranges
func ListDevices(w io.Writer) error {
	devices, err := Devices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")

	for _, d := range devices {
		direction := ""
		switch {
		case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
			direction = "Input/Output"
		case d.MaxInputChannels > 0:
			direction = "Input"
		case d.MaxOutputChannels > 0:
			direction = "Output"
		}

		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.FormattedName(), direction)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: In Low=%.2fms High=%.2fms, Out Low=%.2fms High=%.2fms\n",
			ms(d.LowInputLatency), ms(d.HighInputLatency),
			ms(d.LowOutputLatency), ms(d.HighOutputLatency))
		fmt.Fprintln(w)
	}

	return nil
}

func ms(d time.Duration) float64 { return d.Seconds() * 1000 }

// deviceNames returns the formatted names of every device usable in the
// given direction.
func deviceNames(input bool) ([]string, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if hasDirection(info, input) {
			names = append(names, formattedName(info))
		}
	}
	return names, nil
}

// findDevice resolves a formatted or bare device name. An exact match on
// either form wins; otherwise the type prefix is stripped and the bare
// name is compared.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	for _, info := range infos {
		if hasDirection(info, input) && (formattedName(info) == name || info.Name == name) {
			return info, nil
		}
	}

	bare := StripDeviceType(name)
	for _, info := range infos {
		if hasDirection(info, input) && info.Name == bare {
			return info, nil
		}
	}

	return nil, ErrDeviceNotFound
}

func hasDirection(info *portaudio.DeviceInfo, input bool) bool {
	if input {
		return info.MaxInputChannels > 0
	}
	return info.MaxOutputChannels > 0
}

func hostAPIName(info *portaudio.DeviceInfo) string {
	if info == nil || info.HostApi == nil {
		return ""
	}
	return info.HostApi.Name
}

func formattedName(info *portaudio.DeviceInfo) string {
	if info == nil {
		return ""
	}
	return FormatDeviceName(hostAPIName(info), info.Name)
}

// paDevices returns all available PortAudio devices, never a nil slice on
// success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
