// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and hardware limits for the rig.
const (
	DefaultLogLevel       = "info"
	DefaultSampleRate     = 44100 // CD-quality audio
	DefaultBufferSize     = 512   // Balanced latency/performance
	DefaultChannels       = 0     // 0 lets the engine pick from the device
	DefaultLowLatency     = false // Standard latency mode
	DefaultOverdriveOn    = true
	DefaultDrive          = 0.5
	DefaultTone           = 0.5
	DefaultLevel          = 0.7
	DefaultMonitorRate    = 33 * time.Millisecond // ~30 FPS
	DefaultPeakHold       = time.Second
	DefaultWebSocketAddr  = ":8080"
	DefaultUDPTargetAddr  = "127.0.0.1:9090"
	DefaultConfigFileName = "config.yaml"

	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinBufferFrames = 16
	MaxBufferFrames = 8192 // Maximum frames per buffer (power of 2)
	MaxChannels     = 2
)

// Config is the runtime configuration of the rig. It is loaded from YAML,
// overridden from FINIRIG_* environment variables and finally from CLI flags.
type Config struct {
	LogLevel  string          `yaml:"log_level" validate:"oneof=debug info warn error"`
	Audio     AudioConfig     `yaml:"audio"`
	Overdrive OverdriveConfig `yaml:"overdrive"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// AudioConfig selects the devices and stream format. Empty device names
// select the host defaults.
type AudioConfig struct {
	InputDevice    string  `yaml:"input_device"`
	OutputDevice   string  `yaml:"output_device"`
	SampleRate     float64 `yaml:"sample_rate" validate:"gte=8000,lte=192000"`
	BufferSize     int     `yaml:"buffer_size" validate:"gte=16,lte=8192"`
	InputChannels  int     `yaml:"input_channels" validate:"gte=0,lte=2"`
	OutputChannels int     `yaml:"output_channels" validate:"gte=0,lte=2"`
	LowLatency     bool    `yaml:"low_latency"`
}

// OverdriveConfig holds the initial pedal settings. Values outside [0, 1]
// are clamped by the pedal itself, so they are not validated here.
type OverdriveConfig struct {
	Enabled bool    `yaml:"enabled"`
	Drive   float32 `yaml:"drive"`
	Tone    float32 `yaml:"tone"`
	Level   float32 `yaml:"level"`
}

// MonitorConfig controls the level telemetry published off the audio thread.
type MonitorConfig struct {
	Interval         time.Duration `yaml:"interval" validate:"gt=0"`
	PeakHold         time.Duration `yaml:"peak_hold" validate:"gte=0"`
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address" validate:"required_if=WebSocketEnabled true"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address" validate:"omitempty,hostname_port"`
}

// NewConfig returns a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			SampleRate:     DefaultSampleRate,
			BufferSize:     DefaultBufferSize,
			InputChannels:  DefaultChannels,
			OutputChannels: DefaultChannels,
			LowLatency:     DefaultLowLatency,
		},
		Overdrive: OverdriveConfig{
			Enabled: DefaultOverdriveOn,
			Drive:   DefaultDrive,
			Tone:    DefaultTone,
			Level:   DefaultLevel,
		},
		Monitor: MonitorConfig{
			Interval:         DefaultMonitorRate,
			PeakHold:         DefaultPeakHold,
			WebSocketAddress: DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTargetAddr,
		},
	}
}
