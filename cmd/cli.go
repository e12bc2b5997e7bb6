// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finirig/internal/config"
	"finirig/pkg/build"
)

// Commands selected on the command line.
const (
	CommandRun  = "run"
	CommandList = "list"
	CommandInfo = "info"
)

// Options is the parsed command line: the effective configuration and the
// command to execute. Command is empty when cobra already handled the
// invocation (help, version).
type Options struct {
	Config  *config.Config
	Command string
	TUI     bool
}

// flagValues receives the raw flag values before they are merged over the
// loaded configuration.
type flagValues struct {
	configPath string
	input      string
	output     string
	sampleRate float64
	bufferSize int
	lowLatency bool
	drive      float32
	tone       float32
	level      float32
	bypass     bool
	wsAddress  string
	udpTarget  string
	logLevel   string
	verbose    bool
}

// ParseArgs parses args (without the program name). Help and version text is
// written to out.
func ParseArgs(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}
	var f flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(f.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg, &f); err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Open the configured devices and print the negotiated stream format",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandInfo
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "",
		"Path to a YAML config file (default ./"+config.DefaultConfigFileName+" if present)")

	// Audio Device Configuration
	pf.StringVarP(&f.input, "input", "i", "",
		"Input device name. Use 'list' command to see available devices.")
	pf.StringVarP(&f.output, "output", "o", "",
		"Output device name. Use 'list' command to see available devices.")
	pf.Float64VarP(&f.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&f.bufferSize, "buffer-size", "b", config.DefaultBufferSize,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&f.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the devices' low latency settings")

	// Pedal Configuration
	pf.Float32Var(&f.drive, "drive", config.DefaultDrive, "Overdrive drive amount [0, 1]")
	pf.Float32Var(&f.tone, "tone", config.DefaultTone, "Overdrive tone [0, 1], dark to bright")
	pf.Float32Var(&f.level, "level", config.DefaultLevel, "Overdrive output level [0, 1]")
	pf.BoolVar(&f.bypass, "bypass", false, "Start with the overdrive bypassed")

	// Telemetry Configuration
	pf.StringVar(&f.wsAddress, "ws", "",
		"Serve level telemetry over WebSocket on this address, e.g. :8080")
	pf.StringVar(&f.udpTarget, "udp", "",
		"Send level telemetry as UDP packets to this host:port")
	pf.BoolVar(&opts.TUI, "tui", false, "Run the terminal interface instead of running headless")

	// Debug Configuration
	pf.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Show verbose output (same as --log-level debug)")

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

// applyFlags merges explicitly set flags over cfg and revalidates it. Flags
// left at their defaults never override the file or environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *flagValues) error {
	flags := cmd.Flags()
	changed := flags.Changed

	if changed("input") {
		cfg.Audio.InputDevice = f.input
	}
	if changed("output") {
		cfg.Audio.OutputDevice = f.output
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("buffer-size") {
		cfg.Audio.BufferSize = f.bufferSize
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("drive") {
		cfg.Overdrive.Drive = f.drive
	}
	if changed("tone") {
		cfg.Overdrive.Tone = f.tone
	}
	if changed("level") {
		cfg.Overdrive.Level = f.level
	}
	if changed("bypass") {
		cfg.Overdrive.Enabled = !f.bypass
	}
	if changed("ws") {
		cfg.Monitor.WebSocketEnabled = f.wsAddress != ""
		if f.wsAddress != "" {
			cfg.Monitor.WebSocketAddress = f.wsAddress
		}
	}
	if changed("udp") {
		cfg.Monitor.UDPEnabled = f.udpTarget != ""
		if f.udpTarget != "" {
			cfg.Monitor.UDPTargetAddress = f.udpTarget
		}
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
