// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"finirig/cmd"
	"finirig/internal/audio"
	"finirig/internal/config"
	"finirig/internal/dsp"
	"finirig/internal/log"
	"finirig/internal/monitor"
	"finirig/internal/transport"
	"finirig/internal/transport/udp"
	"finirig/internal/tui"
	"finirig/pkg/build"
)

// tuiLogFile receives log output while the TUI owns the terminal.
const tuiLogFile = "finirig.log"

// main is the entry point for the overdrive rig.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the devices and start the stream with the overdrive installed
//   - Publish level telemetry
//   - Run the TUI or wait for a termination signal
//
// 3. Shutdown Phase (Cold Path):
//   - Stop telemetry
//   - Stop and close the stream
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no linker flags; that is worth a warning only.
	if err := build.Initialize(); err != nil {
		log.Debugf("build info incomplete: %v", err)
	}

	// One thread for the audio callback, one for UI and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.Command == "" {
		return
	}
	cfg := opts.Config

	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("unknown log level %q, using %s", cfg.LogLevel, level)
	}
	log.SetLevel(level)

	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	err = dispatch(opts)
	if terr := audio.Terminate(); terr != nil {
		log.Warnf("%v", terr)
	}
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

// dispatch runs the selected command with PortAudio initialized.
func dispatch(opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandInfo:
		return printInfo(opts.Config)
	default:
		return run(opts.Config, opts.TUI)
	}
}

// run executes the concurrent phase and shuts down cleanly on return.
func run(cfg *config.Config, withTUI bool) error {
	// ==================== CONCURRENT PHASE (Hot Path) ====================

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("closing audio engine: %v", err)
		}
	}()

	pedal := dsp.NewOverdrive()
	pedal.SetDrive(cfg.Overdrive.Drive)
	pedal.SetTone(cfg.Overdrive.Tone)
	pedal.SetLevel(cfg.Overdrive.Level)
	pedal.SetEnabled(cfg.Overdrive.Enabled)
	engine.SetProcessor(pedal)

	// CRITICAL: Start of real-time audio processing
	if err := engine.Start(); err != nil {
		return err
	}
	log.Infof("%s", engine.DeviceInfo())

	sink, err := telemetry(cfg.Monitor)
	if err != nil {
		return err
	}
	publisher, err := monitor.NewPublisher(engine, sink, monitor.Options{
		Interval: cfg.Monitor.Interval,
		PeakHold: cfg.Monitor.PeakHold,
		Errors:   engine.Errors(),
		Bypassed: func() bool { return !pedal.Enabled() },
	})
	if err != nil {
		sink.Close()
		return err
	}
	publisher.Start()
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Errorf("closing telemetry: %v", err)
		}
	}()

	if withTUI {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		defer log.SetOutput(os.Stderr)

		return tui.Run(engine, pedal, publisher)
	}

	// Block until termination signal is received
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	fmt.Printf("Running, press Ctrl+C to stop. '%s --help' for usage information.\n", build.GetBuildFlags().Name)
	<-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	log.Infof("shutting down")
	return nil
}

// openEngine creates an engine, selects the configured devices and opens
// the stream.
func openEngine(cfg *config.Config) (*audio.Engine, error) {
	engine := audio.NewEngine(audio.Options{
		InputChannels:  cfg.Audio.InputChannels,
		OutputChannels: cfg.Audio.OutputChannels,
		LowLatency:     cfg.Audio.LowLatency,
	})

	if cfg.Audio.InputDevice != "" {
		if err := engine.SetInputDevice(cfg.Audio.InputDevice); err != nil {
			return nil, err
		}
	}
	if cfg.Audio.OutputDevice != "" {
		if err := engine.SetOutputDevice(cfg.Audio.OutputDevice); err != nil {
			return nil, err
		}
	}

	if err := engine.Initialize(cfg.Audio.SampleRate, cfg.Audio.BufferSize); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

// telemetry builds the transport fan-out for the monitor. Log output is
// always present; WebSocket and UDP are added when enabled.
func telemetry(cfg config.MonitorConfig) (transport.Transport, error) {
	multi := transport.Multi{transport.NewLoggingTransport()}

	if cfg.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.WebSocketAddress)
		if err := ws.Start(); err != nil {
			ws.Close()
			multi.Close()
			return nil, fmt.Errorf("websocket telemetry: %w", err)
		}
		multi = append(multi, ws)
	}

	if cfg.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.UDPTargetAddress)
		if err != nil {
			multi.Close()
			return nil, fmt.Errorf("udp telemetry: %w", err)
		}
		t, err := udp.NewUDPTransport(sender)
		if err != nil {
			sender.Close()
			multi.Close()
			return nil, err
		}
		multi = append(multi, t)
	}

	return multi, nil
}

// printInfo opens the configured devices and prints what was negotiated.
func printInfo(cfg *config.Config) error {
	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println(engine.DeviceInfo())
	return nil
}
