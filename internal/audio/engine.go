// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time engine that binds a processing unit to
the host audio hardware through PortAudio:
- Duplex float32 stream with a lock-free per-buffer callback
- Mono input fanned out to the first two output channels
- Atomic peak metering of input and output
- Device enumeration, selection and runtime error reporting

Thread Safety:
- The callback never allocates, locks or blocks
- The installed processor is published through an atomic pointer
- Control-side state (stream, devices, lifecycle) is guarded by a mutex the
  callback never takes
- Runtime conditions raised by the callback are harvested by a watchdog
  goroutine and delivered on Errors()
*/
package audio

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"finirig/internal/dsp"
	"finirig/internal/log"
)

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	defaultInputChannels  = 1
	defaultOutputChannels = 2

	watchdogInterval = 50 * time.Millisecond
	errorQueueSize   = 16
)

// Options selects the channel counts and latency class of the stream. A
// zero channel count lets the engine choose from what the device offers.
type Options struct {
	InputChannels  int
	OutputChannels int
	LowLatency     bool
}

// processorSlot is immutable once published.
type processorSlot struct {
	processor dsp.Processor
}

type Engine struct {
	mu     sync.Mutex
	state  State
	closed bool
	opts   Options

	stream       stream
	inputDevice  *portaudio.DeviceInfo // nil selects the host default
	outputDevice *portaudio.DeviceInfo // nil selects the host default
	openInput    *portaudio.DeviceInfo
	openOutput   *portaudio.DeviceInfo
	inChannels   int
	outChannels  int
	sampleRate   float64
	bufferSize   int

	// Shared with the audio thread.
	slot        atomic.Pointer[processorSlot]
	inputLevel  levelCell
	outputLevel levelCell
	status      atomic.Uint32

	errs      chan error
	watchdog  chan struct{}
	watchWG   sync.WaitGroup
	closeOnce sync.Once

	log log.Logger
}

// NewEngine returns an uninitialized engine using the host default devices.
func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:       opts,
		sampleRate: dsp.DefaultSampleRate,
		errs:       make(chan error, errorQueueSize),
		log:        log.With("engine"),
	}
}

// Initialize opens the selected devices with the requested format. On a
// format the devices reject it returns a *ConfigError and leaves the engine
// as it was. A running engine is stopped first and left Initialized.
func (e *Engine) Initialize(sampleRate float64, bufferSize int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.initializeLocked(sampleRate, bufferSize)
}

func (e *Engine) initializeLocked(sampleRate float64, bufferSize int) error {
	params, err := e.streamParameters(sampleRate, bufferSize)
	if err != nil {
		return err
	}
	name := formattedName(params.Output.Device)

	if err := paLibIsFormatSupported(params, e.processStream); err != nil {
		return &ConfigError{Op: "initialize", Device: name, Err: err}
	}

	e.closeStreamLocked()

	s, err := paLibOpenStream(params, e.processStream)
	if err != nil {
		e.state = StateUninitialized
		return &ConfigError{Op: "initialize", Device: name, Err: err}
	}

	e.stream = s
	e.openInput = params.Input.Device
	e.openOutput = params.Output.Device
	e.inChannels = params.Input.Channels
	e.outChannels = params.Output.Channels
	e.sampleRate = sampleRate
	e.bufferSize = bufferSize
	if info := s.Info(); info != nil && info.SampleRate > 0 {
		e.sampleRate = info.SampleRate
	}
	e.state = StateInitialized

	e.log.Infof("initialized %s at %g Hz, %d frames (%d in, %d out)",
		name, e.sampleRate, e.bufferSize, e.inChannels, e.outChannels)
	return nil
}

// streamParameters resolves devices and channel counts. Without explicit
// counts one input and up to two output channels are enabled.
func (e *Engine) streamParameters(sampleRate float64, bufferSize int) (portaudio.StreamParameters, error) {
	var params portaudio.StreamParameters

	out := e.outputDevice
	if out == nil {
		dev, err := paLibDefaultOutputDeviceFunc()
		if err != nil {
			return params, &ConfigError{Op: "initialize", Err: err}
		}
		out = dev
	}
	outChannels := channelCount(e.opts.OutputChannels, defaultOutputChannels, out.MaxOutputChannels)
	if outChannels == 0 {
		return params, &ConfigError{Op: "initialize", Device: formattedName(out), Err: ErrNoOutputChannels}
	}

	in := e.inputDevice
	if in == nil {
		// A missing default input leaves an output-only stream.
		if dev, err := paLibDefaultInputDeviceFunc(); err == nil {
			in = dev
		}
	}
	inChannels := 0
	if in != nil {
		inChannels = channelCount(e.opts.InputChannels, defaultInputChannels, in.MaxInputChannels)
	}
	if inChannels == 0 {
		in = nil
	}

	params.Output = portaudio.StreamDeviceParameters{
		Device:   out,
		Channels: outChannels,
		Latency:  out.DefaultHighOutputLatency,
	}
	if e.opts.LowLatency {
		params.Output.Latency = out.DefaultLowOutputLatency
	}
	if in != nil {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   in,
			Channels: inChannels,
			Latency:  in.DefaultHighInputLatency,
		}
		if e.opts.LowLatency {
			params.Input.Latency = in.DefaultLowInputLatency
		}
	}
	params.SampleRate = sampleRate
	params.FramesPerBuffer = bufferSize

	return params, nil
}

func channelCount(requested, fallback, available int) int {
	if requested <= 0 {
		requested = fallback
	}
	return min(requested, available)
}

// Start begins streaming. Starting a running engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &StartError{Err: ErrClosed}
	}
	return e.startLocked()
}

func (e *Engine) startLocked() error {
	switch e.state {
	case StateRunning:
		return nil
	case StateUninitialized:
		return &StartError{Err: ErrNotInitialized}
	}

	e.deviceAboutToStart()
	if err := e.stream.Start(); err != nil {
		return &StartError{Device: formattedName(e.openOutput), Err: err}
	}
	e.startWatchdog()
	e.state = StateRunning
	e.log.Infof("started")
	return nil
}

// Stop halts streaming. Stopping an engine that is not running is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.state != StateRunning {
		return
	}
	if err := e.stream.Stop(); err != nil {
		e.log.Warnf("stop: %v", err)
	}
	e.stopWatchdog()
	e.deviceStopped()
	e.state = StateStopped
	e.log.Infof("stopped")
}

// Close stops and releases the stream. The error channel is closed and the
// engine cannot be initialized again.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	err := e.closeStreamLocked()
	e.closed = true
	e.closeOnce.Do(func() { close(e.errs) })
	return err
}

func (e *Engine) closeStreamLocked() error {
	if e.stream == nil {
		return nil
	}
	e.stopLocked()
	err := e.stream.Close()
	if err != nil {
		e.log.Warnf("close: %v", err)
	}
	e.stream = nil
	e.openInput, e.openOutput = nil, nil
	e.inChannels, e.outChannels = 0, 0
	e.state = StateUninitialized
	return err
}

// SetProcessor installs p, replacing any previous unit, and prepares it
// for the current sample rate before it becomes visible to the callback.
// A nil p restores passthrough.
func (e *Engine) SetProcessor(p dsp.Processor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p == nil {
		e.slot.Store(nil)
		return
	}
	if cur := e.slot.Load(); cur != nil && e.state == StateRunning && sameProcessor(cur.processor, p) {
		// Already live on the audio thread.
		return
	}
	p.Prepare(e.sampleRate)
	e.slot.Store(&processorSlot{processor: p})
}

func sameProcessor(a, b dsp.Processor) bool {
	t := reflect.TypeOf(a)
	return t == reflect.TypeOf(b) && t.Comparable() && a == b
}

// Processor returns the installed unit, or nil.
func (e *Engine) Processor() dsp.Processor {
	if slot := e.slot.Load(); slot != nil {
		return slot.processor
	}
	return nil
}

func (e *Engine) SampleRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

func (e *Engine) BufferSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufferSize
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// InputLevel is the peak magnitude of the first input channel over the
// most recent buffer, in [0, 1].
func (e *Engine) InputLevel() float32 { return e.inputLevel.load() }

// OutputLevel is the peak magnitude of the first output channel over the
// most recent buffer, in [0, 1].
func (e *Engine) OutputLevel() float32 { return e.outputLevel.load() }

// Errors delivers runtime device conditions. Conditions are dropped when
// the channel is full. It is closed by Close.
func (e *Engine) Errors() <-chan error { return e.errs }

// DeviceInfo describes the open stream.
func (e *Engine) DeviceInfo() DeviceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil || e.openOutput == nil {
		return DeviceInfo{}
	}
	return DeviceInfo{
		Name:           e.openOutput.Name,
		Type:           hostAPIName(e.openOutput),
		SampleRate:     e.sampleRate,
		BufferSize:     e.bufferSize,
		InputChannels:  e.inChannels,
		OutputChannels: e.outChannels,
	}
}

// InputDeviceNames lists the formatted names of devices with inputs.
func (e *Engine) InputDeviceNames() ([]string, error) { return deviceNames(true) }

// OutputDeviceNames lists the formatted names of devices with outputs.
func (e *Engine) OutputDeviceNames() ([]string, error) { return deviceNames(false) }

// SetInputDevice selects the input device by formatted or bare name. An
// initialized engine reopens its stream with the current format and
// resumes if it was running.
func (e *Engine) SetInputDevice(name string) error {
	return e.setDevice(name, true)
}

// SetOutputDevice selects the output device by formatted or bare name. An
// initialized engine reopens its stream with the current format and
// resumes if it was running.
func (e *Engine) SetOutputDevice(name string) error {
	return e.setDevice(name, false)
}

func (e *Engine) setDevice(name string, input bool) error {
	op := "select output device"
	if input {
		op = "select input device"
	}

	dev, err := findDevice(name, input)
	if err != nil {
		return &ConfigError{Op: op, Device: name, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	prev := e.outputDevice
	if input {
		prev = e.inputDevice
		e.inputDevice = dev
	} else {
		e.outputDevice = dev
	}
	e.log.Infof("%s: %s", op, formattedName(dev))

	if e.stream == nil {
		return nil
	}

	wasRunning := e.state == StateRunning
	if err := e.initializeLocked(e.sampleRate, e.bufferSize); err != nil {
		if e.stream != nil {
			// Rejected before the old stream was touched; keep it selected.
			if input {
				e.inputDevice = prev
			} else {
				e.outputDevice = prev
			}
		}
		return err
	}
	if wasRunning {
		return e.startLocked()
	}
	return nil
}

// CurrentInputDeviceName is the formatted name of the open input device,
// or of the selected one when no stream is open.
func (e *Engine) CurrentInputDeviceName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openInput != nil {
		return formattedName(e.openInput)
	}
	return formattedName(e.inputDevice)
}

// CurrentOutputDeviceName is the formatted name of the open output device,
// or of the selected one when no stream is open.
func (e *Engine) CurrentOutputDeviceName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openOutput != nil {
		return formattedName(e.openOutput)
	}
	return formattedName(e.outputDevice)
}

// deviceAboutToStart runs before the stream starts, while the callback is
// guaranteed not to be running.
func (e *Engine) deviceAboutToStart() {
	if info := e.stream.Info(); info != nil && info.SampleRate > 0 {
		e.sampleRate = info.SampleRate
	}
	if slot := e.slot.Load(); slot != nil {
		slot.processor.Prepare(e.sampleRate)
	}
	e.status.Store(0)
}

// deviceStopped runs after the stream stopped.
func (e *Engine) deviceStopped() {
	if slot := e.slot.Load(); slot != nil {
		slot.processor.Reset()
	}
	e.inputLevel.store(0)
	e.outputLevel.store(0)
}

// deviceError surfaces conditions raised by the callback since the last
// harvest. It runs on the watchdog goroutine and after the stream stops.
func (e *Engine) deviceError() {
	bits := Status(e.status.Swap(0))
	if bits == 0 {
		return
	}

	err := &DeviceError{Status: bits, Time: time.Now()}
	if bits&StatusProcessorFault != 0 {
		e.log.Errorf("%v", err)
	} else {
		e.log.Warnf("%v", err)
	}

	select {
	case e.errs <- err:
	default:
		e.log.Debugf("error queue full, dropped: %v", err)
	}
}

func (e *Engine) startWatchdog() {
	done := make(chan struct{})
	e.watchdog = done

	e.watchWG.Add(1)
	go func() {
		defer e.watchWG.Done()
		ticker := time.NewTicker(watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.deviceError()
			case <-done:
				return
			}
		}
	}()
}

func (e *Engine) stopWatchdog() {
	if e.watchdog == nil {
		return
	}
	close(e.watchdog)
	e.watchWG.Wait()
	e.watchdog = nil
	e.deviceError()
}
