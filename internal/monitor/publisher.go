// SPDX-License-Identifier: MIT
/*
Package monitor turns the engine's instantaneous peak levels into telemetry.

It polls the engine from an ordinary goroutine, never from the audio thread,
applies peak hold, and forwards LevelFrames and device error events to a
transport.
*/
package monitor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"finirig/internal/log"
	"finirig/internal/transport"
)

// DefaultInterval polls at roughly 30 frames per second.
const DefaultInterval = 33 * time.Millisecond

// LevelSource provides instantaneous peak levels in [0, 1].
type LevelSource interface {
	InputLevel() float32
	OutputLevel() float32
}

// Options tunes a Publisher. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	PeakHold time.Duration

	// Errors, when set, is drained and each error is forwarded as a
	// DeviceEvent.
	Errors <-chan error

	// Bypassed, when set, is sampled into every frame.
	Bypassed func() bool
}

// Publisher periodically samples a LevelSource and sends LevelFrames.
// It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	source    LevelSource
	transport transport.Transport
	interval  time.Duration
	holder    *PeakHolder
	errs      <-chan error
	bypassed  func() bool

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop

	seq    uint32
	latest atomic.Pointer[transport.LevelFrame]
	log    log.Logger
}

// NewPublisher creates a publisher. source and t are required.
func NewPublisher(source LevelSource, t transport.Transport, opts Options) (*Publisher, error) {
	if source == nil {
		return nil, errors.New("monitor: level source cannot be nil")
	}
	if t == nil {
		return nil, errors.New("monitor: transport cannot be nil")
	}

	l := log.With("monitor")
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
		l.Warnf("invalid interval, defaulting to %s", interval)
	}

	p := &Publisher{
		source:    source,
		transport: t,
		interval:  interval,
		holder:    NewPeakHolder(opts.PeakHold),
		errs:      opts.Errors,
		bypassed:  opts.Bypassed,
		log:       l,
	}
	p.latest.Store(&transport.LevelFrame{Type: transport.TypeLevels, InputDB: MinDB, OutputDB: MinDB})
	return p, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	errs := p.errs
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Debugf("publishing every %s", p.interval)
		for {
			select {
			case now := <-ticker.C:
				p.publish(now)
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				p.publishError(err, time.Now())
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debugf("stopped after %d frames", p.seq)
	return nil
}

// Close stops the publisher and closes the transport.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.transport.Close()
}

// Latest returns the most recently published frame.
func (p *Publisher) Latest() transport.LevelFrame {
	return *p.latest.Load()
}

// publish samples the source once and sends a frame.
func (p *Publisher) publish(now time.Time) {
	in := p.source.InputLevel()
	out := p.source.OutputLevel()
	heldIn, heldOut := p.holder.Update(in, out, now)

	p.seq++
	frame := transport.LevelFrame{
		Type:       transport.TypeLevels,
		Seq:        p.seq,
		Time:       now,
		Input:      in,
		Output:     out,
		InputHold:  heldIn,
		OutputHold: heldOut,
		InputDB:    ToDB(in),
		OutputDB:   ToDB(out),
	}
	if p.bypassed != nil {
		frame.Bypassed = p.bypassed()
	}
	p.latest.Store(&frame)

	if err := p.transport.Send(frame); err != nil {
		p.log.Debugf("send frame %d: %v", frame.Seq, err)
	}
}

func (p *Publisher) publishError(err error, now time.Time) {
	event := transport.DeviceEvent{
		Type:    transport.TypeDeviceError,
		Time:    now,
		Message: err.Error(),
	}
	if serr := p.transport.Send(event); serr != nil {
		p.log.Debugf("send device event: %v", serr)
	}
}
