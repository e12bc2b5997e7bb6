// SPDX-License-Identifier: MIT
package monitor

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"finirig/internal/transport"
	"finirig/pkg/utils"
)

type fakeLevels struct {
	in, out atomic.Uint32
}

func (f *fakeLevels) set(in, out float32) {
	f.in.Store(math.Float32bits(in))
	f.out.Store(math.Float32bits(out))
}

func (f *fakeLevels) InputLevel() float32  { return math.Float32frombits(f.in.Load()) }
func (f *fakeLevels) OutputLevel() float32 { return math.Float32frombits(f.out.Load()) }

func TestToDB(t *testing.T) {
	tests := []struct {
		level float32
		want  float64
	}{
		{1, 0},
		{0.5, -6.0206},
		{0.1, -20},
		{0.001, -60},
		{0.0001, MinDB},
		{0, MinDB},
		{-0.5, MinDB},
		{float32(math.NaN()), MinDB},
	}
	for _, tt := range tests {
		if got := ToDB(tt.level); math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("ToDB(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher(nil, &utils.MockTransport{}, Options{}); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := NewPublisher(&fakeLevels{}, nil, Options{}); err == nil {
		t.Error("expected error for nil transport")
	}

	p, err := NewPublisher(&fakeLevels{}, &utils.MockTransport{}, Options{Interval: -1})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v, want default %v", p.interval, DefaultInterval)
	}
	if got := p.Latest(); got.InputDB != MinDB || got.OutputDB != MinDB {
		t.Errorf("initial frame = %+v, want floor levels", got)
	}
}

func TestPublisherPublish(t *testing.T) {
	src := &fakeLevels{}
	mock := &utils.MockTransport{}
	bypassed := true
	p, err := NewPublisher(src, mock, Options{
		PeakHold: time.Second,
		Bypassed: func() bool { return bypassed },
	})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	t0 := time.Unix(1000, 0)
	src.set(0.5, 0.25)
	p.publish(t0)

	src.set(0.1, 0.05)
	p.publish(t0.Add(500 * time.Millisecond))

	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d frames, want 2", len(sent))
	}
	second, ok := sent[1].(transport.LevelFrame)
	if !ok {
		t.Fatalf("payload %T, want LevelFrame", sent[1])
	}
	if second.Seq != 2 || second.Type != transport.TypeLevels {
		t.Errorf("frame header = %d/%q", second.Seq, second.Type)
	}
	if second.Input != 0.1 || second.Output != 0.05 {
		t.Errorf("instantaneous = %v/%v", second.Input, second.Output)
	}
	if second.InputHold != 0.5 || second.OutputHold != 0.25 {
		t.Errorf("held = %v/%v, want 0.5/0.25 within hold time", second.InputHold, second.OutputHold)
	}
	if math.Abs(second.InputDB-(-20)) > 1e-3 {
		t.Errorf("InputDB = %v, want -20", second.InputDB)
	}
	if !second.Bypassed {
		t.Error("bypass state not sampled")
	}
	if p.Latest() != second {
		t.Errorf("Latest = %+v, want last frame", p.Latest())
	}

	// Past the hold time the held peak falls to the current level.
	p.publish(t0.Add(1600 * time.Millisecond))
	if got := p.Latest(); got.InputHold != 0.1 || got.OutputHold != 0.05 {
		t.Errorf("held after expiry = %v/%v, want 0.1/0.05", got.InputHold, got.OutputHold)
	}
}

func TestPublisherSendErrorIsNotFatal(t *testing.T) {
	mock := &utils.MockTransport{SendErr: errors.New("network down")}
	p, _ := NewPublisher(&fakeLevels{}, mock, Options{})

	p.publish(time.Now())
	p.publish(time.Now())
	if len(mock.Sent()) != 2 {
		t.Errorf("sent %d, want 2 despite errors", len(mock.Sent()))
	}
}

func TestPublisherStartStop(t *testing.T) {
	src := &fakeLevels{}
	src.set(0.3, 0.2)
	mock := &utils.MockTransport{}
	errs := make(chan error, 1)

	p, err := NewPublisher(src, mock, Options{Interval: 5 * time.Millisecond, Errors: errs})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	p.Start()
	p.Start() // no-op
	errs <- errors.New("audio: device: output underflow")

	deadline := time.Now().Add(2 * time.Second)
	for {
		var frames, events int
		for _, s := range mock.Sent() {
			switch s.(type) {
			case transport.LevelFrame:
				frames++
			case transport.DeviceEvent:
				events++
			}
		}
		if frames >= 3 && events == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("frames=%d events=%d, want >=3 and 1", frames, events)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(errs) // a closed error channel must not spin the loop
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	n := len(mock.Sent())
	time.Sleep(20 * time.Millisecond)
	if len(mock.Sent()) != n {
		t.Error("frames published after Stop")
	}

	var event transport.DeviceEvent
	for _, s := range mock.Sent() {
		if e, ok := s.(transport.DeviceEvent); ok {
			event = e
		}
	}
	if event.Type != transport.TypeDeviceError || event.Message != "audio: device: output underflow" {
		t.Errorf("event = %+v", event)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mock.Closed() {
		t.Error("Close should close the transport")
	}
}
