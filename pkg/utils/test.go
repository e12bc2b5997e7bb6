// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and fakes shared by the test suites.
package utils

import (
	"math"
	"sync"
)

// MockTransport implements the telemetry Transport interface for testing.
// It records every payload it is handed and is safe for concurrent use.
type MockTransport struct {
	mu      sync.Mutex
	sent    []any
	closed  bool
	SendErr error // returned from every Send when set
}

// Send stores data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return m.SendErr
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything passed to Send so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a plucked-string-like tone: an open low E
// (82.41 Hz) with its second and third harmonics, peaking near 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*82.41*tm)*0.5 +
			math.Sin(2*math.Pi*164.82*tm)*0.3 +
			math.Sin(2*math.Pi*247.23*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency float64, amplitude float32) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * float32(math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// PeakAbs returns the largest absolute sample value, or 0 for an empty slice.
func PeakAbs(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
