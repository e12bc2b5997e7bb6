// SPDX-License-Identifier: MIT
package monitor

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultPeakHoldDuration is how long a peak is held before it may fall.
	DefaultPeakHoldDuration = time.Second

	// MinDB is the display floor in dBFS; silence reads as MinDB.
	MinDB = -60.0
)

// ToDB converts a linear peak to dBFS, floored at MinDB.
func ToDB(level float32) float64 {
	if !(level > 0) {
		return MinDB
	}
	return max(20*math.Log10(float64(level)), MinDB)
}

// PeakHolder tracks peak-hold state for the input and output meters.
// It is safe for concurrent use.
type PeakHolder struct {
	mu           sync.Mutex
	heldIn       float32
	heldOut      float32
	holdTimeIn   time.Time
	holdTimeOut  time.Time
	holdDuration time.Duration
}

// NewPeakHolder creates a peak holder with the given hold duration. A
// non-positive duration selects DefaultPeakHoldDuration.
func NewPeakHolder(hold time.Duration) *PeakHolder {
	if hold <= 0 {
		hold = DefaultPeakHoldDuration
	}
	return &PeakHolder{holdDuration: hold}
}

// Update feeds new instantaneous peaks and returns the held peaks. A held
// value is replaced when exceeded or once it is older than the hold time.
func (p *PeakHolder) Update(in, out float32, now time.Time) (heldIn, heldOut float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in >= p.heldIn || now.Sub(p.holdTimeIn) > p.holdDuration {
		p.heldIn = in
		p.holdTimeIn = now
	}
	if out >= p.heldOut || now.Sub(p.holdTimeOut) > p.holdDuration {
		p.heldOut = out
		p.holdTimeOut = now
	}
	return p.heldIn, p.heldOut
}

// SetHoldDuration updates the peak hold duration.
func (p *PeakHolder) SetHoldDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdDuration = d
}

// Reset clears held peaks.
func (p *PeakHolder) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heldIn, p.heldOut = 0, 0
	p.holdTimeIn, p.holdTimeOut = time.Time{}, time.Time{}
}
