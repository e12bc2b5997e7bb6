// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync/atomic"

	"finirig/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// LoggingTransport implements the Transport interface by logging payloads.
// Level frames are logged at debug level, device events as warnings.
type LoggingTransport struct {
	log    log.Logger
	closed atomic.Bool
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: log.With("telemetry")}
	lt.log.Debugf("using logging transport")
	return lt
}

// Send logs the received payload.
func (lt *LoggingTransport) Send(data any) error {
	if lt.closed.Load() {
		return ErrClosed
	}

	switch v := data.(type) {
	case LevelFrame:
		lt.log.Debugf("levels #%d in=%.1fdB out=%.1fdB", v.Seq, v.InputDB, v.OutputDB)
	case DeviceEvent:
		lt.log.Warnf("device: %s", v.Message)
	default:
		lt.log.Debugf("payload (%T): %+v", data, data)
	}
	return nil
}

// Close marks the transport closed.
func (lt *LoggingTransport) Close() error {
	lt.closed.Store(true)
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
