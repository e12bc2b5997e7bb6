// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"finirig/internal/log"
)

var ErrSenderClosed = errors.New("udp: sender is closed")

var logger = log.With("udp")

// writeTimeout bounds a single datagram write so a wedged socket cannot stall
// the telemetry goroutine.
const writeTimeout = 100 * time.Millisecond

// SenderStats counts datagrams since the sender was created.
type SenderStats struct {
	Sent   uint64
	Failed uint64
}

// UDPSender writes telemetry datagrams to one target. Delivery is best
// effort; failures are counted and returned but never retried.
type UDPSender struct {
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	mu         sync.Mutex // Protects conn during Close
	closed     bool

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewUDPSender dials targetAddress ("host:port", e.g. "127.0.0.1:9090").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve target %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial target %q: %w", targetAddress, err)
	}

	logger.Infof("sending telemetry to %s", conn.RemoteAddr())

	return &UDPSender{
		conn:       conn,
		targetAddr: udpAddr,
	}, nil
}

// Send writes data as one datagram. It is safe for concurrent use.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("udp: set deadline: %w", err)
	}
	if _, err := s.conn.Write(data); err != nil {
		// The first failure is worth a warning; a missing listener repeats it
		// at the frame rate.
		if s.failed.Add(1) == 1 {
			logger.Warnf("send to %s failed: %v", s.targetAddr, err)
		}
		return fmt.Errorf("udp: send: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr { return s.targetAddr }

// Stats returns the datagram counters.
func (s *UDPSender) Stats() SenderStats {
	return SenderStats{Sent: s.sent.Load(), Failed: s.failed.Load()}
}

// Close closes the connection. Further sends return ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	stats := s.Stats()
	logger.Debugf("closing %s after %d datagrams (%d failed)", s.targetAddr, stats.Sent, stats.Failed)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}
