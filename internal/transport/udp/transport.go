// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"finirig/internal/transport"
)

// levelCount is the number of float32 values in a level packet.
const levelCount = 4

/*
UDP Level Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Level Count       | uint16         | 2            | Number of floats (N=4)  |
| Levels            | []float32      | N * 4        | in, out, in hold, out   |
|                   |                |              | hold (linear peak)      |
+-----------------------------------------------------------------------------+
*/

// LevelPacket is the decoded form of a level packet.
type LevelPacket struct {
	Seq        uint32
	Timestamp  int64
	Input      float32
	Output     float32
	InputHold  float32
	OutputHold float32
}

// UDPTransport implements transport.Transport by packing level frames into
// the binary packet above. Other payloads are ignored.
type UDPTransport struct {
	sender *UDPSender

	mu           sync.Mutex
	packetBuffer *bytes.Buffer // Reused for every packet
	levels       [levelCount]float32
}

// NewUDPTransport wraps sender. The transport owns it and closes it on Close.
func NewUDPTransport(sender *UDPSender) (*UDPTransport, error) {
	if sender == nil {
		return nil, errors.New("UDPTransport: UDP sender cannot be nil")
	}
	return &UDPTransport{
		sender:       sender,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send encodes and transmits LevelFrame payloads.
func (t *UDPTransport) Send(data any) error {
	frame, ok := data.(transport.LevelFrame)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.encode(frame); err != nil {
		return err
	}
	if err := t.sender.Send(t.packetBuffer.Bytes()); err != nil {
		return err
	}
	logger.Debugf("sent packet %d (%d bytes)", frame.Seq, t.packetBuffer.Len())
	return nil
}

func (t *UDPTransport) encode(frame transport.LevelFrame) error {
	t.levels = [levelCount]float32{frame.Input, frame.Output, frame.InputHold, frame.OutputHold}

	t.packetBuffer.Reset()
	err := binary.Write(t.packetBuffer, binary.BigEndian, frame.Seq)
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, frame.Time.UnixNano())
	}
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, uint16(levelCount))
	}
	if err == nil {
		err = binary.Write(t.packetBuffer, binary.BigEndian, t.levels[:])
	}
	if err != nil {
		return fmt.Errorf("UDPTransport: error packing level packet: %w", err)
	}
	return nil
}

// Close closes the underlying sender.
func (t *UDPTransport) Close() error {
	return t.sender.Close()
}

// DecodeLevelPacket parses a packet produced by UDPTransport.
func DecodeLevelPacket(b []byte) (LevelPacket, error) {
	const header = 4 + 8 + 2

	var p LevelPacket
	if len(b) < header {
		return p, fmt.Errorf("level packet too short: %d bytes", len(b))
	}
	p.Seq = binary.BigEndian.Uint32(b[0:4])
	p.Timestamp = int64(binary.BigEndian.Uint64(b[4:12]))
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if n < levelCount || len(b) < header+n*4 {
		return p, fmt.Errorf("level packet truncated: %d levels in %d bytes", n, len(b))
	}

	f := func(i int) float32 {
		off := header + i*4
		return math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	p.Input, p.Output, p.InputHold, p.OutputHold = f(0), f(1), f(2), f(3)
	return p, nil
}

var _ transport.Transport = (*UDPTransport)(nil)
