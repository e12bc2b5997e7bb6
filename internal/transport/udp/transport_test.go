// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"finirig/internal/transport"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPTransportSendsLevelPacket(t *testing.T) {
	conn := listen(t)

	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	tr, err := NewUDPTransport(sender)
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	defer tr.Close()

	now := time.Unix(1700000000, 123456789)
	frame := transport.LevelFrame{
		Type:       transport.TypeLevels,
		Seq:        42,
		Time:       now,
		Input:      0.5,
		Output:     0.25,
		InputHold:  0.75,
		OutputHold: 0.3,
	}
	if err := tr.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 4+8+2+levelCount*4 {
		t.Errorf("packet length = %d", n)
	}

	got, err := DecodeLevelPacket(buf[:n])
	if err != nil {
		t.Fatalf("DecodeLevelPacket: %v", err)
	}
	want := LevelPacket{
		Seq:        42,
		Timestamp:  now.UnixNano(),
		Input:      0.5,
		Output:     0.25,
		InputHold:  0.75,
		OutputHold: 0.3,
	}
	if got != want {
		t.Errorf("packet = %+v, want %+v", got, want)
	}
	if stats := sender.Stats(); stats.Sent != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 sent", stats)
	}
}

func TestUDPTransportIgnoresOtherPayloads(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	tr, _ := NewUDPTransport(sender)
	defer tr.Close()

	if err := tr.Send(transport.DeviceEvent{Type: transport.TypeDeviceError, Message: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadFromUDP(make([]byte, 64)); err == nil {
		t.Error("no packet expected for a device event")
	}
}

func TestUDPTransportClosed(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	tr, _ := NewUDPTransport(sender)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := tr.Send(transport.LevelFrame{}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
}

func TestNewUDPTransportNilSender(t *testing.T) {
	if _, err := NewUDPTransport(nil); err == nil {
		t.Error("expected error for nil sender")
	}
}

func TestNewUDPSenderBadAddress(t *testing.T) {
	if _, err := NewUDPSender("not an address"); err == nil {
		t.Error("expected resolve error")
	}
}

func TestDecodeLevelPacketErrors(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, 10)},
		{"count too small", append(make([]byte, 13), 2)},
		{"truncated payload", append(append(make([]byte, 13), levelCount), make([]byte, 8)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeLevelPacket(tt.b); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func BenchmarkUDPTransportEncode(b *testing.B) {
	tr := &UDPTransport{packetBuffer: new(bytes.Buffer)}
	frame := transport.LevelFrame{Seq: 1, Time: time.Now(), Input: 0.5, Output: 0.4}

	b.ReportAllocs()
	for b.Loop() {
		if err := tr.encode(frame); err != nil {
			b.Fatal(err)
		}
	}
}
