// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"math"
	"net"
	"testing"
	"time"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPacketRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	bins := []float64{0, 0.5, 1024.25, math.MaxFloat32}

	b, err := AppendPacket(nil, 42, ts, bins)
	if err != nil {
		t.Fatalf("AppendPacket() error = %v", err)
	}
	if len(b) != HeaderSize+4*len(bins) {
		t.Fatalf("packet length = %d, want %d", len(b), HeaderSize+4*len(bins))
	}

	// Header layout is big endian: seq, then nanoseconds, then count.
	if b[3] != 42 || b[0] != 0 {
		t.Errorf("sequence bytes = % x", b[:4])
	}
	if b[12] != 0 || b[13] != byte(len(bins)) {
		t.Errorf("count bytes = % x", b[12:14])
	}

	p, err := ParsePacket(b)
	if err != nil {
		t.Fatalf("ParsePacket() error = %v", err)
	}
	if p.Seq != 42 || !p.Timestamp.Equal(ts) {
		t.Errorf("header = (%d, %v), want (42, %v)", p.Seq, p.Timestamp, ts)
	}
	for i, v := range bins {
		if p.Bins[i] != float32(v) {
			t.Errorf("Bins[%d] = %f, want %f", i, p.Bins[i], float32(v))
		}
	}
}

func TestPacketErrors(t *testing.T) {
	if _, err := AppendPacket(nil, 1, time.Now(), make([]float64, maxBins+1)); !errors.Is(err, ErrTooManyBins) {
		t.Errorf("AppendPacket(oversized) error = %v, want %v", err, ErrTooManyBins)
	}
	if _, err := ParsePacket(make([]byte, HeaderSize-1)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("ParsePacket(short) error = %v, want %v", err, ErrShortPacket)
	}

	b, _ := AppendPacket(nil, 1, time.Now(), []float64{1, 2})
	if _, err := ParsePacket(b[:len(b)-1]); !errors.Is(err, ErrPacketLength) {
		t.Errorf("ParsePacket(truncated) error = %v, want %v", err, ErrPacketLength)
	}
}

func TestAppendPacketNoAllocs(t *testing.T) {
	bins := make([]float64, 256)
	buf := make([]byte, 0, HeaderSize+4*len(bins))
	ts := time.Now()

	allocs := testing.AllocsPerRun(100, func() {
		buf, _ = AppendPacket(buf[:0], 7, ts, bins)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations encoding into a sized buffer, got %.1f", allocs)
	}
}

func TestSinkSendsPackets(t *testing.T) {
	listener := listenLoopback(t)

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	sink, err := NewSink(sender)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	defer sink.Close()

	fixed := time.Unix(1700000000, 0)
	sink.now = func() time.Time { return fixed }

	for _, spectrum := range [][]float64{{1, 2, 3}, {4, 5, 6}} {
		if err := sink.Send(spectrum); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	buf := make([]byte, 65535)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	for want := uint32(1); want <= 2; want++ {
		n, _, err := listener.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("ReadFromUDP() error = %v", err)
		}
		p, err := ParsePacket(buf[:n])
		if err != nil {
			t.Fatalf("ParsePacket() error = %v", err)
		}
		if p.Seq != want {
			t.Errorf("Seq = %d, want %d", p.Seq, want)
		}
		if !p.Timestamp.Equal(fixed) {
			t.Errorf("Timestamp = %v, want %v", p.Timestamp, fixed)
		}
		if len(p.Bins) != 3 || p.Bins[0] != float32(3*want-2) {
			t.Errorf("Bins = %v", p.Bins)
		}
	}
}

func TestSenderClose(t *testing.T) {
	listener := listenLoopback(t)

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if sender.RemoteAddr() == nil {
		t.Error("RemoteAddr() = nil before Close")
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send() after Close error = %v, want %v", err, ErrSenderClosed)
	}
	if sender.RemoteAddr() != nil {
		t.Error("RemoteAddr() != nil after Close")
	}
}

func TestNewSenderErrors(t *testing.T) {
	if _, err := NewSender("not-an-address"); err == nil {
		t.Error("NewSender() with a missing port should fail")
	}
	if _, err := NewSink(nil); err == nil {
		t.Error("NewSink(nil) should fail")
	}
}
