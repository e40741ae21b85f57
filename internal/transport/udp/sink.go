// SPDX-License-Identifier: MIT

// Package udp streams spectra as compact binary datagrams.
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	applog "spectrum/internal/log"
	"spectrum/internal/transport"
)

/*
Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bin Count         | uint16         | 2            | Number of floats (N)    |
| Bins              | []float32      | N * 4        | Spectrum magnitudes     |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Bin Count   |          Bins           |
|      (uint32)     |        (int64)        |   (uint16)    |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed prefix before the bins.
const HeaderSize = 4 + 8 + 2

var (
	ErrTooManyBins  = errors.New("udp: spectrum does not fit in one packet")
	ErrShortPacket  = errors.New("udp: packet shorter than its header")
	ErrPacketLength = errors.New("udp: packet length does not match bin count")
)

// maxBins keeps a packet within the 65507-byte UDP payload limit.
const maxBins = (65507 - HeaderSize) / 4

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Bins      []float32
}

// AppendPacket encodes one spectrum onto dst and returns the extended slice.
func AppendPacket(dst []byte, seq uint32, ts time.Time, bins []float64) ([]byte, error) {
	if len(bins) > maxBins {
		return dst, fmt.Errorf("%w: %d bins", ErrTooManyBins, len(bins))
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(bins)))
	for _, v := range bins {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst, nil
}

// ParsePacket decodes a datagram produced by AppendPacket.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("%w: %d bytes for %d bins", ErrPacketLength, len(b), n)
	}

	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		Bins:      make([]float32, n),
	}
	for i := range p.Bins {
		off := HeaderSize + 4*i
		p.Bins[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	return p, nil
}

// Sink packs every spectrum into a Packet and sends it with a Sender.
type Sink struct {
	sender *Sender
	seq    uint32
	packet []byte // reused between frames
	now    func() time.Time
}

// NewSink creates a Sink that owns sender.
func NewSink(sender *Sender) (*Sink, error) {
	if sender == nil {
		return nil, errors.New("udp: sender cannot be nil")
	}
	applog.Infof("UDPSink: Streaming spectra to %s", sender.RemoteAddr())
	return &Sink{sender: sender, now: time.Now}, nil
}

// Send encodes and transmits one spectrum. Network errors are returned to
// the render loop, which logs them and carries on.
func (s *Sink) Send(spectrum []float64) error {
	s.seq++

	packet, err := AppendPacket(s.packet[:0], s.seq, s.now(), spectrum)
	if err != nil {
		return err
	}
	s.packet = packet

	if err := s.sender.Send(packet); err != nil {
		return err
	}
	applog.Debugf("UDPSink: Sent packet %d (%d bytes)", s.seq, len(packet))
	return nil
}

// Close closes the underlying sender.
func (s *Sink) Close() error {
	applog.Debugf("UDPSink: Close called after %d packets", s.seq)
	return s.sender.Close()
}

// Ensure Sink satisfies the transport interface at compile time.
var _ transport.Sink = (*Sink)(nil)
