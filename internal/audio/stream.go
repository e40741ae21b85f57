// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// StreamConfig selects and shapes a PortAudio input stream.
type StreamConfig struct {
	DeviceID        int     // -1 selects the host default input
	Channels        int     // interleaved channels per frame
	SampleRate      float64 // 0 uses the device default
	FramesPerBuffer int     // frames per callback
	LowLatency      bool
	Encoding        Encoding // I16 or F32
}

// StreamSource captures from a PortAudio input device. The device and
// format are resolved once in NewStreamSource; PortAudio must already be
// initialized.
type StreamSource struct {
	cfg     StreamConfig
	device  *portaudio.DeviceInfo
	latency time.Duration
	format  Format

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewStreamSource resolves the input device and validates the requested
// format against it. Any failure here is fatal for the capture session.
func NewStreamSource(cfg StreamConfig) (*StreamSource, error) {
	if cfg.Channels <= 0 {
		return nil, ErrZeroChannels
	}
	switch cfg.Encoding {
	case I16, F32:
	case U16:
		// PortAudio has no unsigned 16-bit sample format.
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, cfg.Encoding)
	default:
		return nil, ErrUnknownEncoding
	}

	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if cfg.Channels > device.MaxInputChannels {
		return nil, fmt.Errorf("%w: %s has %d input channels, requested %d",
			ErrTooManyChannels, device.Name, device.MaxInputChannels, cfg.Channels)
	}

	rate := cfg.SampleRate
	if rate == 0 {
		rate = device.DefaultSampleRate
	}

	s := &StreamSource{
		cfg:    cfg,
		device: device,
		format: Format{
			Channels:   cfg.Channels,
			SampleRate: rate,
			Encoding:   cfg.Encoding,
		},
	}
	if cfg.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}
	if err := s.format.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StreamSource) Format() Format { return s.format }

// DeviceName returns the resolved device name for status display.
func (s *StreamSource) DeviceName() string { return s.device.Name }

// Run opens and starts the stream, then blocks until ctx is cancelled.
// Batches are delivered from PortAudio's callback thread; the slices are
// only valid for the duration of HandleBatch.
func (s *StreamSource) Run(ctx context.Context, h Handler) error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.format.Channels,
			Device:   s.device,
			Latency:  s.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: s.cfg.FramesPerBuffer,
		SampleRate:      s.format.SampleRate,
	}

	channels := s.format.Channels
	var callback any
	switch s.format.Encoding {
	case I16:
		callback = func(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
			reportFlags(h, flags)
			h.HandleBatch(Batch{Encoding: I16, Channels: channels, I16: in})
		}
	default:
		callback = func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
			reportFlags(h, flags)
			h.HandleBatch(Batch{Encoding: F32, Channels: channels, F32: in})
		}
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	<-ctx.Done()
	return s.stop()
}

// Close stops the stream if it is still running. Safe to call more than once.
func (s *StreamSource) Close() error {
	return s.stop()
}

func (s *StreamSource) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return nil
}

func reportFlags(h Handler, flags portaudio.StreamCallbackFlags) {
	if flags&portaudio.InputOverflow != 0 {
		h.HandleError(ErrInputOverflow)
	}
	if flags&portaudio.InputUnderflow != 0 {
		h.HandleError(ErrInputUnderflow)
	}
}
