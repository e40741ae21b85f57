package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{
		Name:                    "Built-in Microphone",
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 20 * time.Millisecond,
	},
	{
		Name:              "Built-in Output",
		MaxOutputChannels: 2,
		DefaultSampleRate: 44100,
	},
	{
		Name:              "USB Interface",
		MaxInputChannels:  8,
		MaxOutputChannels: 8,
		DefaultSampleRate: 96000,
	},
}

// withFakeHost swaps the PortAudio entry points for the duration of a test.
func withFakeHost(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()

	origDevices := paDevicesFunc
	origDefault := paDefaultInputDevice
	t.Cleanup(func() {
		paDevicesFunc = origDevices
		paDefaultInputDevice = origDefault
	})

	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return devices, err
	}
	paDefaultInputDevice = func() (*portaudio.DeviceInfo, error) {
		if err != nil {
			return nil, err
		}
		return devices[0], nil
	}
}

func TestHostDevices(t *testing.T) {
	withFakeHost(t, fakeDevices, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("HostDevices returned %d devices, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != fakeDevices[i].Name {
			t.Errorf("Device %d name = %q, want %q", i, d.Name, fakeDevices[i].Name)
		}
		if d.DefaultSampleRate <= 0 {
			t.Errorf("Device %d has invalid sample rate: %f", i, d.DefaultSampleRate)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	withFakeHost(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakeHost(t, fakeDevices, nil)

	if dev, err := InputDevice(-1); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("InputDevice(-1) = %v, %v; want default device", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "USB Interface" {
		t.Errorf("InputDevice(2) = %v, %v; want USB Interface", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeDevices) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakeHost(t, nil, fmt.Errorf("mock default input error"))

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paInitialize
	defer func() { paInitialize = orig }()

	paInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paTerminate
	defer func() { paTerminate = orig }()

	paTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	withFakeHost(t, fakeDevices, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Built-in Output (Output)",
		"[2] USB Interface (Input/Output)",
		"Default sample rate: 96000 Hz",
		"Latency: Low=5.00ms, High=20.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("ListDevices output missing %q:\n%s", want, out)
		}
	}
}

func TestNewStreamSourceValidation(t *testing.T) {
	withFakeHost(t, fakeDevices, nil)

	tests := []struct {
		name string
		cfg  StreamConfig
		want error
	}{
		{"ZeroChannels", StreamConfig{DeviceID: 0, Channels: 0, Encoding: F32}, ErrZeroChannels},
		{"Unsigned16", StreamConfig{DeviceID: 0, Channels: 1, Encoding: U16}, ErrUnsupportedEncoding},
		{"UnknownEncoding", StreamConfig{DeviceID: 0, Channels: 1}, ErrUnknownEncoding},
		{"TooManyChannels", StreamConfig{DeviceID: 0, Channels: 4, Encoding: F32}, ErrTooManyChannels},
		{"OutputOnly", StreamConfig{DeviceID: 1, Channels: 1, Encoding: F32}, ErrNoInputDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStreamSource(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("NewStreamSource() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewStreamSourceFormat(t *testing.T) {
	withFakeHost(t, fakeDevices, nil)

	s, err := NewStreamSource(StreamConfig{DeviceID: -1, Channels: 2, Encoding: I16, FramesPerBuffer: 512, LowLatency: true})
	if err != nil {
		t.Fatalf("NewStreamSource() error = %v", err)
	}

	want := Format{Channels: 2, SampleRate: 48000, Encoding: I16}
	if s.Format() != want {
		t.Errorf("Format() = %+v, want %+v (device default rate)", s.Format(), want)
	}
	if s.latency != 5*time.Millisecond {
		t.Errorf("latency = %v, want low input latency", s.latency)
	}
	if s.DeviceName() != "Built-in Microphone" {
		t.Errorf("DeviceName() = %q", s.DeviceName())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() before Run = %v, want nil", err)
	}
}

func TestReportFlags(t *testing.T) {
	h := &recordingHandler{}

	reportFlags(h, portaudio.InputOverflow|portaudio.InputUnderflow)
	reportFlags(h, 0)

	if len(h.errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(h.errs))
	}
	if !errors.Is(h.errs[0], ErrInputOverflow) || !errors.Is(h.errs[1], ErrInputUnderflow) {
		t.Errorf("errors = %v", h.errs)
	}
}
