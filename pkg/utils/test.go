package utils

import (
	"math"
	"sync"
)

// MockSink implements the transport Sink interface for testing.
type MockSink struct {
	mu       sync.Mutex
	Frames   int
	LastData []float64
	Err      error // returned from Send when set
	Closed   bool
}

// Send stores a copy of the data for later inspection instead of transmitting.
func (m *MockSink) Send(data []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Frames++
	m.LastData = make([]float64, len(data))
	copy(m.LastData, data)
	return m.Err
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Snapshot returns the frame count and a copy of the last frame.
func (m *MockSink) Snapshot() (int, []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := make([]float64, len(m.LastData))
	copy(last, m.LastData)
	return m.Frames, last
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics,
// normalized to [-0.9, 0.9].
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency Hz with amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// Interleave builds a multi-channel buffer where channel c of every frame
// holds channels[c][frame]. Shorter channels are zero-padded.
func Interleave(channels ...[]float32) []float32 {
	frames := 0
	for _, ch := range channels {
		frames = max(frames, len(ch))
	}
	out := make([]float32, frames*len(channels))
	for f := range frames {
		for c, ch := range channels {
			if f < len(ch) {
				out[f*len(channels)+c] = ch[f]
			}
		}
	}
	return out
}

func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
