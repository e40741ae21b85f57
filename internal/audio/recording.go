package audio

import (
	"fmt"
	"math"
	"os"
	"sync"

	"spectrum/internal/samples"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes the mono (channel 0) capture stream to a PCM WAV file.
// Write is called from the capture goroutine; Close may race with it and
// is serialized by mu.
type Recorder struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	mono    []float32
	buf     *goaudio.IntBuffer
	peak    float64 // full scale for the bit depth
	frames  int
	closed  bool
}

// NewRecorder creates path and writes a mono WAV header for sampleRate and
// bitDepth (16, 24 or 32).
func NewRecorder(path string, sampleRate, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w, got %d", ErrBitDepth, bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSampleRate, sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
		peak: float64(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Frames returns the number of mono samples written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Write appends channel 0 of an interleaved batch of canonical samples.
func (r *Recorder) Write(batch []float32, channels int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}

	mono, err := samples.Deinterleave(r.mono[:0], batch, channels)
	if err != nil {
		return err
	}
	r.mono = mono

	if cap(r.buf.Data) < len(mono) {
		r.buf.Data = make([]int, len(mono))
	}
	r.buf.Data = r.buf.Data[:len(mono)]
	for i, v := range mono {
		x := math.Max(-1, math.Min(1, float64(v)))
		r.buf.Data[i] = int(math.Round(x * r.peak))
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.frames += len(mono)
	return nil
}

// Close finalizes the WAV header and closes the file. Later calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}
