// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// sampleReader yields interleaved float samples in [-1, 1]. It returns
// io.EOF once the input is exhausted.
type sampleReader interface {
	Read(dst []float32) (int, error)
}

// FileSource replays a WAV, AIFF, MP3 or Ogg Vorbis file at real-time pace,
// one FramesPerBuffer chunk per tick, so the render loop sees the same
// cadence as a live device.
type FileSource struct {
	path            string
	framesPerBuffer int
	loop            bool
	format          Format

	mu     sync.Mutex
	file   *os.File
	reader sampleReader
}

// NewFileSource opens path and reads its header. The decoder is chosen by
// file extension.
func NewFileSource(path string, framesPerBuffer int, loop bool) (*FileSource, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	f, r, format, err := openSampleFile(path)
	if err != nil {
		return nil, err
	}
	if err := format.Validate(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &FileSource{
		path:            path,
		framesPerBuffer: framesPerBuffer,
		loop:            loop,
		format:          format,
		file:            f,
		reader:          r,
	}, nil
}

func (s *FileSource) Format() Format { return s.format }

// Run paces the file into h until EOF (or forever when looping) or until ctx
// is cancelled. Reaching the end of a non-looping file returns nil.
func (s *FileSource) Run(ctx context.Context, h Handler) error {
	period := time.Duration(float64(s.framesPerBuffer) / s.format.SampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]float32, s.framesPerBuffer*s.format.Channels)
	delivered := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s.mu.Lock()
		r := s.reader
		s.mu.Unlock()
		if r == nil {
			return nil // closed
		}

		n, err := r.Read(buf)
		if n > 0 {
			delivered += n
			h.HandleBatch(Batch{Encoding: F32, Channels: s.format.Channels, F32: buf[:n]})
		}

		switch {
		case err == nil && n > 0:
			continue
		case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			if delivered == 0 {
				return fmt.Errorf("%w: %s", ErrEmptyFile, s.path)
			}
			if !s.loop {
				return nil
			}
			if err := s.rewind(); err != nil {
				return err
			}
			delivered = 0
		default:
			return fmt.Errorf("decoding %s: %w", s.path, err)
		}
	}
}

func (s *FileSource) rewind() error {
	f, r, _, err := openSampleFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
	}
	s.file, s.reader = f, r
	return nil
}

// Close releases the file. Safe to call more than once.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.reader = nil, nil
	return err
}

func openSampleFile(path string) (*os.File, sampleReader, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, Format{}, fmt.Errorf("failed to open input file: %w", err)
	}

	var (
		r      sampleReader
		format Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		r, format, err = newWAVReader(f)
	case ".aif", ".aiff":
		r, format, err = newAIFFReader(f)
	case ".mp3":
		r, format, err = newMP3Reader(f)
	case ".ogg", ".oga":
		r, format, err = newOggReader(f)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
	if err != nil {
		f.Close()
		return nil, nil, Format{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, r, format, nil
}

// pcmDecoder is the subset of the go-audio WAV and AIFF decoders used here.
type pcmDecoder interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// intReader converts go-audio integer PCM to floats using the file's bit depth.
type intReader struct {
	dec   pcmDecoder
	buf   *goaudio.IntBuffer
	scale float32
}

func newIntReader(dec pcmDecoder, format *goaudio.Format, bitDepth int) (*intReader, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFile, bitDepth)
	}
	return &intReader{
		dec:   dec,
		buf:   &goaudio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
		scale: float32(int64(1) << (bitDepth - 1)),
	}, nil
}

func (r *intReader) Read(dst []float32) (int, error) {
	if cap(r.buf.Data) < len(dst) {
		r.buf.Data = make([]int, len(dst))
	}
	r.buf.Data = r.buf.Data[:len(dst)]

	n, err := r.dec.PCMBuffer(r.buf)
	for i := range n {
		dst[i] = float32(r.buf.Data[i]) / r.scale
	}
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func newWAVReader(f *os.File) (sampleReader, Format, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFile)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, Format{}, err
	}
	if dec.WavAudioFormat != 1 {
		return nil, Format{}, fmt.Errorf("%w: WAV format tag %d, only PCM is supported", ErrUnsupportedFile, dec.WavAudioFormat)
	}

	r, err := newIntReader(dec, dec.Format(), int(dec.BitDepth))
	if err != nil {
		return nil, Format{}, err
	}
	return r, Format{
		Channels:   int(dec.NumChans),
		SampleRate: float64(dec.SampleRate),
		Encoding:   F32,
	}, nil
}

func newAIFFReader(f *os.File) (sampleReader, Format, error) {
	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("%w: not a valid AIFF file", ErrUnsupportedFile)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil {
		return nil, Format{}, fmt.Errorf("%w: AIFF file has no COMM chunk", ErrUnsupportedFile)
	}
	r, err := newIntReader(dec, format, int(dec.BitDepth))
	if err != nil {
		return nil, Format{}, err
	}
	return r, Format{
		Channels:   format.NumChannels,
		SampleRate: float64(format.SampleRate),
		Encoding:   F32,
	}, nil
}

// mp3Stream is the part of *gomp3.Decoder the reader needs.
type mp3Stream interface {
	io.Reader
	SampleRate() int
}

// mp3Reader decodes go-mp3's output, which is always interleaved stereo
// 16-bit little-endian PCM.
type mp3Reader struct {
	dec mp3Stream
	buf []byte
}

func newMP3Reader(f *os.File) (sampleReader, Format, error) {
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, Format{}, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	return &mp3Reader{dec: dec}, Format{
		Channels:   2,
		SampleRate: float64(dec.SampleRate()),
		Encoding:   F32,
	}, nil
}

func (r *mp3Reader) Read(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	r.buf = r.buf[:need]

	n, err := io.ReadFull(r.dec, r.buf)
	samples := n / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(r.buf[2*i:]))) / 32768
	}
	if samples == 0 && err == nil {
		return 0, io.EOF
	}
	return samples, err
}

// oggStream is the part of *oggvorbis.Reader the reader needs.
type oggStream interface {
	Read(p []float32) (int, error)
}

// oggReader wraps oggvorbis, which already yields interleaved floats.
type oggReader struct {
	dec      oggStream
	channels int
}

func newOggReader(f *os.File) (sampleReader, Format, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, Format{}, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}
	return &oggReader{dec: dec, channels: dec.Channels()}, Format{
		Channels:   dec.Channels(),
		SampleRate: float64(dec.SampleRate()),
		Encoding:   F32,
	}, nil
}

func (r *oggReader) Read(dst []float32) (int, error) {
	// Keep reads frame aligned.
	dst = dst[:len(dst)-len(dst)%r.channels]
	if len(dst) == 0 {
		return 0, io.ErrShortBuffer
	}
	return r.dec.Read(dst)
}
