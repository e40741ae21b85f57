// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	testFileRate   = 8000
	testFileFrames = 256
)

// testTone returns n samples of a 500 Hz sine scaled to 16-bit.
func testTone(n, channels int) []int {
	data := make([]int, n*channels)
	for i := range n {
		v := int(math.Round(0.5 * 32767 * math.Sin(2*math.Pi*500*float64(i)/testFileRate)))
		for c := range channels {
			data[i*channels+c] = v
			if c > 0 {
				data[i*channels+c] = -v
			}
		}
	}
	return data
}

func writeTestWAV(t *testing.T, name string, data []int, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, testFileRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: testFileRate},
		Data:   data,
	}
	if len(data) > 0 {
		if err := enc.Write(buf); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func writeTestAIFF(t *testing.T, data []int, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.aiff")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := aiff.NewEncoder(f, testFileRate, 16, channels)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: testFileRate},
		Data:   data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func runToEnd(t *testing.T, src *FileSource) *recordingHandler {
	t.Helper()
	h := &recordingHandler{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := src.Run(ctx, h); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run() did not stop at end of file")
	}
	return h
}

func TestFileSourceWAV(t *testing.T) {
	data := testTone(800, 2)
	path := writeTestWAV(t, "tone.wav", data, 2)

	src, err := NewFileSource(path, testFileFrames, false)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	defer src.Close()

	want := Format{Channels: 2, SampleRate: testFileRate, Encoding: F32}
	if src.Format() != want {
		t.Errorf("Format() = %+v, want %+v", src.Format(), want)
	}

	h := runToEnd(t, src)
	got, batches := h.snapshot()

	if len(got) != len(data) {
		t.Fatalf("delivered %d samples, want %d", len(got), len(data))
	}
	if batches < len(data)/(testFileFrames*2) {
		t.Errorf("delivered %d batches, want at least %d", batches, len(data)/(testFileFrames*2))
	}
	for i := range data {
		if w := float32(data[i]) / 32768; math.Abs(float64(got[i]-w)) > 1e-6 {
			t.Fatalf("sample %d = %f, want %f", i, got[i], w)
		}
	}
}

func TestFileSourceAIFF(t *testing.T) {
	data := testTone(400, 1)
	path := writeTestAIFF(t, data, 1)

	src, err := NewFileSource(path, testFileFrames, false)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	defer src.Close()

	if src.Format().Channels != 1 || src.Format().SampleRate != testFileRate {
		t.Errorf("Format() = %+v", src.Format())
	}

	got, _ := runToEnd(t, src).snapshot()
	if len(got) != len(data) {
		t.Fatalf("delivered %d samples, want %d", len(got), len(data))
	}
}

func TestFileSourceLoop(t *testing.T) {
	data := testTone(300, 1)
	path := writeTestWAV(t, "loop.wav", data, 1)

	src, err := NewFileSource(path, testFileFrames, true)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	defer src.Close()

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, h) }()

	deadline := time.After(5 * time.Second)
	for {
		if got, _ := h.snapshot(); len(got) > 2*len(data) {
			break
		}
		select {
		case err := <-done:
			t.Fatalf("looping Run() returned early: %v", err)
		case <-deadline:
			t.Fatal("file did not loop")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}

	got, _ := h.snapshot()
	for i := range data {
		if got[len(data)+i] != got[i] {
			t.Fatalf("second pass differs at %d: %f != %f", i, got[len(data)+i], got[i])
		}
	}
}

func TestFileSourceErrors(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(txt, testFileFrames, false); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("NewFileSource(.txt) error = %v, want %v", err, ErrUnsupportedFile)
	}

	fake := filepath.Join(dir, "fake.wav")
	if err := os.WriteFile(fake, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(fake, testFileFrames, false); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("NewFileSource(bad wav) error = %v, want %v", err, ErrUnsupportedFile)
	}

	if _, err := NewFileSource(filepath.Join(dir, "missing.wav"), testFileFrames, false); err == nil {
		t.Error("NewFileSource(missing) should fail")
	}

	path := writeTestWAV(t, "ok.wav", testTone(10, 1), 1)
	if _, err := NewFileSource(path, 0, false); err == nil {
		t.Error("NewFileSource(framesPerBuffer 0) should fail")
	}
}

func TestFileSourceEmpty(t *testing.T) {
	path := writeTestWAV(t, "empty.wav", nil, 1)

	src, err := NewFileSource(path, testFileFrames, true)
	if err != nil {
		t.Skipf("decoder rejects header-only WAV: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Run(ctx, &recordingHandler{}); err == nil {
		t.Error("looping an empty file should fail instead of spinning")
	}
}

func TestFileSourceClose(t *testing.T) {
	path := writeTestWAV(t, "close.wav", testTone(800, 1), 1)

	src, err := NewFileSource(path, testFileFrames, false)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Run(ctx, &recordingHandler{}); err != nil {
		t.Errorf("Run() on closed source = %v, want nil", err)
	}
}
