// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strings"
)

// Encoding identifies the sample type a capture callback delivers.
type Encoding uint8

const (
	U16 Encoding = iota + 1 // unsigned 16-bit, midpoint 32768
	I16                     // signed 16-bit
	F32                     // 32-bit float in [-1, 1]
)

func (e Encoding) String() string {
	switch e {
	case U16:
		return "u16"
	case I16:
		return "i16"
	case F32:
		return "f32"
	default:
		return "unknown"
	}
}

// ParseEncoding converts a config value ("u16", "i16", "f32") to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u16":
		return U16, nil
	case "i16":
		return I16, nil
	case "f32":
		return F32, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Format describes a capture stream. SampleRate is the stream's nominal rate
// as reported by the device or file header.
type Format struct {
	Channels   int
	SampleRate float64
	Encoding   Encoding
}

// Validate rejects formats the store cannot be sized for.
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return ErrZeroChannels
	}
	if !(f.SampleRate > 0) {
		return fmt.Errorf("%w, got %g", ErrInvalidSampleRate, f.SampleRate)
	}
	switch f.Encoding {
	case U16, I16, F32:
		return nil
	default:
		return ErrUnknownEncoding
	}
}

func (f Format) String() string {
	return fmt.Sprintf("%d ch, %.0f Hz, %s", f.Channels, f.SampleRate, f.Encoding)
}

// Batch is one interleaved callback buffer. Exactly one of the sample
// slices is populated, selected by Encoding.
type Batch struct {
	Encoding Encoding
	Channels int
	U16      []uint16
	I16      []int16
	F32      []float32
}

// Len returns the number of interleaved samples in the batch.
func (b Batch) Len() int {
	switch b.Encoding {
	case U16:
		return len(b.U16)
	case I16:
		return len(b.I16)
	case F32:
		return len(b.F32)
	default:
		return 0
	}
}

// AppendFloat32 appends the batch converted to canonical [-1, 1] floats and
// returns the extended slice. Passing a reused dst[:0] keeps the capture
// callback allocation free.
func (b Batch) AppendFloat32(dst []float32) []float32 {
	switch b.Encoding {
	case U16:
		for _, v := range b.U16 {
			dst = append(dst, float32(v)/65535*2-1)
		}
	case I16:
		for _, v := range b.I16 {
			dst = append(dst, float32(v)/32768)
		}
	case F32:
		dst = append(dst, b.F32...)
	}
	return dst
}
