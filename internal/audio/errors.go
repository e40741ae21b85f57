// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	ErrZeroChannels        = errors.New("audio: channel count must be positive")
	ErrInvalidSampleRate   = errors.New("audio: sample rate must be positive")
	ErrUnknownEncoding     = errors.New("audio: unknown sample encoding")
	ErrUnsupportedEncoding = errors.New("audio: encoding not supported by source")
	ErrTooManyChannels     = errors.New("audio: device does not support the requested channel count")
	ErrNoInputDevice       = errors.New("audio: device does not support input")
	ErrInputOverflow       = errors.New("audio: input overflow, samples dropped")
	ErrInputUnderflow      = errors.New("audio: input underflow")
	ErrUnsupportedFile     = errors.New("audio: unsupported file format")
	ErrAlreadyRecording    = errors.New("audio: already recording")
	ErrEngineStarted       = errors.New("audio: engine already started")
	ErrBitDepth            = errors.New("audio: recording bit depth must be 16, 24 or 32")
	ErrRecorderClosed      = errors.New("audio: recorder closed")
	ErrEmptyFile           = errors.New("audio: file contains no samples")
)
