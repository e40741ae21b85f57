// SPDX-License-Identifier: MIT
package tui

import (
	"spectrum/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
)

// messageSender is the part of *tea.Program the sink needs.
type messageSender interface {
	Send(msg tea.Msg)
}

// Sink forwards every spectrum to a running Bubble Tea program.
type Sink struct {
	program messageSender
}

// NewSink creates a sink for program (usually from NewProgram).
func NewSink(program messageSender) *Sink {
	return &Sink{program: program}
}

// Send copies the spectrum into a message; the render loop reuses its buffer.
func (s *Sink) Send(spectrum []float64) error {
	s.program.Send(frameMsg{bins: append([]float64(nil), spectrum...)})
	return nil
}

// Close is a no-op; the program is shut down by its owner.
func (s *Sink) Close() error { return nil }

var _ transport.Sink = (*Sink)(nil)
