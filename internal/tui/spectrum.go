// SPDX-License-Identifier: MIT

// Package tui draws the live spectrum in the terminal with Bubble Tea and
// offers an interactive input device picker.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"spectrum/internal/resample"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// peakDecay is applied to the display scale on every frame whose peak
	// is below the current scale, so the chart re-expands slowly after a
	// loud transient.
	peakDecay = 0.97
	minScale  = 1e-6

	waitingText = "waiting for audio…"
)

// partial cells for the top of each bar, in eighths
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// frameMsg carries one spectrum into the Bubble Tea event loop. The slice
// is owned by the message.
type frameMsg struct {
	bins []float64
}

// SpectrumModel is a Bubble Tea model rendering a bar chart with one column
// per terminal cell. The spectrum is resampled to the terminal width, so the
// chart follows resizes without changing the analyzer's bin count.
type SpectrumModel struct {
	title  string
	status func() string

	width, height int

	bins    []float64
	columns []float64
	scale   float64
	frames  uint64
}

// NewSpectrumModel creates the model. title describes the source; status,
// when non-nil, is called on every redraw for the footer.
func NewSpectrumModel(title string, status func() string) SpectrumModel {
	return SpectrumModel{title: title, status: status}
}

// Init implements tea.Model.
func (m SpectrumModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()

	case frameMsg:
		m.bins = msg.bins
		m.frames++
		m.rescale()
		m.layout()

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// rescale tracks the loudest bin with a slow decay.
func (m *SpectrumModel) rescale() {
	peak := 0.0
	for _, v := range m.bins {
		peak = math.Max(peak, v)
	}
	if peak >= m.scale {
		m.scale = peak
	} else {
		m.scale = math.Max(m.scale*peakDecay, peak)
	}
	m.scale = math.Max(m.scale, minScale)
}

// layout resamples the current spectrum to one value per terminal column.
func (m *SpectrumModel) layout() {
	cols := max(m.width, 2)
	if len(m.bins) == 0 {
		return
	}
	if cap(m.columns) < cols {
		m.columns = make([]float64, cols)
	}
	m.columns = m.columns[:cols]
	if err := resample.Into(m.columns, m.bins); err != nil {
		m.columns = m.columns[:0]
	}
}

func (m SpectrumModel) chartHeight() int {
	return max(m.height-4, 1)
}

// View implements tea.Model.
func (m SpectrumModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Spectrum " + m.title))
	sb.WriteString("\n\n")

	if m.frames == 0 || len(m.columns) == 0 {
		sb.WriteString(dimStyle.Render(waitingText))
		sb.WriteString("\n")
	} else {
		sb.WriteString(barStyle.Render(m.chart()))
	}

	footer := fmt.Sprintf("%d bins • frame %d • scale %.3g", len(m.bins), m.frames, m.scale)
	if m.status != nil {
		if s := m.status(); s != "" {
			footer += " • " + s
		}
	}
	footer += " • " + keys.Quit.Help().Key + ": " + keys.Quit.Help().Desc
	sb.WriteString(infoStyle.Render(footer))
	return sb.String()
}

// chart draws the columns as bars, top row first.
func (m SpectrumModel) chart() string {
	h := m.chartHeight()
	cols := m.columns[:min(len(m.columns), m.width)]

	var sb strings.Builder
	sb.Grow((len(cols)*3 + 1) * h)
	for row := h - 1; row >= 0; row-- {
		for _, v := range cols {
			// Bar height in eighths of a cell.
			eighths := int(math.Round(v / m.scale * float64(h*8)))
			fill := eighths - row*8
			switch {
			case fill >= 8:
				sb.WriteRune(blocks[8])
			case fill <= 0:
				sb.WriteRune(' ')
			default:
				sb.WriteRune(blocks[fill])
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Frames returns the number of spectra the model has received.
func (m SpectrumModel) Frames() uint64 { return m.frames }

// NewProgram wraps the model in a full-screen program that exits when ctx
// is cancelled.
func NewProgram(ctx context.Context, m SpectrumModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
}
