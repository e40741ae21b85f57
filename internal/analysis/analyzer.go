// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"spectrum/internal/resample"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultBins is the spectrum resolution used when none is configured.
const DefaultBins = 256

// Slicing presets. A real-input transform mirrors its upper half, so only a
// prefix of the magnitudes is drawn. Observed practice disagrees on how long
// that prefix is, so the fraction of the full transform length is left to
// configuration.
const (
	SliceQuarter     = 0.25  // first quarter of the full transform
	SliceHalfQuarter = 0.125 // drop the mirrored half, then keep a quarter of it
)

var (
	ErrEmptyInput    = errors.New("analysis: empty input")
	ErrBinCount      = errors.New("analysis: bin count must be at least 2")
	ErrSliceFraction = errors.New("analysis: slice fraction must be in (0, 1]")
	ErrSpectrumSize  = errors.New("analysis: spectrum length does not match bin count")
)

// Spectrum is a fixed-size magnitude spectrum, reused across frames.
type Spectrum []float64

// fftWorkspace holds the plan and buffers for one input length.
type fftWorkspace struct {
	plan   *fourier.CmplxFFT
	seq    []complex128 // time domain, imaginary part zero
	coeffs []complex128
	mags   []float64
}

// Analyzer converts a time-domain window into a magnitude spectrum of a
// fixed number of bins. Its output depends only on the input and its
// configuration; the workspace is a cache keyed by input length so a
// constant window size costs no allocations after the first frame.
type Analyzer struct {
	bins     int
	fraction float64

	mu        sync.Mutex // guards workspace
	workspace fftWorkspace
}

// New returns an Analyzer producing bins values from the first fraction of
// each transform.
func New(bins int, fraction float64) (*Analyzer, error) {
	if bins < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrBinCount, bins)
	}
	if !(fraction > 0 && fraction <= 1) {
		return nil, fmt.Errorf("%w, got %g", ErrSliceFraction, fraction)
	}
	return &Analyzer{bins: bins, fraction: fraction}, nil
}

// Bins returns the configured spectrum length.
func (a *Analyzer) Bins() int { return a.bins }

// Fraction returns the configured slice fraction.
func (a *Analyzer) Fraction() float64 { return a.fraction }

// NewSpectrum allocates an output buffer of the right size.
func (a *Analyzer) NewSpectrum() Spectrum {
	return make(Spectrum, a.bins)
}

// PrefixLen returns how many magnitudes of an n-point transform are kept.
// At least the DC bin is always kept.
func (a *Analyzer) PrefixLen(n int) int {
	k := int(math.Floor(float64(n) * a.fraction))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// Analyze transforms timeDomain, takes the magnitude of every coefficient,
// keeps the informative prefix and resamples it into dst.
func (a *Analyzer) Analyze(dst Spectrum, timeDomain []float32) error {
	if len(timeDomain) == 0 {
		return ErrEmptyInput
	}
	if len(dst) != a.bins {
		return fmt.Errorf("%w: got %d, want %d", ErrSpectrumSize, len(dst), a.bins)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	mags := a.magnitudes(timeDomain)
	return resample.Into(dst, mags[:a.PrefixLen(len(mags))])
}

// magnitudes runs the full-length complex transform. The caller holds a.mu.
func (a *Analyzer) magnitudes(timeDomain []float32) []float64 {
	n := len(timeDomain)
	ws := &a.workspace

	if ws.plan == nil || ws.plan.Len() != n {
		ws.plan = fourier.NewCmplxFFT(n)
		ws.seq = make([]complex128, n)
		ws.coeffs = make([]complex128, n)
		ws.mags = make([]float64, n)
	}

	for i, v := range timeDomain {
		ws.seq[i] = complex(float64(v), 0)
	}
	ws.coeffs = ws.plan.Coefficients(ws.coeffs, ws.seq)
	for i, c := range ws.coeffs {
		ws.mags[i] = cmplx.Abs(c)
	}

	return ws.mags
}
