package transport

import (
	applog "spectrum/internal/log"
)

// LoggingSink logs a one-line summary of every Nth spectrum at DEBUG level.
type LoggingSink struct {
	every  int
	frames uint64
}

// NewLoggingSink creates a LoggingSink that reports every `every` frames
// (every frame when every <= 1).
func NewLoggingSink(every int) *LoggingSink {
	if every < 1 {
		every = 1
	}
	applog.Debugf("Transport: Using LoggingSink (every %d frames)", every)
	return &LoggingSink{every: every}
}

// Send logs the peak bin of the spectrum.
func (ls *LoggingSink) Send(spectrum []float64) error {
	ls.frames++
	if ls.frames%uint64(ls.every) != 0 || len(spectrum) == 0 {
		return nil
	}

	peak, sum := 0, 0.0
	for i, v := range spectrum {
		sum += v
		if v > spectrum[peak] {
			peak = i
		}
	}
	applog.Debugf("LoggingSink: frame %d, %d bins, peak bin %d (%.3f), mean %.3f",
		ls.frames, len(spectrum), peak, spectrum[peak], sum/float64(len(spectrum)))
	return nil
}

// Frames returns how many spectra have been received.
func (ls *LoggingSink) Frames() uint64 { return ls.frames }

// Close is a no-op for LoggingSink.
func (ls *LoggingSink) Close() error {
	applog.Debugf("LoggingSink: Close called after %d frames.", ls.frames)
	return nil
}

// Ensure LoggingSink satisfies the interface at compile time.
var _ Sink = (*LoggingSink)(nil)
