package audio

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Waveform is mono audio as float64 samples in [-1, 1] at SampleRate Hz.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (w *Waveform) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Samples)
}

// Duration returns the playback length of the waveform.
func (w *Waveform) Duration() time.Duration {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Peak returns the maximum absolute sample value.
func (w *Waveform) Peak() float64 {
	if w.Len() == 0 {
		return 0
	}
	return math.Max(floats.Max(w.Samples), -floats.Min(w.Samples))
}

// RMS returns the root mean square over all samples.
func (w *Waveform) RMS() float64 {
	if w.Len() == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(w.Samples, w.Samples) / float64(len(w.Samples)))
}

// Level returns the RMS level in dBFS, floored at -120.
func (w *Waveform) Level() float64 {
	rms := w.RMS()
	if rms < 1e-6 {
		return -120
	}
	return 20 * math.Log10(rms)
}

// Truncate shortens the waveform in place to at most d.
func (w *Waveform) Truncate(d time.Duration) {
	if w == nil || d <= 0 || w.SampleRate <= 0 {
		return
	}
	n := int(d.Seconds() * float64(w.SampleRate))
	if n < len(w.Samples) {
		w.Samples = w.Samples[:n]
	}
}
