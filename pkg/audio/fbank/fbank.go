// Package fbank computes short-time spectra and mel filterbank energies
// from float64 PCM audio.
//
// It is the spectral front end of the noisemap feature recipe. Framing
// follows the centered convention: the signal is zero padded by half a frame
// on both ends, so a signal of n samples yields 1 + n/HopLength frames.
//
// Parameters used by the canonical recipe:
//
//	SampleRate:  22050
//	FrameLength: 2048 (≈93 ms, also the FFT size)
//	HopLength:   512
//	NumMels:     128
//	FMin:        0
//	FMax:        SampleRate / 2
package fbank

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrTooShort is returned when the input has fewer samples than one frame.
var ErrTooShort = errors.New("fbank: signal shorter than one frame")

// Config controls spectral analysis parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz
	FrameLength int     // window and FFT length in samples, power of two
	HopLength   int     // hop between frames in samples
	NumMels     int     // number of mel bands
	FMin        float64 // lowest mel frequency in Hz
	FMax        float64 // highest mel frequency in Hz, 0 means Nyquist
}

// DefaultConfig returns the analysis settings of the canonical recipe.
func DefaultConfig() Config {
	return Config{
		SampleRate:  22050,
		FrameLength: 2048,
		HopLength:   512,
		NumMels:     128,
		FMin:        0,
		FMax:        0,
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("fbank: invalid sample rate %d", c.SampleRate)
	}
	if c.FrameLength < 2 || c.FrameLength&(c.FrameLength-1) != 0 {
		return fmt.Errorf("fbank: frame length %d is not a power of two", c.FrameLength)
	}
	if c.HopLength <= 0 || c.HopLength > c.FrameLength {
		return fmt.Errorf("fbank: invalid hop length %d", c.HopLength)
	}
	if c.NumMels <= 0 {
		return fmt.Errorf("fbank: invalid mel band count %d", c.NumMels)
	}
	return nil
}

// Spectrogram holds one analysis of a signal, frame-major.
type Spectrogram struct {
	// Magnitude[t][k] is |X_t(k)| for bins k = 0..FrameLength/2.
	Magnitude [][]float64
	// Power[t][k] is |X_t(k)|².
	Power [][]float64

	SampleRate  int
	FrameLength int
}

// NumFrames returns the number of analysis frames.
func (s *Spectrogram) NumFrames() int { return len(s.Power) }

// NumBins returns the number of frequency bins per frame.
func (s *Spectrogram) NumBins() int { return s.FrameLength/2 + 1 }

// BinFrequency returns the center frequency of bin k in Hz.
func (s *Spectrogram) BinFrequency(k int) float64 {
	return float64(k) * float64(s.SampleRate) / float64(s.FrameLength)
}

// Extractor computes spectra and mel energies for a fixed Config.
// It holds only immutable tables and a pool of FFT plans, and is safe for
// concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64 // periodic Hann window
	melBank [][]float64

	// plans holds *fourier.FFT of FrameLength. A plan carries work
	// buffers, so one goroutine uses it at a time.
	plans sync.Pool
}

// New creates an Extractor with the given config.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.FMax <= 0 {
		cfg.FMax = float64(cfg.SampleRate) / 2
	}
	e := &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FrameLength),
		melBank: melFilterBank(cfg.NumMels, cfg.FrameLength, cfg.SampleRate, cfg.FMin, cfg.FMax),
	}
	e.plans.New = func() any { return fourier.NewFFT(cfg.FrameLength) }
	return e, nil
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// NumFrames returns the number of frames produced for n input samples.
func (e *Extractor) NumFrames(n int) int {
	return 1 + n/e.cfg.HopLength
}

// Frames slices the centered, zero-padded signal into raw (unwindowed)
// frames of FrameLength samples.
func (e *Extractor) Frames(samples []float64) ([][]float64, error) {
	if len(samples) < e.cfg.FrameLength {
		return nil, ErrTooShort
	}
	frameLen := e.cfg.FrameLength
	pad := frameLen / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	numFrames := e.NumFrames(len(samples))
	frames := make([][]float64, numFrames)
	for t := range frames {
		start := t * e.cfg.HopLength
		frames[t] = padded[start : start+frameLen]
	}
	return frames, nil
}

// STFT computes the magnitude and power spectrogram of samples.
func (e *Extractor) STFT(samples []float64) (*Spectrogram, error) {
	frames, err := e.Frames(samples)
	if err != nil {
		return nil, err
	}
	frameLen := e.cfg.FrameLength
	bins := frameLen/2 + 1

	plan := e.plans.Get().(*fourier.FFT)
	defer e.plans.Put(plan)
	buf := make([]float64, frameLen)
	coeffs := make([]complex128, bins)

	spec := &Spectrogram{
		Magnitude:   make([][]float64, len(frames)),
		Power:       make([][]float64, len(frames)),
		SampleRate:  e.cfg.SampleRate,
		FrameLength: frameLen,
	}
	for t, frame := range frames {
		for i, s := range frame {
			buf[i] = s * e.window[i]
		}
		coeffs = plan.Coefficients(coeffs, buf)

		mag := make([]float64, bins)
		pow := make([]float64, bins)
		for k, c := range coeffs {
			m := cmplx.Abs(c)
			mag[k] = m
			pow[k] = m * m
		}
		spec.Magnitude[t] = mag
		spec.Power[t] = pow
	}
	return spec, nil
}

// Mel projects a power spectrogram onto the mel filterbank.
// Output: [T][NumMels].
func (e *Extractor) Mel(spec *Spectrogram) [][]float64 {
	out := make([][]float64, spec.NumFrames())
	for t, power := range spec.Power {
		mel := make([]float64, e.cfg.NumMels)
		for m, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * power[k]
				}
			}
			mel[m] = sum
		}
		out[t] = mel
	}
	return out
}

// PowerToDB converts power values to decibels relative to 1.0.
// Values are floored at amin before the log, and the result is clipped to
// no less than (global max - topDB) when topDB > 0.
func PowerToDB(rows [][]float64, amin, topDB float64) [][]float64 {
	out := make([][]float64, len(rows))
	peak := math.Inf(-1)
	for t, row := range rows {
		db := make([]float64, len(row))
		for i, v := range row {
			db[i] = 10 * math.Log10(math.Max(amin, v))
			if db[i] > peak {
				peak = db[i]
			}
		}
		out[t] = db
	}
	if topDB > 0 {
		floor := peak - topDB
		for _, row := range out {
			for i, v := range row {
				if v < floor {
					row[i] = floor
				}
			}
		}
	}
	return out
}

// DCT applies an orthonormal DCT-II to every row and keeps the first n
// coefficients. Output: [T][n].
func DCT(rows [][]float64, n int) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	basis := dctBasis(len(rows[0]), n)
	out := make([][]float64, len(rows))
	for t, row := range rows {
		coeffs := make([]float64, n)
		for k, b := range basis {
			var sum float64
			for i, x := range row {
				sum += x * b[i]
			}
			coeffs[k] = sum
		}
		out[t] = coeffs
	}
	return out
}

// FrameMean averages a [T][D] matrix over time. Output: [D].
func FrameMean(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	mean := make([]float64, len(rows[0]))
	for _, row := range rows {
		for i, v := range row {
			mean[i] += v
		}
	}
	inv := 1 / float64(len(rows))
	for i := range mean {
		mean[i] *= inv
	}
	return mean
}
