package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/haivivi/noisemap/pkg/audio"
	"github.com/haivivi/noisemap/pkg/audio/fbank"
	"github.com/haivivi/noisemap/pkg/errs"
)

// Sentinel causes carried inside KindFeatureExtraction errors.
var (
	ErrEmptyWaveform      = errors.New("features: empty waveform")
	ErrSampleRateMismatch = errors.New("features: sample rate does not match recipe")
	ErrTooShort           = errors.New("features: waveform shorter than one analysis frame")
	ErrSilent             = errors.New("features: waveform is silent")
	ErrNonFinite          = errors.New("features: non-finite feature value")
)

// amin floors power and magnitude values before taking logarithms.
const amin = 1e-10

// Extractor computes feature vectors for one Recipe. It holds only
// immutable tables and is safe for concurrent use.
type Extractor struct {
	recipe Recipe
	bank   *fbank.Extractor

	// chromaClass[k] is the pitch class of FFT bin k, or -1 if the bin is
	// below the chroma floor.
	chromaClass []int
	// bands[b] is the inclusive FFT bin range of contrast band b.
	bands [][2]int
}

// NewExtractor validates r and precomputes its analysis tables.
func NewExtractor(r Recipe) (*Extractor, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	cfg := fbank.DefaultConfig()
	cfg.SampleRate = r.SampleRate
	cfg.FrameLength = r.FrameLength
	cfg.HopLength = r.HopLength
	cfg.NumMels = r.NumMels
	bank, err := fbank.New(cfg)
	if err != nil {
		return nil, err
	}
	e := &Extractor{
		recipe:      r,
		bank:        bank,
		chromaClass: chromaMap(r),
	}
	if e.bands, err = contrastBands(r); err != nil {
		return nil, err
	}
	return e, nil
}

// Recipe returns the recipe this extractor computes.
func (e *Extractor) Recipe() Recipe { return e.recipe }

// Dim returns the length of every vector Extract produces.
func (e *Extractor) Dim() int { return e.recipe.Dim() }

// Extract computes the feature vector of w.
//
// Failures are *errs.Error of kind KindFeatureExtraction, except a vector
// whose length differs from the recipe, which is KindShapeMismatch. No
// failure is ever replaced by a default vector.
func (e *Extractor) Extract(w *audio.Waveform) ([]float64, error) {
	const op = "extract"
	r := e.recipe
	if w == nil || w.Len() == 0 {
		return nil, errs.Wrap(errs.KindFeatureExtraction, op, "no samples", ErrEmptyWaveform)
	}
	if w.SampleRate != r.SampleRate {
		return nil, errs.Wrap(errs.KindFeatureExtraction, op,
			fmt.Sprintf("waveform at %d Hz, recipe expects %d Hz", w.SampleRate, r.SampleRate), ErrSampleRateMismatch)
	}
	if w.Len() < r.MinSamples() {
		return nil, errs.Wrap(errs.KindFeatureExtraction, op,
			fmt.Sprintf("%d samples, need at least %d", w.Len(), r.MinSamples()), ErrTooShort)
	}
	if peak := w.Peak(); peak < r.SilenceThreshold {
		return nil, errs.Wrap(errs.KindFeatureExtraction, op,
			fmt.Sprintf("peak amplitude %.2e below %.2e", peak, r.SilenceThreshold), ErrSilent)
	}

	spec, err := e.bank.STFT(w.Samples)
	if err != nil {
		return nil, errs.Wrap(errs.KindFeatureExtraction, op, "stft failed", err)
	}
	frames, err := e.bank.Frames(w.Samples)
	if err != nil {
		return nil, errs.Wrap(errs.KindFeatureExtraction, op, "framing failed", err)
	}

	vec := make([]float64, 0, r.Dim())
	vec = append(vec, e.mfcc(spec)...)
	vec = append(vec, e.chroma(spec)...)
	vec = append(vec, e.contrast(spec)...)
	vec = append(vec, zeroCrossingRate(frames), frameRMS(frames), e.rolloff(spec))

	if len(vec) != r.Dim() {
		return nil, errs.Newf(errs.KindShapeMismatch, op, "produced %d features, recipe %s defines %d", len(vec), r.Fingerprint(), r.Dim())
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errs.Wrap(errs.KindFeatureExtraction, op, fmt.Sprintf("slot %d (%s)", i, r.SlotNames()[i]), ErrNonFinite)
		}
	}
	return vec, nil
}

// mfcc returns the frame mean of the first NumMFCC cepstral coefficients of
// the log-mel spectrogram.
func (e *Extractor) mfcc(spec *fbank.Spectrogram) []float64 {
	logMel := fbank.PowerToDB(e.bank.Mel(spec), amin, e.recipe.TopDB)
	return fbank.FrameMean(fbank.DCT(logMel, e.recipe.NumMFCC))
}

// chroma folds bin power onto pitch classes, normalises each frame by its
// loudest class and averages over frames.
func (e *Extractor) chroma(spec *fbank.Spectrogram) []float64 {
	rows := make([][]float64, spec.NumFrames())
	for t, power := range spec.Power {
		row := make([]float64, chromaBins)
		for k, p := range power {
			if c := e.chromaClass[k]; c >= 0 {
				row[c] += p
			}
		}
		if peak := floats.Max(row); peak > 0 {
			floats.Scale(1/peak, row)
		}
		rows[t] = row
	}
	return fbank.FrameMean(rows)
}

// contrast returns the frame mean of peak-to-valley level difference per
// band. Peak and valley are the means of the top and bottom quantile of the
// band's bin magnitudes.
func (e *Extractor) contrast(spec *fbank.Spectrogram) []float64 {
	q := e.recipe.ContrastQuantile
	rows := make([][]float64, spec.NumFrames())
	for t, mag := range spec.Magnitude {
		row := make([]float64, len(e.bands))
		for b, rng := range e.bands {
			band := sortedCopy(mag[rng[0] : rng[1]+1])
			n := max(1, int(math.Round(q*float64(len(band)))))
			valley := stat.Mean(band[:n], nil)
			peak := stat.Mean(band[len(band)-n:], nil)
			row[b] = toDB(peak) - toDB(valley)
		}
		rows[t] = row
	}
	return fbank.FrameMean(rows)
}

// rolloff returns the frame mean of the lowest bin frequency whose
// cumulative magnitude reaches RolloffPercent of the frame total.
func (e *Extractor) rolloff(spec *fbank.Spectrogram) float64 {
	pct := e.recipe.RolloffPercent
	var sum float64
	for _, mag := range spec.Magnitude {
		threshold := pct * floats.Sum(mag)
		var cum float64
		for k, m := range mag {
			cum += m
			if cum >= threshold {
				sum += spec.BinFrequency(k)
				break
			}
		}
	}
	return sum / float64(spec.NumFrames())
}

// zeroCrossingRate returns the frame mean of the fraction of adjacent sample
// pairs that change sign. Zero counts as positive.
func zeroCrossingRate(frames [][]float64) float64 {
	var sum float64
	for _, f := range frames {
		var crossings int
		for i := 1; i < len(f); i++ {
			if (f[i] >= 0) != (f[i-1] >= 0) {
				crossings++
			}
		}
		sum += float64(crossings) / float64(len(f))
	}
	return sum / float64(len(frames))
}

// frameRMS returns the frame mean of root-mean-square amplitude.
func frameRMS(frames [][]float64) float64 {
	var sum float64
	for _, f := range frames {
		sum += math.Sqrt(floats.Dot(f, f) / float64(len(f)))
	}
	return sum / float64(len(frames))
}
