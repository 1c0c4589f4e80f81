// Package features turns a Waveform into the fixed-length vector the
// classifier is trained on.
//
// There is exactly one recipe per version. Training and every serving path
// build their decoder and extractor from the same Recipe value, and the
// recipe fingerprint is stored in the model bundle so a process refuses to
// serve a bundle made with a different recipe.
//
// Slot order of the canonical recipe (42 slots):
//
//	 0..19  mfcc_01 .. mfcc_20     mean MFCC over frames
//	20..31  chroma_C .. chroma_B   mean normalised chroma energy
//	32..38  contrast_0 .. _6       mean spectral contrast per octave band
//	39      zcr                    mean zero-crossing rate
//	40      rms                    mean frame RMS energy
//	41      rolloff                mean 85% spectral roll-off in Hz
package features

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/haivivi/noisemap/pkg/audio/fbank"
)

const (
	// RecipeName identifies the canonical recipe family.
	RecipeName = "urban-noise"
	// RecipeVersion is bumped whenever any step of the recipe changes.
	RecipeVersion = 1

	// DefaultSampleRate is the analysis rate of the canonical recipe.
	DefaultSampleRate = 22050
	// DefaultMaxDuration is the analysis window of the canonical recipe.
	DefaultMaxDuration = 5 * time.Second

	chromaBins = 12
)

// Recipe lists every parameter that affects the feature vector.
type Recipe struct {
	Name    string `json:"name" yaml:"name" msgpack:"name"`
	Version int    `json:"version" yaml:"version" msgpack:"version"`

	SampleRate  int           `json:"sample_rate" yaml:"sample_rate" msgpack:"sample_rate"`
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration" msgpack:"max_duration"`

	FrameLength int `json:"frame_length" yaml:"frame_length" msgpack:"frame_length"`
	HopLength   int `json:"hop_length" yaml:"hop_length" msgpack:"hop_length"`

	NumMels int     `json:"num_mels" yaml:"num_mels" msgpack:"num_mels"`
	NumMFCC int     `json:"num_mfcc" yaml:"num_mfcc" msgpack:"num_mfcc"`
	TopDB   float64 `json:"top_db" yaml:"top_db" msgpack:"top_db"`

	ChromaFMin float64 `json:"chroma_fmin" yaml:"chroma_fmin" msgpack:"chroma_fmin"`

	ContrastBands    int     `json:"contrast_bands" yaml:"contrast_bands" msgpack:"contrast_bands"`
	ContrastFMin     float64 `json:"contrast_fmin" yaml:"contrast_fmin" msgpack:"contrast_fmin"`
	ContrastQuantile float64 `json:"contrast_quantile" yaml:"contrast_quantile" msgpack:"contrast_quantile"`

	RolloffPercent float64 `json:"rolloff_percent" yaml:"rolloff_percent" msgpack:"rolloff_percent"`

	// SilenceThreshold is the peak amplitude below which a waveform is
	// rejected as silent.
	SilenceThreshold float64 `json:"silence_threshold" yaml:"silence_threshold" msgpack:"silence_threshold"`
}

// Canonical returns the current recipe at its default sample rate.
func Canonical() Recipe {
	bank := fbank.DefaultConfig()
	return Recipe{
		Name:             RecipeName,
		Version:          RecipeVersion,
		SampleRate:       DefaultSampleRate,
		MaxDuration:      DefaultMaxDuration,
		FrameLength:      bank.FrameLength,
		HopLength:        bank.HopLength,
		NumMels:          bank.NumMels,
		NumMFCC:          20,
		TopDB:            80,
		ChromaFMin:       32.70,
		ContrastBands:    6,
		ContrastFMin:     200,
		ContrastQuantile: 0.02,
		RolloffPercent:   0.85,
		SilenceThreshold: 1e-4,
	}
}

// WithSampleRate returns a copy of r analysing audio at rate Hz.
// A zero rate leaves r unchanged.
func (r Recipe) WithSampleRate(rate int) Recipe {
	if rate > 0 {
		r.SampleRate = rate
	}
	return r
}

// WithMaxDuration returns a copy of r with analysis window d.
// A zero duration leaves r unchanged.
func (r Recipe) WithMaxDuration(d time.Duration) Recipe {
	if d > 0 {
		r.MaxDuration = d
	}
	return r
}

// NumContrast returns the number of contrast slots (bands + 1).
func (r Recipe) NumContrast() int { return r.ContrastBands + 1 }

// Dim returns the feature vector length.
func (r Recipe) Dim() int {
	return r.NumMFCC + chromaBins + r.NumContrast() + 3
}

// MinSamples returns the shortest waveform the recipe accepts.
func (r Recipe) MinSamples() int { return r.FrameLength }

var pitchClasses = [chromaBins]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// SlotNames returns the name of every slot in vector order.
func (r Recipe) SlotNames() []string {
	names := make([]string, 0, r.Dim())
	for i := 1; i <= r.NumMFCC; i++ {
		names = append(names, fmt.Sprintf("mfcc_%02d", i))
	}
	for _, pc := range pitchClasses {
		names = append(names, "chroma_"+pc)
	}
	for i := 0; i < r.NumContrast(); i++ {
		names = append(names, fmt.Sprintf("contrast_%d", i))
	}
	return append(names, "zcr", "rms", "rolloff")
}

// SlotIndex returns the position of the named slot, or -1.
func (r Recipe) SlotIndex(name string) int {
	return slices.Index(r.SlotNames(), name)
}

// Fingerprint is a stable string over every recipe parameter. Two recipes
// produce identical vectors for identical input iff their fingerprints are
// equal.
func (r Recipe) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/v%d", r.Name, r.Version)
	fmt.Fprintf(&b, " sr=%d dur=%s", r.SampleRate, r.MaxDuration)
	fmt.Fprintf(&b, " frame=%d hop=%d", r.FrameLength, r.HopLength)
	fmt.Fprintf(&b, " mels=%d mfcc=%d top_db=%g", r.NumMels, r.NumMFCC, r.TopDB)
	fmt.Fprintf(&b, " chroma=%d@%g", chromaBins, r.ChromaFMin)
	fmt.Fprintf(&b, " contrast=%d@%g/q%g", r.ContrastBands, r.ContrastFMin, r.ContrastQuantile)
	fmt.Fprintf(&b, " rolloff=%g silence=%g dim=%d", r.RolloffPercent, r.SilenceThreshold, r.Dim())
	return b.String()
}

// Validate checks that the recipe can be computed.
func (r Recipe) Validate() error {
	switch {
	case r.Name == "" || r.Version <= 0:
		return fmt.Errorf("features: recipe has no identity")
	case r.SampleRate <= 0:
		return fmt.Errorf("features: invalid sample rate %d", r.SampleRate)
	case r.MaxDuration < 0:
		return fmt.Errorf("features: negative max duration")
	case r.FrameLength < 2 || r.FrameLength&(r.FrameLength-1) != 0:
		return fmt.Errorf("features: frame length %d is not a power of two", r.FrameLength)
	case r.HopLength <= 0 || r.HopLength > r.FrameLength:
		return fmt.Errorf("features: invalid hop length %d", r.HopLength)
	case r.NumMels <= 0 || r.NumMFCC <= 0 || r.NumMFCC > r.NumMels:
		return fmt.Errorf("features: invalid mel/mfcc sizes %d/%d", r.NumMels, r.NumMFCC)
	case r.ContrastBands <= 0 || r.ContrastFMin <= 0:
		return fmt.Errorf("features: invalid contrast bands")
	case r.ContrastQuantile <= 0 || r.ContrastQuantile >= 0.5:
		return fmt.Errorf("features: contrast quantile %g outside (0, 0.5)", r.ContrastQuantile)
	case r.RolloffPercent <= 0 || r.RolloffPercent >= 1:
		return fmt.Errorf("features: roll-off percent %g outside (0, 1)", r.RolloffPercent)
	}
	nyquist := float64(r.SampleRate) / 2
	if top := r.ContrastFMin * float64(int(1)<<(r.ContrastBands-1)); top >= nyquist {
		return fmt.Errorf("features: contrast band edge %g Hz exceeds nyquist %g Hz", top, nyquist)
	}
	if r.MaxDuration > 0 && int(r.MaxDuration.Seconds()*float64(r.SampleRate)) < r.MinSamples() {
		return fmt.Errorf("features: max duration %s shorter than one frame", r.MaxDuration)
	}
	return nil
}
