// Package classifytest builds small real bundles for tests.
package classifytest

import (
	"testing"
	"time"

	"github.com/haivivi/noisemap/pkg/audio"
	"github.com/haivivi/noisemap/pkg/audio/audiotest"
	"github.com/haivivi/noisemap/pkg/classify"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
)

// Classes are the labels of the test bundle.
var Classes = []string{"drilling", "traffic"}

// Clip returns one second of synthetic audio for class at rate.
// Variant changes the pitch and the noise.
func Clip(class string, variant int, rate int) []float64 {
	freq := 100.0 + float64(variant%5)*5
	if class == "drilling" {
		freq = 3000 + float64(variant%5)*40
	}
	return audiotest.Mix(
		audiotest.Tone(freq, 0.5, time.Second, rate),
		audiotest.Noise(uint64(variant)+1, 0.05, time.Second, rate),
	)
}

// WAV returns Clip encoded as a mono WAV file at the canonical rate.
func WAV(tb testing.TB, class string, variant int) []byte {
	tb.Helper()
	return audiotest.WAV(tb, Clip(class, variant, features.DefaultSampleRate), features.DefaultSampleRate, 1)
}

// Bundle trains a 20-tree standard-scaled bundle on four clips per class
// with the canonical recipe.
func Bundle(tb testing.TB) *model.Bundle {
	tb.Helper()
	recipe := features.Canonical()
	ext, err := features.NewExtractor(recipe)
	if err != nil {
		tb.Fatal(err)
	}
	var (
		x      [][]float64
		labels []string
	)
	for _, class := range Classes {
		for v := range 4 {
			w := &audio.Waveform{Samples: Clip(class, v, recipe.SampleRate), SampleRate: recipe.SampleRate}
			vec, err := ext.Extract(w)
			if err != nil {
				tb.Fatalf("extract %s/%d: %v", class, v, err)
			}
			x = append(x, vec)
			labels = append(labels, class)
		}
	}
	codec, err := model.FitLabelCodec(labels)
	if err != nil {
		tb.Fatal(err)
	}
	y, err := codec.EncodeAll(labels)
	if err != nil {
		tb.Fatal(err)
	}
	norm, err := model.FitNormalizer(x)
	if err != nil {
		tb.Fatal(err)
	}
	xn, err := norm.TransformAll(x)
	if err != nil {
		tb.Fatal(err)
	}
	cfg := model.DefaultForestConfig()
	cfg.NumTrees = 20
	forest, err := model.FitForest(tb.Context(), xn, y, codec.Len(), cfg)
	if err != nil {
		tb.Fatal(err)
	}
	b, err := model.NewBundle(recipe, norm, codec, forest, model.Metadata{
		CreatedAt:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Samples:     len(x),
		ClassCounts: map[string]int{"drilling": 4, "traffic": 4},
		Forest:      cfg,
	})
	if err != nil {
		tb.Fatal(err)
	}
	return b
}

// Service wraps Bundle in a classify.Service on the canonical recipe.
func Service(tb testing.TB) *classify.Service {
	tb.Helper()
	svc, err := classify.New(Bundle(tb), features.Canonical())
	if err != nil {
		tb.Fatal(err)
	}
	return svc
}
