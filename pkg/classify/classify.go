// Package classify is the inference service: bytes in, class label out.
//
// A Service is built once per process from a loaded bundle and the running
// recipe, then shared by every request handler. It holds no mutable state.
package classify

import (
	"context"
	"time"

	"github.com/haivivi/noisemap/pkg/audio"
	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
)

// Result is the outcome of one classification.
type Result struct {
	Label      string `json:"label"`
	ClassIndex int    `json:"class_index"`
	// Confidence is the forest vote share of Label. It is not calibrated.
	Confidence float64 `json:"confidence"`
	// NoiseLevel is the RMS level of the analysed waveform in dBFS.
	NoiseLevel float64       `json:"noise_level"`
	Duration   time.Duration `json:"duration"`
}

// Service classifies audio with one bundle.
type Service struct {
	bundle   *model.Bundle
	frontend *features.Frontend
	codec    *model.LabelCodec
	clf      model.Classifier
}

// New checks that b is internally consistent and was trained with recipe r,
// then builds the recipe-bound decoder and extractor.
func New(b *model.Bundle, r features.Recipe, opts ...features.FrontendOption) (*Service, error) {
	const op = "classify.new"
	if b == nil {
		return nil, errs.New(errs.KindInternal, op, "nil bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := b.CheckRecipe(r); err != nil {
		return nil, err
	}
	codec, err := b.LabelCodec()
	if err != nil {
		return nil, err
	}
	frontend, err := features.NewFrontend(r, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, op, "build frontend", err)
	}
	return &Service{bundle: b, frontend: frontend, codec: codec, clf: b.Classifier()}, nil
}

// Recipe returns the running recipe.
func (s *Service) Recipe() features.Recipe { return s.frontend.Recipe() }

// Bundle returns the loaded bundle. Callers must not modify it.
func (s *Service) Bundle() *model.Bundle { return s.bundle }

// Labels returns the class names in index order.
func (s *Service) Labels() []string { return s.codec.Classes() }

// CheckToolchain reports whether the external decoder is available.
func (s *Service) CheckToolchain() error { return s.frontend.Decoder().CheckToolchain() }

// Classify decodes data and classifies it.
func (s *Service) Classify(ctx context.Context, data []byte) (*Result, error) {
	w, err := s.frontend.Decoder().Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.ClassifyWaveform(w)
}

// ClassifyWaveform classifies an already decoded waveform. It must be at
// the recipe sample rate.
func (s *Service) ClassifyWaveform(w *audio.Waveform) (*Result, error) {
	vec, err := s.frontend.Extractor().Extract(w)
	if err != nil {
		return nil, err
	}
	res, err := s.ClassifyVector(vec)
	if err != nil {
		return nil, err
	}
	res.NoiseLevel = w.Level()
	res.Duration = w.Duration()
	return res, nil
}

// ClassifyVector classifies a raw, unnormalised feature vector. A vector
// whose length differs from the recipe fails with KindShapeMismatch; it is
// never padded or truncated.
func (s *Service) ClassifyVector(vec []float64) (*Result, error) {
	const op = "classify"
	if dim := s.Recipe().Dim(); len(vec) != dim {
		return nil, errs.Newf(errs.KindShapeMismatch, op, "feature vector has %d slots, model expects %d", len(vec), dim)
	}
	x, err := s.bundle.Normalize(vec)
	if err != nil {
		return nil, err
	}
	probs, err := s.clf.Probabilities(x)
	if err != nil {
		return nil, err
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	label, err := s.codec.Decode(best)
	if err != nil {
		return nil, err
	}
	return &Result{Label: label, ClassIndex: best, Confidence: probs[best]}, nil
}
