package features

import (
	"context"

	"github.com/haivivi/noisemap/pkg/audio"
	"github.com/haivivi/noisemap/pkg/audio/decode"
)

// Frontend pairs a Decoder and an Extractor built from the same Recipe, so
// the decode sample rate and window can never drift from what the extractor
// assumes. Training and every serving path featurize through a Frontend.
type Frontend struct {
	recipe    Recipe
	decoder   *decode.Decoder
	extractor *Extractor
}

type frontendOptions struct {
	ffmpegPath string
	tempDir    string
}

// FrontendOption configures NewFrontend.
type FrontendOption func(*frontendOptions)

// WithFFmpeg sets the ffmpeg executable used for containers the native
// decoders do not handle.
func WithFFmpeg(path string) FrontendOption {
	return func(o *frontendOptions) { o.ffmpegPath = path }
}

// WithTempDir sets the directory for transient decode files.
func WithTempDir(dir string) FrontendOption {
	return func(o *frontendOptions) { o.tempDir = dir }
}

// NewFrontend builds the decoder and extractor for r.
func NewFrontend(r Recipe, opts ...FrontendOption) (*Frontend, error) {
	var o frontendOptions
	for _, opt := range opts {
		opt(&o)
	}
	ext, err := NewExtractor(r)
	if err != nil {
		return nil, err
	}
	dec := decode.New(decode.Config{
		SampleRate:  r.SampleRate,
		MaxDuration: r.MaxDuration,
		FFmpegPath:  o.ffmpegPath,
		TempDir:     o.tempDir,
	})
	return &Frontend{recipe: r, decoder: dec, extractor: ext}, nil
}

// Recipe returns the shared recipe.
func (f *Frontend) Recipe() Recipe { return f.recipe }

// Decoder returns the recipe-bound decoder.
func (f *Frontend) Decoder() *decode.Decoder { return f.decoder }

// Extractor returns the recipe-bound extractor.
func (f *Frontend) Extractor() *Extractor { return f.extractor }

// Featurize decodes data and extracts its feature vector. The decoded
// waveform is returned alongside for callers that report its level or
// duration.
func (f *Frontend) Featurize(ctx context.Context, data []byte) (*audio.Waveform, []float64, error) {
	w, err := f.decoder.Decode(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	vec, err := f.extractor.Extract(w)
	if err != nil {
		return w, nil, err
	}
	return w, vec, nil
}
