// Package train builds a model bundle from a labelled audio corpus.
//
// The corpus has one directory per class holding that class's audio files.
// Every file is decoded and featurized through a features.Frontend built
// from the same recipe serving uses. A file that fails is logged and
// skipped; only the training run may do that.
package train

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
)

// Options configures Run.
type Options struct {
	// Recipe is the feature recipe. Zero value means features.Canonical().
	Recipe features.Recipe

	// FFmpegPath is passed to the decoder for non-native containers.
	FFmpegPath string

	// Scaling selects feature normalisation. Empty means standard.
	Scaling model.Scaling

	// Forest configures the classifier. Zero fields take their value from
	// model.DefaultForestConfig(), so a zero Seed means 42.
	Forest model.ForestConfig

	// HoldOut is the per-class fraction of samples held out to estimate
	// accuracy. Zero disables evaluation. The returned bundle is always
	// fit on every sample.
	HoldOut float64

	// Workers bounds concurrent feature extraction. Zero means GOMAXPROCS.
	Workers int

	// Progress, if set, is called once per processed file. It may be called
	// concurrently.
	Progress func(Entry, error)

	// Now stamps the bundle. Defaults to time.Now.
	Now func() time.Time
}

// Skip records a corpus file excluded from training.
type Skip struct {
	Path   string `json:"path"`
	Class  string `json:"class"`
	Reason string `json:"reason"`
}

// Evaluation is the result of a hold-out run.
type Evaluation struct {
	Train    int      `json:"train"`
	Test     int      `json:"test"`
	Correct  int      `json:"correct"`
	Accuracy float64  `json:"accuracy"`
	Labels   []string `json:"labels"`
	// Confusion[i][j] counts test samples of class i predicted as j.
	Confusion [][]int `json:"confusion"`
}

// Report summarises a training run.
type Report struct {
	Files       int            `json:"files"`
	Samples     int            `json:"samples"`
	Dim         int            `json:"dim"`
	ClassCounts map[string]int `json:"class_counts"`
	Skipped     []Skip         `json:"skipped,omitempty"`
	HoldOut     *Evaluation    `json:"holdout,omitempty"`
	Elapsed     time.Duration  `json:"elapsed"`
}

func (o Options) withDefaults() Options {
	if o.Recipe.Name == "" {
		o.Recipe = features.Canonical()
	}
	if o.Scaling == "" {
		o.Scaling = model.ScalingStandard
	}
	def := model.DefaultForestConfig()
	if o.Forest.NumTrees <= 0 {
		o.Forest.NumTrees = def.NumTrees
	}
	if o.Forest.MinSamplesSplit <= 0 {
		o.Forest.MinSamplesSplit = def.MinSamplesSplit
	}
	if o.Forest.MinSamplesLeaf <= 0 {
		o.Forest.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if o.Forest.Seed == 0 {
		o.Forest.Seed = def.Seed
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Run trains a bundle on the corpus in fsys.
func Run(ctx context.Context, fsys fs.FS, opts Options) (*model.Bundle, *Report, error) {
	const op = "train"
	opts = opts.withDefaults()
	start := time.Now()

	if opts.HoldOut < 0 || opts.HoldOut >= 1 {
		return nil, nil, errs.Newf(errs.KindInvalidInput, op, "hold-out fraction %g outside [0, 1)", opts.HoldOut)
	}
	if opts.Scaling != model.ScalingStandard && opts.Scaling != model.ScalingNone {
		return nil, nil, errs.Newf(errs.KindInvalidInput, op, "unknown scaling %q", opts.Scaling)
	}
	frontend, err := features.NewFrontend(opts.Recipe, features.WithFFmpeg(opts.FFmpegPath))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindInvalidInput, op, "invalid recipe", err)
	}

	entries, err := ScanCorpus(fsys)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindInvalidInput, op, "scan corpus", err)
	}
	if len(entries) == 0 {
		return nil, nil, errs.New(errs.KindInvalidInput, op, "corpus has no eligible audio files")
	}
	slog.Info("train: corpus scanned", "files", len(entries), "recipe", opts.Recipe.Fingerprint())

	set, skipped, err := extractAll(ctx, fsys, frontend, entries, opts)
	if err != nil {
		return nil, nil, err
	}
	report := &Report{
		Files:       len(entries),
		Samples:     len(set.x),
		ClassCounts: set.classCounts(),
		Skipped:     skipped,
	}
	if len(set.x) > 0 {
		report.Dim = len(set.x[0])
	}
	slog.Info("train: features extracted",
		"samples", report.Samples,
		"dim", report.Dim,
		"skipped", len(skipped),
		"classes", len(report.ClassCounts))

	if report.Samples == 0 {
		return nil, report, errs.New(errs.KindInvalidInput, op, "no sample survived feature extraction")
	}
	if report.Dim != opts.Recipe.Dim() {
		return nil, report, errs.Newf(errs.KindShapeMismatch, op, "realised dimension %d, recipe defines %d", report.Dim, opts.Recipe.Dim())
	}
	if len(report.ClassCounts) < 2 {
		return nil, report, errs.Newf(errs.KindInvalidInput, op, "need at least two classes, have %d", len(report.ClassCounts))
	}

	codec, err := model.FitLabelCodec(set.labels)
	if err != nil {
		return nil, report, err
	}
	y, err := codec.EncodeAll(set.labels)
	if err != nil {
		return nil, report, err
	}

	meta := model.Metadata{
		CreatedAt:   opts.Now().UTC(),
		Samples:     report.Samples,
		Skipped:     len(skipped),
		ClassCounts: maps.Clone(report.ClassCounts),
		Forest:      opts.Forest,
	}
	// Worker counts never change the trees and stay out of the bundle.
	meta.Forest.Workers = 0
	if opts.HoldOut > 0 {
		eval, err := holdOut(ctx, set.x, y, codec, opts)
		if err != nil {
			return nil, report, err
		}
		report.HoldOut = eval
		meta.HoldOutAccuracy = &eval.Accuracy
		meta.HoldOutSamples = eval.Test
		slog.Info("train: hold-out evaluated", "train", eval.Train, "test", eval.Test, "accuracy", eval.Accuracy)
	}

	norm, forest, err := fit(ctx, set.x, y, codec.Len(), opts)
	if err != nil {
		return nil, report, err
	}
	bundle, err := model.NewBundle(opts.Recipe, norm, codec, forest, meta)
	if err != nil {
		return nil, report, err
	}
	report.Elapsed = time.Since(start)
	slog.Info("train: bundle ready", "labels", bundle.Labels, "trees", len(forest.Trees), "elapsed", report.Elapsed)
	return bundle, report, nil
}

// fit trains the normaliser (unless scaling is none) and the forest.
func fit(ctx context.Context, x [][]float64, y []int, numClasses int, opts Options) (*model.Normalizer, *model.Forest, error) {
	var norm *model.Normalizer
	if opts.Scaling == model.ScalingStandard {
		var err error
		if norm, err = model.FitNormalizer(x); err != nil {
			return nil, nil, err
		}
		if x, err = norm.TransformAll(x); err != nil {
			return nil, nil, err
		}
	}
	forest, err := model.FitForest(ctx, x, y, numClasses, opts.Forest)
	if err != nil {
		return nil, nil, err
	}
	return norm, forest, nil
}

type sampleSet struct {
	x      [][]float64
	labels []string
}

func (s *sampleSet) classCounts() map[string]int {
	counts := make(map[string]int)
	for _, l := range s.labels {
		counts[l]++
	}
	return counts
}

// extractAll featurizes entries concurrently. Surviving samples keep corpus
// order regardless of scheduling.
func extractAll(ctx context.Context, fsys fs.FS, frontend *features.Frontend, entries []Entry, opts Options) (*sampleSet, []Skip, error) {
	vecs := make([][]float64, len(entries))
	fails := make([]error, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vecs[i], fails[i] = featurizeFile(ctx, fsys, frontend, e)
			if opts.Progress != nil {
				opts.Progress(e, fails[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	set := &sampleSet{}
	var skipped []Skip
	for i, e := range entries {
		if fails[i] != nil {
			slog.Warn("train: skipping file", "path", e.Path, "class", e.Class, "kind", errs.KindOf(fails[i]), "error", fails[i])
			skipped = append(skipped, Skip{Path: e.Path, Class: e.Class, Reason: fails[i].Error()})
			continue
		}
		set.x = append(set.x, vecs[i])
		set.labels = append(set.labels, e.Class)
	}
	return set, skipped, nil
}

func featurizeFile(ctx context.Context, fsys fs.FS, frontend *features.Frontend, e Entry) ([]float64, error) {
	data, err := fs.ReadFile(fsys, e.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	_, vec, err := frontend.Featurize(ctx, data)
	if err != nil {
		return nil, err
	}
	return vec, nil
}
