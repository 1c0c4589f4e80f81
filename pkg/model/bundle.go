package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/features"
)

// Bundle file layout: the 8-byte Magic, a big-endian uint16 format
// version, then the msgpack-encoded Bundle.
const (
	Magic         = "NOISEMAP"
	FormatVersion = uint16(1)

	// DefaultBundleKey is the object key bundles are stored under.
	DefaultBundleKey = "urban_noise_classifier.nmb"

	headerLen = len(Magic) + 2
)

// Bundle is the deployable artifact produced by training.
type Bundle struct {
	FormatVersion uint16 `msgpack:"format_version"`

	// Recipe is the feature recipe the classifier was trained with, and
	// Fingerprint its Fingerprint() at training time.
	Recipe      features.Recipe `msgpack:"recipe"`
	Fingerprint string          `msgpack:"fingerprint"`

	// Normalizer is non-nil iff Scaling is ScalingStandard.
	Scaling    Scaling     `msgpack:"scaling"`
	Normalizer *Normalizer `msgpack:"normalizer"`

	Labels []string `msgpack:"labels"`

	Algorithm string  `msgpack:"algorithm"`
	Forest    *Forest `msgpack:"forest"`

	Meta Metadata `msgpack:"meta"`
}

// Metadata describes the training run that produced a bundle.
type Metadata struct {
	CreatedAt   time.Time      `msgpack:"created_at" json:"created_at"`
	Samples     int            `msgpack:"samples" json:"samples"`
	Skipped     int            `msgpack:"skipped" json:"skipped"`
	ClassCounts map[string]int `msgpack:"class_counts" json:"class_counts"`

	// HoldOutAccuracy is set when training evaluated on a held-out split.
	HoldOutAccuracy *float64 `msgpack:"holdout_accuracy,omitempty" json:"holdout_accuracy,omitempty"`
	HoldOutSamples  int      `msgpack:"holdout_samples,omitempty" json:"holdout_samples,omitempty"`

	Forest ForestConfig `msgpack:"forest" json:"forest"`
}

// NewBundle assembles a bundle at the current format version. A nil
// normalizer selects ScalingNone.
func NewBundle(recipe features.Recipe, norm *Normalizer, codec *LabelCodec, forest *Forest, meta Metadata) (*Bundle, error) {
	b := &Bundle{
		FormatVersion: FormatVersion,
		Recipe:        recipe,
		Fingerprint:   recipe.Fingerprint(),
		Scaling:       ScalingNone,
		Normalizer:    norm,
		Labels:        codec.Classes(),
		Algorithm:     AlgorithmRandomForest,
		Forest:        forest,
		Meta:          meta,
	}
	if norm != nil {
		b.Scaling = ScalingStandard
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Classifier returns the bundle's classifier.
func (b *Bundle) Classifier() Classifier { return b.Forest }

// LabelCodec restores the bundle's label codec.
func (b *Bundle) LabelCodec() (*LabelCodec, error) { return NewLabelCodec(b.Labels) }

// Normalize applies the bundle's scaling to a raw feature vector. With
// ScalingNone it only checks the dimension and returns a copy.
func (b *Bundle) Normalize(v []float64) ([]float64, error) {
	switch b.Scaling {
	case ScalingStandard:
		return b.Normalizer.Transform(v)
	case ScalingNone:
		if err := checkDim("normalize", len(v), b.Recipe.Dim()); err != nil {
			return nil, err
		}
		return slices.Clone(v), nil
	default:
		return nil, errs.Newf(errs.KindBundleVersion, "normalize", "unknown scaling %q", b.Scaling)
	}
}

// Validate checks that the bundle's members agree with each other.
func (b *Bundle) Validate() error {
	const op = "bundle"
	if b.FormatVersion != FormatVersion {
		return errs.Newf(errs.KindBundleVersion, op, "format version %d, this build reads %d", b.FormatVersion, FormatVersion)
	}
	if err := b.Recipe.Validate(); err != nil {
		return errs.Wrap(errs.KindBundleVersion, op, "invalid recipe", err)
	}
	if b.Fingerprint != b.Recipe.Fingerprint() {
		return errs.Newf(errs.KindBundleVersion, op, "fingerprint %q does not match stored recipe %q", b.Fingerprint, b.Recipe.Fingerprint())
	}
	dim := b.Recipe.Dim()

	switch b.Scaling {
	case ScalingStandard:
		if b.Normalizer == nil {
			return errs.New(errs.KindBundleVersion, op, "standard scaling without normalizer")
		}
		if err := b.Normalizer.validate(); err != nil {
			return err
		}
		if b.Normalizer.Dim() != dim {
			return errs.Newf(errs.KindShapeMismatch, op, "normalizer has %d slots, recipe %d", b.Normalizer.Dim(), dim)
		}
	case ScalingNone:
		if b.Normalizer != nil {
			return errs.New(errs.KindBundleVersion, op, "normalizer present with scaling none")
		}
	default:
		return errs.Newf(errs.KindBundleVersion, op, "unknown scaling %q", b.Scaling)
	}

	codec, err := b.LabelCodec()
	if err != nil {
		return errs.Newf(errs.KindBundleVersion, op, "invalid labels: %s", errs.Message(err))
	}
	if b.Algorithm != AlgorithmRandomForest || b.Forest == nil {
		return errs.Newf(errs.KindBundleVersion, op, "unsupported algorithm %q", b.Algorithm)
	}
	if err := b.Forest.validate(); err != nil {
		return err
	}
	if b.Forest.NumFeatures() != dim {
		return errs.Newf(errs.KindShapeMismatch, op, "classifier takes %d features, recipe %d", b.Forest.NumFeatures(), dim)
	}
	if b.Forest.NumClasses() != codec.Len() {
		return errs.Newf(errs.KindShapeMismatch, op, "classifier has %d classes, codec %d", b.Forest.NumClasses(), codec.Len())
	}
	return nil
}

// CheckRecipe reports whether the bundle was trained with r.
func (b *Bundle) CheckRecipe(r features.Recipe) error {
	if b.Fingerprint != r.Fingerprint() {
		return errs.Newf(errs.KindBundleVersion, "bundle", "trained with recipe %q, running %q", b.Fingerprint, r.Fingerprint())
	}
	return nil
}

// bundleBody is Bundle without methods. Bundle implements
// encoding.BinaryMarshaler, which msgpack would otherwise call for the body.
type bundleBody Bundle

// Encode writes the header and msgpack body to w.
func (b *Bundle) Encode(w io.Writer) error {
	if err := b.Validate(); err != nil {
		return err
	}
	var hdr [headerLen]byte
	copy(hdr[:], Magic)
	binary.BigEndian.PutUint16(hdr[len(Magic):], b.FormatVersion)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("bundle: write header: %w", err)
	}
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode((*bundleBody)(b)); err != nil {
		return fmt.Errorf("bundle: encode: %w", err)
	}
	return nil
}

// MarshalBinary returns the encoded bundle.
func (b *Bundle) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data with DecodeBundle into b.
func (b *Bundle) UnmarshalBinary(data []byte) error {
	got, err := DecodeBundle(data)
	if err != nil {
		return err
	}
	*b = *got
	return nil
}

// DecodeBundle parses and validates an encoded bundle. A wrong magic, an
// unknown format version or inconsistent members yield KindBundleVersion.
func DecodeBundle(data []byte) (*Bundle, error) {
	const op = "bundle.decode"
	if len(data) < headerLen || string(data[:len(Magic)]) != Magic {
		return nil, errs.New(errs.KindBundleVersion, op, "not a noisemap bundle")
	}
	if v := binary.BigEndian.Uint16(data[len(Magic):headerLen]); v != FormatVersion {
		return nil, errs.Newf(errs.KindBundleVersion, op, "format version %d, this build reads %d", v, FormatVersion)
	}
	var b Bundle
	if err := msgpack.Unmarshal(data[headerLen:], (*bundleBody)(&b)); err != nil {
		return nil, errs.Wrap(errs.KindBundleVersion, op, "corrupt bundle body", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Summary is a JSON-friendly description of a bundle.
type Summary struct {
	FormatVersion uint16         `json:"format_version" yaml:"format_version"`
	Recipe        string         `json:"recipe" yaml:"recipe"`
	Dim           int            `json:"dim" yaml:"dim"`
	SampleRate    int            `json:"sample_rate" yaml:"sample_rate"`
	Scaling       Scaling        `json:"scaling" yaml:"scaling"`
	Algorithm     string         `json:"algorithm" yaml:"algorithm"`
	Trees         int            `json:"trees" yaml:"trees"`
	Labels        []string       `json:"labels" yaml:"labels"`
	Samples       int            `json:"samples" yaml:"samples"`
	ClassCounts   map[string]int `json:"class_counts" yaml:"class_counts"`
	HoldOut       *float64       `json:"holdout_accuracy,omitempty" yaml:"holdout_accuracy,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
}

// Summary returns the bundle description served by the model endpoint.
func (b *Bundle) Summary() Summary {
	s := Summary{
		FormatVersion: b.FormatVersion,
		Recipe:        b.Fingerprint,
		Dim:           b.Recipe.Dim(),
		SampleRate:    b.Recipe.SampleRate,
		Scaling:       b.Scaling,
		Algorithm:     b.Algorithm,
		Labels:        slices.Clone(b.Labels),
		Samples:       b.Meta.Samples,
		ClassCounts:   maps.Clone(b.Meta.ClassCounts),
		HoldOut:       b.Meta.HoldOutAccuracy,
		CreatedAt:     b.Meta.CreatedAt,
	}
	if b.Forest != nil {
		s.Trees = len(b.Forest.Trees)
	}
	return s
}
