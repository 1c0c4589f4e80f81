package model

import (
	"bytes"
	"encoding/binary"
	"slices"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/features"
)

func newTestBundle(t *testing.T, scaled bool) *Bundle {
	t.Helper()
	recipe := features.Canonical()
	x, y := blobs(9, 40, recipe.Dim(), 2)
	codec, err := FitLabelCodec([]string{"drilling", "traffic"})
	if err != nil {
		t.Fatal(err)
	}
	var norm *Normalizer
	if scaled {
		if norm, err = FitNormalizer(x); err != nil {
			t.Fatal(err)
		}
		if x, err = norm.TransformAll(x); err != nil {
			t.Fatal(err)
		}
	}
	cfg := DefaultForestConfig()
	cfg.NumTrees = 5
	forest, err := FitForest(t.Context(), x, y, 2, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBundle(recipe, norm, codec, forest, Metadata{
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Samples:     40,
		ClassCounts: map[string]int{"drilling": 20, "traffic": 20},
		Forest:      cfg,
	})
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	return b
}

func TestBundleRoundTrip(t *testing.T) {
	b := newTestBundle(t, true)
	if b.Scaling != ScalingStandard {
		t.Fatalf("Scaling = %q", b.Scaling)
	}
	data, err := b.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:8]) != Magic {
		t.Fatalf("header = %q", data[:8])
	}

	got, err := DecodeBundle(data)
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	if got.Fingerprint != features.Canonical().Fingerprint() {
		t.Errorf("Fingerprint = %q", got.Fingerprint)
	}
	if !slices.Equal(got.Labels, []string{"drilling", "traffic"}) {
		t.Errorf("Labels = %v", got.Labels)
	}
	if len(got.Forest.Trees) != len(b.Forest.Trees) || got.Forest.NumFeatures() != b.Recipe.Dim() {
		t.Errorf("Forest = %d trees over %d features", len(got.Forest.Trees), got.Forest.NumFeatures())
	}
	if got.Meta.Samples != 40 || got.Meta.ClassCounts["traffic"] != 20 || !got.Meta.CreatedAt.Equal(b.Meta.CreatedAt) {
		t.Errorf("Meta = %+v", got.Meta)
	}
	if err := got.CheckRecipe(features.Canonical()); err != nil {
		t.Errorf("CheckRecipe: %v", err)
	}

	x, _ := blobs(10, 10, b.Recipe.Dim(), 2)
	for _, row := range x {
		na, err := b.Normalize(row)
		if err != nil {
			t.Fatal(err)
		}
		nb, err := got.Normalize(row)
		if err != nil {
			t.Fatal(err)
		}
		pa, _ := b.Classifier().Probabilities(na)
		pb, _ := got.Classifier().Probabilities(nb)
		if !slices.Equal(pa, pb) {
			t.Fatalf("decoded bundle predicts %v, original %v", pb, pa)
		}
	}
}

func TestBundleEncodeBody(t *testing.T) {
	b := newTestBundle(t, true)
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()
	if got := binary.BigEndian.Uint16(data[len(Magic):headerLen]); got != FormatVersion {
		t.Fatalf("version = %d", got)
	}

	// The body is a plain msgpack map, not a nested binary blob.
	var body map[string]any
	if err := msgpack.Unmarshal(data[headerLen:], &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["fingerprint"] != b.Fingerprint || body["algorithm"] != AlgorithmRandomForest {
		t.Errorf("body fingerprint = %v, algorithm = %v", body["fingerprint"], body["algorithm"])
	}

	again, err := b.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Error("MarshalBinary differs from Encode")
	}
}

func TestBundleAsField(t *testing.T) {
	type envelope struct {
		Name   string  `msgpack:"name"`
		Bundle *Bundle `msgpack:"bundle"`
	}
	b := newTestBundle(t, false)
	data, err := msgpack.Marshal(envelope{Name: "prod", Bundle: b})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got envelope
	if err := msgpack.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != "prod" || got.Bundle == nil {
		t.Fatalf("envelope = %+v", got)
	}
	if got.Bundle.Fingerprint != b.Fingerprint || !slices.Equal(got.Bundle.Labels, b.Labels) {
		t.Errorf("bundle = %s %v", got.Bundle.Fingerprint, got.Bundle.Labels)
	}
}

func TestBundleScalingNone(t *testing.T) {
	b := newTestBundle(t, false)
	if b.Scaling != ScalingNone || b.Normalizer != nil {
		t.Fatalf("Scaling = %q, Normalizer = %v", b.Scaling, b.Normalizer)
	}
	v := make([]float64, b.Recipe.Dim())
	v[0] = 3
	out, err := b.Normalize(v)
	if err != nil || !slices.Equal(out, v) {
		t.Fatalf("Normalize = %v, %v", out, err)
	}
	out[0] = 4
	if v[0] != 3 {
		t.Error("Normalize returned its input slice")
	}
	if _, err := b.Normalize(v[:10]); !errs.Is(err, errs.KindShapeMismatch) {
		t.Errorf("short vector = %v", err)
	}

	data, err := b.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeBundle(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scaling != ScalingNone || got.Normalizer != nil {
		t.Errorf("decoded Scaling = %q", got.Scaling)
	}
}

func TestDecodeBundleRejects(t *testing.T) {
	data, err := newTestBundle(t, true).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	future := slices.Clone(data)
	binary.BigEndian.PutUint16(future[len(Magic):], FormatVersion+1)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("PK\x03\x04xxxx"), data[8:]...)},
		{"future version", future},
		{"truncated body", data[:len(data)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBundle(tt.data)
			if !errs.Is(err, errs.KindBundleVersion) {
				t.Errorf("err = %v, want bundle_version", err)
			}
		})
	}
}

func TestBundleValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Bundle)
	}{
		{"normalizer with none", func(b *Bundle) { b.Scaling = ScalingNone }},
		{"standard without normalizer", func(b *Bundle) { b.Normalizer = nil }},
		{"unknown scaling", func(b *Bundle) { b.Scaling = "minmax" }},
		{"fingerprint drift", func(b *Bundle) { b.Recipe = b.Recipe.WithSampleRate(16000) }},
		{"label count", func(b *Bundle) { b.Labels = []string{"drilling", "siren", "traffic"} }},
		{"algorithm", func(b *Bundle) { b.Algorithm = "svm" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBundle(t, true)
			tt.mutate(b)
			if err := b.Validate(); err == nil {
				t.Error("Validate succeeded")
			}
		})
	}

	b := newTestBundle(t, true)
	if err := b.CheckRecipe(features.Canonical().WithSampleRate(44100)); !errs.Is(err, errs.KindBundleVersion) {
		t.Errorf("CheckRecipe = %v", err)
	}
}
