package classify_test

import (
	"slices"
	"testing"

	"github.com/haivivi/noisemap/pkg/classify"
	"github.com/haivivi/noisemap/pkg/classify/classifytest"
	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
	"github.com/haivivi/noisemap/pkg/storage"
)

func TestLoad(t *testing.T) {
	ctx := t.Context()
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := classify.Load(ctx, blobs, model.DefaultBundleKey, features.Canonical()); !errs.Is(err, errs.KindBundleVersion) {
		t.Fatalf("missing bundle: err = %v, want bundle_version", err)
	}

	data, err := classifytest.Bundle(t).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if err := blobs.Put(ctx, model.DefaultBundleKey, data); err != nil {
		t.Fatal(err)
	}
	svc, err := classify.Load(ctx, blobs, model.DefaultBundleKey, features.Canonical())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := svc.Classify(ctx, classifytest.WAV(t, "traffic", 9))
	if err != nil {
		t.Fatal(err)
	}
	if res.Label != "traffic" {
		t.Errorf("label = %q, want traffic", res.Label)
	}

	if _, err := classify.Load(ctx, blobs, model.DefaultBundleKey, features.Canonical().WithSampleRate(16000)); !errs.Is(err, errs.KindBundleVersion) {
		t.Errorf("recipe drift: err = %v, want bundle_version", err)
	}

	b, err := classify.LoadBundle(ctx, blobs, model.DefaultBundleKey)
	if err != nil {
		t.Fatal(err)
	}
	want := classifytest.Bundle(t)
	if b.Fingerprint != want.Fingerprint || !slices.Equal(b.Labels, classifytest.Classes) {
		t.Errorf("loaded bundle %s %v", b.Fingerprint, b.Labels)
	}

	if err := blobs.Put(ctx, "broken.nmb", []byte("NOISEMAP\x00\x09rest")); err != nil {
		t.Fatal(err)
	}
	if _, err := classify.LoadBundle(ctx, blobs, "broken.nmb"); !errs.Is(err, errs.KindBundleVersion) {
		t.Errorf("future version: err = %v, want bundle_version", err)
	}
}
