package classify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/features"
	"github.com/haivivi/noisemap/pkg/model"
	"github.com/haivivi/noisemap/pkg/storage"
)

// LoadBundle fetches and decodes the bundle stored at key.
func LoadBundle(ctx context.Context, blobs storage.BlobStore, key string) (*model.Bundle, error) {
	const op = "classify.load"
	start := time.Now()
	data, err := blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.Wrap(errs.KindBundleVersion, op, "no bundle at "+key, err)
		}
		return nil, errs.Wrap(errs.KindStorage, op, "fetch bundle", err)
	}
	b, err := model.DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	slog.Info("bundle loaded",
		"key", key,
		"bytes", len(data),
		"labels", len(b.Labels),
		"recipe", b.Fingerprint,
		"elapsed", time.Since(start))
	return b, nil
}

// Load fetches the bundle at key and builds a Service on recipe r.
func Load(ctx context.Context, blobs storage.BlobStore, key string, r features.Recipe, opts ...features.FrontendOption) (*Service, error) {
	b, err := LoadBundle(ctx, blobs, key)
	if err != nil {
		return nil, err
	}
	return New(b, r, opts...)
}
