package api

import (
	"context"
	"strings"
	"time"

	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/storage"
)

const dayLayout = "20060102"

// PruneUploads deletes archived uploads filed under a day before the UTC
// day of cutoff. Keys outside the uploads/{YYYYMMDD}/ layout are kept.
func PruneUploads(ctx context.Context, blobs storage.BlobStore, cutoff time.Time) (int, error) {
	const op = "api.prune_uploads"
	keys, err := blobs.List(ctx, UploadPrefix)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, op, "list uploads", err)
	}
	oldest := cutoff.UTC().Format(dayLayout)
	n := 0
	for _, key := range keys {
		day, _, ok := strings.Cut(strings.TrimPrefix(key, UploadPrefix), "/")
		if !ok || len(day) != len(dayLayout) {
			continue
		}
		if _, err := time.Parse(dayLayout, day); err != nil || day >= oldest {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			return n, errs.Wrap(errs.KindStorage, op, "delete upload", err)
		}
		n++
	}
	return n, nil
}

// Prune removes records older than cutoff and, when uploads are archived,
// the archive days before it.
func (p *Predictor) Prune(ctx context.Context, cutoff time.Time) (recs, uploads int, err error) {
	if p.Records != nil {
		if recs, err = p.Records.Prune(ctx, cutoff); err != nil {
			return 0, 0, errs.Wrap(errs.KindStorage, "api.prune", "prune records", err)
		}
	}
	if p.Archive && p.Blobs != nil {
		uploads, err = PruneUploads(ctx, p.Blobs, cutoff)
	}
	return recs, uploads, err
}
