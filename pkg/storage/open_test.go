package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	store, err := Open(ctx, Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if l, ok := store.(*Local); !ok || l.Dir() != dir {
		t.Errorf("Open(local) = %T %v", store, store)
	}

	for _, cfg := range []Config{
		{Backend: BackendLocal},
		{Backend: BackendS3},
		{Backend: "gcs", Bucket: "b"},
	} {
		if _, err := Open(ctx, cfg); err == nil {
			t.Errorf("Open(%+v) = nil error", cfg)
		}
	}
}
