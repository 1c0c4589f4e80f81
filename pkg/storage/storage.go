// Package storage moves whole objects between noisemap and a blob backend:
// a directory on local disk in development, an S3 bucket in deployment.
//
// Model bundles, archived uploads and device recordings are all addressed
// by forward-slash keys such as "urban_noise_classifier.nmb" or
// "uploads/20261018/0192....wav".
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

var (
	// ErrNotFound is wrapped by Get when the key has no object.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidKey is returned for keys that are empty, absolute, or
	// would resolve outside the store.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// BlobStore stores byte slices under keys. Implementations are safe for
// concurrent use.
type BlobStore interface {
	// Get returns the object at key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes data to key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key has an object.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ContentType returns the media type stored with an object. Known audio
// and bundle extensions win over sniffing.
func ContentType(key string, data []byte) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".nmb":
		return "application/vnd.noisemap.bundle"
	}
	return http.DetectContentType(data)
}

func validKey(key string) error {
	switch {
	case key == "", key[0] == '/', strings.ContainsRune(key, '\\'):
	case path.Clean(key) != key:
	case key == "..", strings.HasPrefix(key, "../"):
	default:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKey, key)
}

// validPrefix accepts "" or anything that is a valid key once a trailing
// slash is dropped.
func validPrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validKey(strings.TrimSuffix(prefix, "/"))
}

func opError(op, key string, err error) error {
	return fmt.Errorf("storage: %s %s: %w", op, key, err)
}
