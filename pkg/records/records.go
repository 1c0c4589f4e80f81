// Package records persists predictions with their location so the heatmap
// can show what was heard where.
//
// Two Store implementations are provided: Badger (embedded, on disk or in
// memory) for the HTTP service and Memory for tests and stateless
// deployments.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("records: not found")

// Record is one stored prediction.
type Record struct {
	ID        string    `msgpack:"id" json:"id"`
	Timestamp time.Time `msgpack:"ts" json:"timestamp"`

	// Latitude and Longitude are nil when the client sent no location.
	Latitude  *float64 `msgpack:"lat,omitempty" json:"lat,omitempty"`
	Longitude *float64 `msgpack:"lng,omitempty" json:"lng,omitempty"`
	DeviceID  string   `msgpack:"device,omitempty" json:"device_id,omitempty"`

	Label      string  `msgpack:"label" json:"label"`
	Confidence float64 `msgpack:"conf" json:"confidence"`
	NoiseLevel float64 `msgpack:"level" json:"noise_level"`

	// AudioKey is the BlobStore key of the archived upload, if any.
	AudioKey string `msgpack:"audio,omitempty" json:"audio_key,omitempty"`
}

// HasLocation reports whether both coordinates are set.
func (r *Record) HasLocation() bool { return r.Latitude != nil && r.Longitude != nil }

// Store is the interface for prediction history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores r. A missing ID is filled with a time-ordered UUID and a
	// zero Timestamp with the current time.
	Put(ctx context.Context, r *Record) error

	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Range returns records at or after since, newest first, at most limit
	// of them. A limit <= 0 means no limit.
	Range(ctx context.Context, since time.Time, limit int) ([]Record, error)

	// Prune deletes records older than before and returns how many went.
	Prune(ctx context.Context, before time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// prepare fills the ID and timestamp of a record about to be stored.
func prepare(r *Record, now func() time.Time) error {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id.String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now()
	}
	r.Timestamp = r.Timestamp.UTC()
	return validTime(r.Timestamp)
}
