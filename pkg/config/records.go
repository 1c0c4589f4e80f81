package config

import (
	"fmt"
	"log/slog"

	"github.com/haivivi/noisemap/pkg/records"
)

// Open opens the configured record store.
func (c RecordsConfig) Open() (records.Store, error) {
	switch c.Backend {
	case RecordsBadger:
		return records.NewBadger(records.BadgerOptions{
			Dir:      c.Dir,
			InMemory: c.InMemory,
			Logger:   slog.Default(),
		})
	case RecordsMemory, "":
		return records.NewMemory(), nil
	default:
		return nil, fmt.Errorf("config: unknown records.backend %q", c.Backend)
	}
}
