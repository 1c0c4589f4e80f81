package records

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Badger is a Store implementation backed by BadgerDB v4.
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("records: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogLogger{logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("records: open badger: %w", err)
	}
	return &Badger{db: db, now: time.Now}, nil
}

func (b *Badger) Put(_ context.Context, r *Record) error {
	if err := prepare(r, b.now); err != nil {
		return err
	}
	if err := validID(r.ID); err != nil {
		return err
	}
	val, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}
	key := recordKey(r.Timestamp, r.ID)
	return b.db.Update(func(txn *badger.Txn) error {
		// Replacing a record with a new timestamp moves its key.
		item, err := txn.Get(idKey(r.ID))
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !bytes.Equal(old, key) {
				if err := txn.Delete(old); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set(idKey(r.ID), key)
	})
}

func (b *Badger) Get(_ context.Context, id string) (*Record, error) {
	var r Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if item, err = txn.Get(key); err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (b *Badger) Range(ctx context.Context, since time.Time, limit int) ([]Record, error) {
	lower := sinceKey(since)
	var out []Record
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(recordPrefix)
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// In reverse mode Seek finds the largest key <= the target.
		for it.Seek([]byte(recordPrefix + "\xff")); it.ValidForPrefix([]byte(recordPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if bytes.Compare(item.Key(), lower) < 0 {
				break
			}
			var r Record
			err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &r)
			})
			if err != nil {
				slog.Warn("records: skipping malformed record", "key", string(item.KeyCopy(nil)), "error", err)
				continue
			}
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (b *Badger) Prune(_ context.Context, before time.Time) (int, error) {
	upper := sinceKey(before)
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(recordPrefix)
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek([]byte(recordPrefix)); it.ValidForPrefix([]byte(recordPrefix)); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, upper) >= 0 {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
		if id := key[bytes.LastIndexByte(key, ':')+1:]; len(id) > 0 {
			if err := wb.Delete(idKey(string(id))); err != nil {
				return 0, err
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

var _ Store = (*Badger)(nil)

// slogLogger routes badger's logging to slog. Badger's info output is
// demoted to debug.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Errorf(f string, v ...any)   { s.l.Error(trim(f, v)) }
func (s slogLogger) Warningf(f string, v ...any) { s.l.Warn(trim(f, v)) }
func (s slogLogger) Infof(f string, v ...any)    { s.l.Debug(trim(f, v)) }
func (s slogLogger) Debugf(f string, v ...any)   { s.l.Debug(trim(f, v)) }

func trim(f string, v []any) string {
	return strings.TrimSpace(fmt.Sprintf(f, v...))
}
