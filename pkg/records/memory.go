package records

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-memory Store ordered by record key.
// It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	keys [][]byte // sorted
	data map[string]Record
	ids  map[string][]byte
	now  func() time.Time
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]Record),
		ids:  make(map[string][]byte),
		now:  time.Now,
	}
}

func (m *Memory) Put(_ context.Context, r *Record) error {
	if err := prepare(r, m.now); err != nil {
		return err
	}
	if err := validID(r.ID); err != nil {
		return err
	}
	key := recordKey(r.Timestamp, r.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.ids[r.ID]; ok {
		m.remove(old)
	}
	i, _ := slices.BinarySearchFunc(m.keys, key, bytes.Compare)
	m.keys = slices.Insert(m.keys, i, key)
	m.data[string(key)] = *r
	m.ids[r.ID] = key
	return nil
}

// remove drops key from the index. Caller holds the write lock.
func (m *Memory) remove(key []byte) {
	if i, ok := slices.BinarySearchFunc(m.keys, key, bytes.Compare); ok {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	if r, ok := m.data[string(key)]; ok {
		delete(m.ids, r.ID)
		delete(m.data, string(key))
	}
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.ids[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := m.data[string(key)]
	return &r, nil
}

func (m *Memory) Range(_ context.Context, since time.Time, limit int) ([]Record, error) {
	lower := sinceKey(since)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for i := len(m.keys) - 1; i >= 0; i-- {
		if bytes.Compare(m.keys[i], lower) < 0 {
			break
		}
		out = append(out, m.data[string(m.keys[i])])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Prune(_ context.Context, before time.Time) (int, error) {
	upper := sinceKey(before)
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := slices.BinarySearchFunc(m.keys, upper, bytes.Compare)
	for _, key := range slices.Clone(m.keys[:n]) {
		m.remove(key)
	}
	return n, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
