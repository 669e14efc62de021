package session

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	data    Data
	expires time.Time
}

// MemoryBackend keeps sessions in process memory. Sessions are lost on
// restart and are not shared between replicas.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryBackend) Load(_ context.Context, id string) (Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}
	return e.data.Clone(), nil
}

// Save stores data under id. A non-positive ttl never expires.
func (m *MemoryBackend) Save(_ context.Context, id string, data Data, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{data: data.Clone()}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[id] = e
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// List returns the live sessions ordered by id.
func (m *MemoryBackend) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]Record, 0, len(m.entries))
	for id, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			continue
		}
		out = append(out, Record{ID: id, Data: e.data.Clone(), ExpiresAt: e.expires})
	}
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// PurgeExpired drops expired sessions and returns how many were removed.
func (m *MemoryBackend) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for id, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}
