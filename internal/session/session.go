// Package session stores per-visitor filter state between requests.
//
// A Session is loaded by Middleware at the start of a request, handed to
// filter instances through the request context, and written back to its
// Backend when something changed it.
package session

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/alfredjeanlab/dynfilter/filter"
)

// ErrNotFound is returned by Backend.Load for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Data is the stored form of a session: filter values keyed by filter name.
type Data map[string]map[string]any

// Clone copies d and each filter's value map.
func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	c := make(Data, len(d))
	for k, v := range d {
		c[k] = maps.Clone(v)
	}
	return c
}

// Record is one stored session, as listed for maintenance.
type Record struct {
	ID        string    `json:"id"`
	Data      Data      `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Backend persists session data by session id. Concurrent saves to the same
// id are last-write-wins.
type Backend interface {
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is the in-request view of one visitor's stored filter state.
type Session struct {
	mu       sync.Mutex
	id       string
	data     Data
	modified bool
	isNew    bool
}

var _ filter.Session = (*Session)(nil)

// New wraps data loaded for id.
func New(id string, data Data) *Session {
	return &Session{id: id, data: data.Clone()}
}

func newEmpty(id string) *Session {
	return &Session{id: id, data: Data{}, isNew: true}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

// Get returns the values stored for a filter.
func (s *Session) Get(key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set replaces the values stored for a filter.
func (s *Session) Set(key string, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = maps.Clone(values)
}

// Delete removes a filter's values.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.modified = true
	}
}

// MarkModified flags the session to be saved.
func (s *Session) MarkModified() {
	s.mu.Lock()
	s.modified = true
	s.mu.Unlock()
}

// Modified reports whether the session needs saving.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// Data returns a copy of everything in the session.
func (s *Session) Data() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

type ctxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session installed by Middleware, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
