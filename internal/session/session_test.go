package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/dynfilter/internal/idgen"
)

func TestSession_SetGetDelete(t *testing.T) {
	s := New("fs-1", Data{"Open": {"status": "open"}})
	if s.Modified() {
		t.Fatal("loaded session should start clean")
	}

	values := map[string]any{"status": "closed"}
	s.Set("Open", values)
	values["status"] = "mutated"
	got, ok := s.Get("Open")
	if !ok || got["status"] != "closed" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if s.Modified() {
		t.Error("Set alone should not mark the session modified")
	}

	s.Delete("missing")
	if s.Modified() {
		t.Error("deleting a missing key should not modify")
	}
	s.Delete("Open")
	if !s.Modified() {
		t.Error("Delete should mark the session modified")
	}
	if _, ok := s.Get("Open"); ok {
		t.Error("Open should be gone")
	}
}

func TestSession_DataIsCopy(t *testing.T) {
	s := New("fs-1", Data{"Open": {"status": "open"}})
	d := s.Data()
	d["Open"]["status"] = "mutated"
	if got, _ := s.Get("Open"); got["status"] != "open" {
		t.Errorf("session changed through Data(): %v", got)
	}
}

func TestMemoryBackend_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryBackend()
	m.now = func() time.Time { return now }

	if _, err := m.Load(ctx, "fs-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty backend = %v, want ErrNotFound", err)
	}

	data := Data{"Open": {"status": "open"}}
	if err := m.Save(ctx, "fs-1", data, time.Hour); err != nil {
		t.Fatal(err)
	}
	data["Open"]["status"] = "mutated"

	got, err := m.Load(ctx, "fs-1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Data{"Open": {"status": "open"}}, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	now = now.Add(time.Hour)
	if _, err := m.Load(ctx, "fs-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after expiry = %v, want ErrNotFound", err)
	}
	if m.Len() != 0 {
		t.Errorf("expired entry not evicted, Len = %d", m.Len())
	}
}

func TestMemoryBackend_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	if err := m.Save(ctx, "fs-1", Data{}, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "fs-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(ctx, "fs-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete = %v", err)
	}
}

// touch is a handler that writes a filter value into the session.
func touch(value string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "no session", http.StatusInternalServerError)
			return
		}
		if value != "" {
			s.Set("Open", map[string]any{"status": value})
			s.MarkModified()
		}
		w.WriteHeader(http.StatusOK)
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "dynfilter_session" {
			return c
		}
	}
	return nil
}

func TestMiddleware_NewSessionSaved(t *testing.T) {
	backend := NewMemoryBackend()
	h := Middleware(backend, Options{}, touch("open"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	c := sessionCookie(t, rec)
	if c == nil {
		t.Fatal("expected a session cookie")
	}
	if !idgen.ValidSessionID(c.Value) || !c.HttpOnly {
		t.Errorf("cookie = %+v", c)
	}
	data, err := backend.Load(context.Background(), c.Value)
	if err != nil {
		t.Fatalf("session not saved: %v", err)
	}
	if data["Open"]["status"] != "open" {
		t.Errorf("saved data = %v", data)
	}
}

func TestMiddleware_UnmodifiedNotSaved(t *testing.T) {
	backend := NewMemoryBackend()
	h := Middleware(backend, Options{}, touch(""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if sessionCookie(t, rec) != nil {
		t.Error("unmodified session should not set a cookie")
	}
	if backend.Len() != 0 {
		t.Errorf("backend has %d sessions, want 0", backend.Len())
	}
}

func TestMiddleware_ExistingSession(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	id, err := idgen.NewSessionID()
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.Save(ctx, id, Data{"Open": {"status": "open"}}, time.Hour); err != nil {
		t.Fatal(err)
	}

	var seen string
	h := Middleware(backend, Options{CookieName: "sid"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := FromContext(r.Context())
		v, _ := s.Get("Open")
		seen, _ = v["status"].(string)
		s.Set("Open", map[string]any{"status": "closed"})
		s.MarkModified()
		w.Write([]byte("ok")) //nolint:errcheck
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "open" {
		t.Errorf("handler saw %q, want stored value", seen)
	}
	data, err := backend.Load(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if data["Open"]["status"] != "closed" {
		t.Errorf("saved data = %v", data)
	}
}

func TestMiddleware_ForgedCookieReplaced(t *testing.T) {
	backend := NewMemoryBackend()
	h := Middleware(backend, Options{}, touch("open"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "dynfilter_session", Value: "../../etc/passwd"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	c := sessionCookie(t, rec)
	if c == nil || !strings.HasPrefix(c.Value, idgen.SessionPrefix) {
		t.Fatalf("expected a fresh session cookie, got %+v", c)
	}
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) Load(context.Context, string) (Data, error) {
	return nil, errors.New("connection refused")
}

func TestMiddleware_LoadError(t *testing.T) {
	id, _ := idgen.NewSessionID()
	h := Middleware(failingBackend{NewMemoryBackend()}, Options{}, touch("open"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "dynfilter_session", Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMemoryBackend_ListAndPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryBackend()
	m.now = func() time.Time { return now }

	for id, ttl := range map[string]time.Duration{"fs-b": time.Hour, "fs-a": 2 * time.Hour, "fs-c": time.Minute} {
		if err := m.Save(ctx, id, Data{"Open": {"id": id}}, ttl); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(30 * time.Minute)

	recs, err := m.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"fs-a", "fs-b"}, ids); diff != "" {
		t.Errorf("List ids mismatch (-want +got):\n%s", diff)
	}

	n, err := m.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || m.Len() != 2 {
		t.Errorf("purged %d, %d left", n, m.Len())
	}
}
