package filter

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/dynfilter/form"
)

// memSession is a map-backed Session.
type memSession struct {
	data     map[string]map[string]any
	modified bool
}

func newMemSession() *memSession {
	return &memSession{data: map[string]map[string]any{}}
}

func (s *memSession) Get(key string) (map[string]any, bool) {
	v, ok := s.data[key]
	return v, ok
}
func (s *memSession) Set(key string, v map[string]any) { s.data[key] = maps.Clone(v) }
func (s *memSession) Delete(key string)                { delete(s.data, key) }
func (s *memSession) MarkModified()                    { s.modified = true }

type fakeRequest struct {
	method  string
	query   url.Values
	post    url.Values
	postErr error
	sess    Session
}

func (r *fakeRequest) Method() string                { return r.method }
func (r *fakeRequest) Query() url.Values             { return r.query }
func (r *fakeRequest) PostForm() (url.Values, error) { return r.post, r.postErr }
func (r *fakeRequest) Session() Session              { return r.sess }

func get(s Session) *fakeRequest {
	return &fakeRequest{method: http.MethodGet, query: url.Values{}, sess: s}
}

func post(s Session, data url.Values) *fakeRequest {
	return &fakeRequest{method: http.MethodPost, query: url.Values{}, post: data, sess: s}
}

// fakeScope records every Filter call.
type fakeScope struct {
	applied []map[string]any
}

func (s *fakeScope) Filter(kwargs map[string]any) Scope {
	return &fakeScope{applied: append(append([]map[string]any{}, s.applied...), kwargs)}
}

type fakeCollection struct{}

func (fakeCollection) All() Scope { return &fakeScope{} }

type record struct {
	ID    string
	Title string
}

func (r *record) Key() any { return r.ID }

type fakeLookup struct {
	records map[string]*record
	err     error
	calls   int
}

func (l *fakeLookup) FindByKey(_ context.Context, key any) (any, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	s, _ := key.(string)
	r, ok := l.records[s]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func statusSpec(t *testing.T, opts ...FieldOption) *Spec {
	t.Helper()
	in := form.NewChoice([]string{"", "open", "closed"}, "")
	return Define("IssueFilter").
		Target(fakeCollection{}).
		Field("status", MustField(in, opts...)).
		MustBuild()
}

func TestDeclarationOrder(t *testing.T) {
	base := Define("Base").
		Target(fakeCollection{}).
		Field("zeta", MustField(form.NewString(""))).
		Field("alpha", MustField(form.NewString(""))).
		MustBuild()

	spec := Define("Child").
		Target(fakeCollection{}).
		Field("mid", MustField(form.NewString(""))).
		Include(base).
		Field("beta", MustField(form.NewString(""))).
		MustBuild()

	want := []string{"mid", "zeta", "alpha", "beta"}
	if diff := cmp.Diff(want, spec.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	inst, err := New(context.Background(), spec, get(newMemSession()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got []string
	for _, f := range inst.Form().Fields() {
		got = append(got, f.Name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("form field order mismatch (-want +got):\n%s", diff)
	}
}

func TestNameDefaultsToKey(t *testing.T) {
	spec := Define("F").
		Target(fakeCollection{}).
		Field("owner", MustField(form.NewString(""))).
		Field("who", MustField(form.NewString(""), WithName("assignee"))).
		MustBuild()

	f, _ := spec.Field("owner")
	if f.Options().Name != "owner" {
		t.Errorf("Name = %q, want owner", f.Options().Name)
	}
	f, _ = spec.Field("who")
	if f.Options().Name != "assignee" {
		t.Errorf("Name = %q, want assignee", f.Options().Name)
	}
}

func TestConfigurationErrors(t *testing.T) {
	var nilInput *form.String
	lookup := &fakeLookup{}

	for _, tc := range []struct {
		name string
		fn   func() error
	}{
		{"field without input", func() error { _, err := NewField(nil); return err }},
		{"field with typed nil input", func() error { _, err := NewField(nilInput); return err }},
		{"reference without input", func() error { _, err := NewReferenceField(nil, lookup); return err }},
		{"reference without lookup", func() error { _, err := NewReferenceField(form.NewString(""), nil); return err }},
		{"filter without name", func() error { _, err := Define("").Target(fakeCollection{}).Build(); return err }},
		{"filter without target", func() error { _, err := Define("F").Build(); return err }},
		{"nil field", func() error { _, err := Define("F").Target(fakeCollection{}).Field("x", nil).Build(); return err }},
		{"typed nil field", func() error {
			var f *Field
			_, err := Define("F").Target(fakeCollection{}).Field("x", f).Build()
			return err
		}},
		{"typed nil reference field", func() error {
			var f *ReferenceField
			_, err := Define("F").Target(fakeCollection{}).Field("x", f).Build()
			return err
		}},
		{"nil include", func() error { _, err := Define("F").Target(fakeCollection{}).Include(nil).Build(); return err }},
		{"duplicate key", func() error {
			_, err := Define("F").Target(fakeCollection{}).
				Field("x", MustField(form.NewString(""))).
				Field("x", MustField(form.NewString(""))).
				Build()
			return err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigurationError, got %v", err)
			}
		})
	}
}

func TestMustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Define("F").MustBuild()
}

func TestRenderOperator(t *testing.T) {
	age := MustField(form.NewInteger(nil), WithName("age"), WithOperator("gte"))
	if got := age.RenderOperator(); got != "age__gte" {
		t.Errorf("RenderOperator() = %q, want age__gte", got)
	}
	plain := MustField(form.NewInteger(nil), WithName("age"))
	if got := plain.RenderOperator(); got != "age" {
		t.Errorf("RenderOperator() = %q, want age", got)
	}
}

func TestIsolation(t *testing.T) {
	spec := statusSpec(t)
	ctx := context.Background()

	a, err := New(ctx, spec, get(newMemSession()))
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New(ctx, spec, post(newMemSession(), url.Values{"status": {"closed"}}))
	if err != nil {
		t.Fatalf("New b: %v", err)
	}

	a.Form().Fields()[0].Input.SetInitial("open")
	a.Form().Fields()[0].Input.SetRequired(true)

	if got := b.Form().Fields()[0].Input.Initial(); got != "" {
		t.Errorf("instance b initial = %v, want empty", got)
	}
	if b.Form().Fields()[0].Input.Required() {
		t.Error("instance b input became required")
	}
	tmpl, _ := spec.Field("status")
	if tmpl.Options().Input.Initial() != "" || !tmpl.Options().Input.Required() {
		t.Error("spec template was mutated by an instance")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	plain := MustField(form.NewString(""))
	for _, v := range []any{"open", 3, true, nil, []string{"a", "b"}} {
		got, err := plain.Unstore(ctx, plain.Store(v))
		if err != nil {
			t.Fatalf("Unstore: %v", err)
		}
		if diff := cmp.Diff(v, got); diff != "" {
			t.Errorf("round trip of %v (-want +got):\n%s", v, diff)
		}
	}

	rec := &record{ID: "bd-1", Title: "one"}
	lookup := &fakeLookup{records: map[string]*record{"bd-1": rec}}
	ref := MustReferenceField(form.NewReference(lookup), lookup)

	if stored := ref.Store(rec); stored != "bd-1" {
		t.Errorf("Store(record) = %v, want bd-1", stored)
	}
	got, err := ref.Unstore(ctx, ref.Store(rec))
	if err != nil {
		t.Fatalf("Unstore: %v", err)
	}
	if got.(*record).Key() != rec.Key() {
		t.Errorf("Unstore(Store(rec)).Key() = %v", got.(*record).Key())
	}

	if ref.Store(nil) != nil {
		t.Error("Store(nil) should be nil")
	}
	calls := lookup.calls
	if got, err := ref.Unstore(ctx, nil); got != nil || err != nil {
		t.Errorf("Unstore(nil) = %v, %v", got, err)
	}
	if lookup.calls != calls {
		t.Error("Unstore(nil) must not hit the lookup")
	}

	// A deleted record reads back as absent.
	if got, err := ref.Unstore(ctx, "bd-gone"); got != nil || err != nil {
		t.Errorf("Unstore(missing) = %v, %v", got, err)
	}

	lookup.err = errors.New("db down")
	if _, err := ref.Unstore(ctx, "bd-1"); err == nil {
		t.Error("lookup failures must propagate")
	}
}

func TestFirstInitPersistsDefaults(t *testing.T) {
	ctx := context.Background()
	in := form.NewChoice([]string{"open", "closed"}, "open")
	spec := Define("IssueFilter").
		Target(fakeCollection{}).
		Field("status", MustField(in)).
		Field("q", MustField(form.NewString(""))).
		MustBuild()
	sess := newMemSession()

	inst, err := New(ctx, spec, get(sess))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !inst.FirstInit() {
		t.Error("expected FirstInit on a fresh session")
	}
	if !sess.modified {
		t.Error("session should be marked modified")
	}
	want := map[string]any{"status": "open", "q": ""}
	if diff := cmp.Diff(want, sess.data["IssueFilter"]); diff != "" {
		t.Errorf("stored defaults mismatch (-want +got):\n%s", diff)
	}

	again, err := New(ctx, spec, get(sess))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if again.FirstInit() {
		t.Error("second construction must not be FirstInit")
	}
}

func TestResetClearsAndRedefaults(t *testing.T) {
	ctx := context.Background()
	in := form.NewChoice([]string{"open", "closed"}, "open")
	spec := Define("IssueFilter").Target(fakeCollection{}).Field("status", MustField(in)).MustBuild()

	sess := newMemSession()
	sess.data["IssueFilter"] = map[string]any{"status": "closed"}

	req := get(sess)
	req.query.Set(ResetParam, "IssueFilter")
	inst, err := New(ctx, spec, req)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.FirstInit() || !inst.IsReset() {
		t.Errorf("FirstInit=%v IsReset=%v", inst.FirstInit(), inst.IsReset())
	}
	if diff := cmp.Diff(map[string]any{"status": "open"}, sess.data["IssueFilter"]); diff != "" {
		t.Errorf("reset values mismatch (-want +got):\n%s", diff)
	}
}

func TestResetOfOtherFilterContinues(t *testing.T) {
	spec := statusSpec(t)
	sess := newMemSession()
	sess.data["IssueFilter"] = map[string]any{"status": "closed"}

	req := get(sess)
	req.query.Set(ResetParam, "SomethingElse")
	inst, err := New(context.Background(), spec, req)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.IsReset() {
		t.Error("reset of another filter must not reset this one")
	}
	if sess.data["IssueFilter"]["status"] != "closed" {
		t.Errorf("values = %v", sess.data["IssueFilter"])
	}
}

func TestResetIgnoresSubmission(t *testing.T) {
	spec := statusSpec(t)
	sess := newMemSession()
	sess.data["IssueFilter"] = map[string]any{"status": "closed"}

	req := post(sess, url.Values{"status": {"open"}})
	req.query.Set(ResetParam, "IssueFilter")
	inst, err := New(context.Background(), spec, req)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.Form().IsBound() {
		t.Error("a reset must render an unbound form")
	}
	if got := sess.data["IssueFilter"]["status"]; got != "" {
		t.Errorf("status = %v, want default", got)
	}
}

func TestKwargsForceEmpty(t *testing.T) {
	ctx := context.Background()

	inst, err := New(ctx, statusSpec(t), get(newMemSession()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	kwargs, err := inst.RenderQueryKwargs(ctx)
	if err != nil {
		t.Fatalf("RenderQueryKwargs: %v", err)
	}
	if len(kwargs) != 0 {
		t.Errorf("kwargs = %v, want empty", kwargs)
	}
	if active, _ := inst.IsActive(ctx); active {
		t.Error("filter with only empty values must be inactive")
	}

	forced, err := New(ctx, statusSpec(t, WithForceEmpty()), get(newMemSession()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	kwargs, err = forced.RenderQueryKwargs(ctx)
	if err != nil {
		t.Fatalf("RenderQueryKwargs: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"status": ""}, kwargs); diff != "" {
		t.Errorf("kwargs mismatch (-want +got):\n%s", diff)
	}
	if active, _ := forced.IsActive(ctx); !active {
		t.Error("ForceEmpty field must make the filter active")
	}
}

func TestKwargsDoNotWriteValues(t *testing.T) {
	ctx := context.Background()
	inst, err := New(ctx, statusSpec(t), get(newMemSession()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	delete(inst.values, "status")
	if _, err := inst.RenderQueryKwargs(ctx); err != nil {
		t.Fatalf("RenderQueryKwargs: %v", err)
	}
	if _, ok := inst.values["status"]; ok {
		t.Error("RenderQueryKwargs must not store values")
	}
}

func TestValidSubmissionPersists(t *testing.T) {
	ctx := context.Background()
	rec := &record{ID: "bd-7"}
	lookup := &fakeLookup{records: map[string]*record{"bd-7": rec}}
	spec := Define("IssueFilter").
		Target(fakeCollection{}).
		Field("status", MustField(form.NewChoice([]string{"open", "closed"}, "open"))).
		Field("priority", MustField(form.NewInteger(nil), WithOperator("lte"))).
		Field("parent", MustReferenceField(form.NewReference(lookup), lookup)).
		MustBuild()
	sess := newMemSession()

	inst, err := New(ctx, spec, post(sess, url.Values{"status": {"closed"}, "priority": {"2"}, "parent": {"bd-7"}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !inst.Form().IsValid() {
		t.Fatalf("form invalid: %v", inst.Form().Errors())
	}
	want := map[string]any{"status": "closed", "priority": 2, "parent": "bd-7"}
	if diff := cmp.Diff(want, sess.data["IssueFilter"]); diff != "" {
		t.Errorf("stored values mismatch (-want +got):\n%s", diff)
	}

	kwargs, err := inst.RenderQueryKwargs(ctx)
	if err != nil {
		t.Fatalf("RenderQueryKwargs: %v", err)
	}
	if kwargs["status"] != "closed" || kwargs["priority__lte"] != 2 || kwargs["parent"] != rec {
		t.Errorf("kwargs = %v", kwargs)
	}
}

func TestInvalidSubmissionDoesNotPersist(t *testing.T) {
	spec := Define("IssueFilter").
		Target(fakeCollection{}).
		Field("status", MustField(form.NewChoice([]string{"open", "closed"}, "open"))).
		Field("priority", MustField(form.NewInteger(nil))).
		MustBuild()
	sess := newMemSession()
	sess.data["IssueFilter"] = map[string]any{"status": "open", "priority": 1}
	before := maps.Clone(sess.data["IssueFilter"])

	inst, err := New(context.Background(), spec, post(sess, url.Values{"status": {"closed"}, "priority": {"high"}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.Form().IsValid() {
		t.Fatal("expected an invalid form")
	}
	if diff := cmp.Diff(before, sess.data["IssueFilter"]); diff != "" {
		t.Errorf("invalid submission changed stored values (-want +got):\n%s", diff)
	}
}

func TestMaterializationLookupFailure(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("db down")}
	spec := Define("F").
		Target(fakeCollection{}).
		Field("parent", MustReferenceField(form.NewReference(lookup), lookup)).
		MustBuild()
	sess := newMemSession()
	sess.data["F"] = map[string]any{"parent": "bd-1"}

	if _, err := New(context.Background(), spec, get(sess)); err == nil {
		t.Fatal("expected lookup failure from New")
	}
}

func TestRenderQuery(t *testing.T) {
	ctx := context.Background()
	spec := statusSpec(t)

	sess := newMemSession()
	inst, err := New(ctx, spec, get(sess))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	scope, err := inst.RenderQuery(ctx, map[string]any{"kind": "issue"})
	if err != nil {
		t.Fatalf("RenderQuery: %v", err)
	}
	want := []map[string]any{{"kind": "issue"}}
	if diff := cmp.Diff(want, scope.(*fakeScope).applied); diff != "" {
		t.Errorf("inactive filter applied (-want +got):\n%s", diff)
	}

	inst, err = New(ctx, spec, post(sess, url.Values{"status": {"open"}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	scope, err = inst.RenderQuery(ctx, map[string]any{"kind": "issue"})
	if err != nil {
		t.Fatalf("RenderQuery: %v", err)
	}
	want = []map[string]any{{"kind": "issue"}, {"status": "open"}}
	if diff := cmp.Diff(want, scope.(*fakeScope).applied); diff != "" {
		t.Errorf("active filter applied (-want +got):\n%s", diff)
	}

	scope, err = inst.RenderQuery(ctx, nil)
	if err != nil {
		t.Fatalf("RenderQuery: %v", err)
	}
	want = []map[string]any{{"status": "open"}}
	if diff := cmp.Diff(want, scope.(*fakeScope).applied); diff != "" {
		t.Errorf("no extra constraints (-want +got):\n%s", diff)
	}
}

func TestRenderValueHook(t *testing.T) {
	ctx := context.Background()
	upper := WithRenderValue(func(v any) any {
		s, _ := v.(string)
		return strings.ToUpper(s)
	})
	spec := Define("F").
		Target(fakeCollection{}).
		Field("q", MustField(form.NewString("abc"), upper, WithOperator("icontains"))).
		MustBuild()
	inst, err := New(ctx, spec, get(newMemSession()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	kwargs, _ := inst.RenderQueryKwargs(ctx)
	if kwargs["q__icontains"] != "ABC" {
		t.Errorf("kwargs = %v", kwargs)
	}
}

func TestTruthy(t *testing.T) {
	var nilPtr *record
	for _, tc := range []struct {
		v    any
		want bool
	}{
		{nil, false},
		{"", false},
		{"x", true},
		{false, false},
		{true, true},
		{0, false},
		{7, true},
		{0.0, false},
		{[]string{}, false},
		{[]any{"a"}, true},
		{map[string]any{}, false},
		{time.Time{}, false},
		{time.Now(), true},
		{nilPtr, false},
		{&record{}, true},
	} {
		if got := Truthy(tc.v); got != tc.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestHTTPRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/f?reset_filter=F", strings.NewReader("status=open"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess := newMemSession()
	req := HTTPRequest(r, sess)

	if req.Method() != http.MethodPost {
		t.Errorf("Method() = %q", req.Method())
	}
	if req.Query().Get(ResetParam) != "F" {
		t.Errorf("Query() = %v", req.Query())
	}
	data, err := req.PostForm()
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	if data.Get("status") != "open" {
		t.Errorf("PostForm() = %v", data)
	}
	if req.Session() != sess {
		t.Error("Session() should return the attached session")
	}
}

// multipartBody encodes fields as multipart/form-data.
func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestHTTPRequest_Multipart(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"status": "closed"})
	r := httptest.NewRequest(http.MethodPost, "/f", body)
	r.Header.Set("Content-Type", ct)

	data, err := HTTPRequest(r, newMemSession()).PostForm()
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	if data.Get("status") != "closed" {
		t.Errorf("PostForm() = %v", data)
	}
}

func TestHTTPRequest_EmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/f", nil)
	data, err := HTTPRequest(r, newMemSession()).PostForm()
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("PostForm() = %v, want empty", data)
	}
}

func TestHTTPRequest_MalformedBody(t *testing.T) {
	for _, tc := range []struct {
		name string
		ct   string
		body string
	}{
		{"bad escape", "application/x-www-form-urlencoded", "status=%zz"},
		{"multipart without boundary", "multipart/form-data", "status=open"},
		{"unsupported content type", "application/json", `{"status":"open"}`},
		{"unparseable content type", "text/;;", "status=open"},
		{"missing content type", "", "status=open"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/f", strings.NewReader(tc.body))
			if tc.ct != "" {
				r.Header.Set("Content-Type", tc.ct)
			}
			_, err := HTTPRequest(r, newMemSession()).PostForm()
			if !errors.Is(err, ErrMalformedBody) {
				t.Fatalf("expected ErrMalformedBody, got %v", err)
			}
		})
	}
}

func TestSubmissionBodies(t *testing.T) {
	spec := Define("IssueFilter").
		Target(fakeCollection{}).
		Field("q", MustField(form.NewString(""))).
		Field("priority", MustField(form.NewInteger(nil))).
		MustBuild()
	seeded := map[string]any{"q": "auth", "priority": 2}

	t.Run("malformed urlencoded keeps stored values", func(t *testing.T) {
		sess := newMemSession()
		sess.data["IssueFilter"] = maps.Clone(seeded)
		r := httptest.NewRequest(http.MethodPost, "/f", strings.NewReader("q=%zz"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		_, err := New(context.Background(), spec, HTTPRequest(r, sess))
		if !errors.Is(err, ErrMalformedBody) {
			t.Fatalf("expected ErrMalformedBody, got %v", err)
		}
		if diff := cmp.Diff(seeded, sess.data["IssueFilter"]); diff != "" {
			t.Errorf("stored values changed (-want +got):\n%s", diff)
		}
		if sess.modified {
			t.Error("session marked modified")
		}
	})

	t.Run("multipart is submitted", func(t *testing.T) {
		sess := newMemSession()
		sess.data["IssueFilter"] = maps.Clone(seeded)
		body, ct := multipartBody(t, map[string]string{"q": "login", "priority": "3"})
		r := httptest.NewRequest(http.MethodPost, "/f", body)
		r.Header.Set("Content-Type", ct)

		inst, err := New(context.Background(), spec, HTTPRequest(r, sess))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if !inst.Form().IsValid() {
			t.Fatalf("form invalid: %v", inst.Form().Errors())
		}
		want := map[string]any{"q": "login", "priority": 3}
		if diff := cmp.Diff(want, sess.data["IssueFilter"]); diff != "" {
			t.Errorf("stored values mismatch (-want +got):\n%s", diff)
		}
	})
}
