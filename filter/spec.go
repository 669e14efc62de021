package filter

import (
	"fmt"
	"slices"
)

// Collection is a queryable set of records a filter constrains.
type Collection interface {
	// All returns the unfiltered scope.
	All() Scope
}

// Scope is a query over a collection. Filter narrows it with query kwargs
// whose keys are "name" or "name__operator".
type Scope interface {
	Filter(kwargs map[string]any) Scope
}

type entry struct {
	key   string
	seq   int
	field FieldSpec
}

// Spec is the frozen declaration of a filter: its ordered fields, the
// collection it constrains, and the name its state is stored under.
// A Spec is safe for concurrent use; it is never mutated after Build.
type Spec struct {
	name   string
	target Collection
	fields []entry
}

// Name returns the identity name, used as the session key.
func (s *Spec) Name() string { return s.name }

// Target returns the collection the filter constrains.
func (s *Spec) Target() Collection { return s.target }

// Len returns the number of declared fields.
func (s *Spec) Len() int { return len(s.fields) }

// Keys returns the field keys in declaration order.
func (s *Spec) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, e := range s.fields {
		keys[i] = e.key
	}
	return keys
}

// Field returns a copy of the field declared under key.
func (s *Spec) Field(key string) (FieldSpec, bool) {
	for _, e := range s.fields {
		if e.key == key {
			return e.field.Clone(), true
		}
	}
	return nil, false
}

// clone returns fresh copies of every field, in order.
func (s *Spec) clone() []entry {
	out := make([]entry, len(s.fields))
	for i, e := range s.fields {
		out[i] = entry{key: e.key, seq: e.seq, field: e.field.Clone()}
	}
	return out
}

// Builder collects field declarations for a filter. Fields are ordered by
// the sequence in which Field and Include are called.
type Builder struct {
	name   string
	target Collection
	fields []entry
	seq    int
	errs   []error
}

// Define starts the declaration of a filter named name.
func Define(name string) *Builder {
	return &Builder{name: name}
}

// Target sets the collection the filter constrains.
func (b *Builder) Target(c Collection) *Builder {
	b.target = c
	return b
}

// Field declares f under key. The field is copied; later changes to f do
// not affect the declaration. An unset query name defaults to key.
func (b *Builder) Field(key string, f FieldSpec) *Builder {
	if f == nil || isNilPointer(f) {
		b.errs = append(b.errs, &ConfigurationError{Type: b.name, Field: key, Reason: "field is nil"})
		return b
	}
	c := f.Clone()
	if c.Options().Name == "" {
		c.Options().Name = key
	}
	b.fields = append(b.fields, entry{key: key, seq: b.seq, field: c})
	b.seq++
	return b
}

// Include declares every field of another spec, in its order, at this point.
func (b *Builder) Include(s *Spec) *Builder {
	if s == nil {
		b.errs = append(b.errs, &ConfigurationError{Type: b.name, Reason: "included spec is nil"})
		return b
	}
	for _, e := range s.fields {
		b.fields = append(b.fields, entry{key: e.key, seq: b.seq, field: e.field.Clone()})
		b.seq++
	}
	return b
}

// Build validates the declaration and returns the frozen spec.
func (b *Builder) Build() (*Spec, error) {
	if b.name == "" {
		return nil, &ConfigurationError{Type: "Filter", Reason: "name must be specified"}
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.target == nil {
		return nil, &ConfigurationError{Type: b.name, Reason: "target collection must be specified"}
	}
	seen := make(map[string]bool, len(b.fields))
	for _, e := range b.fields {
		if seen[e.key] {
			return nil, &ConfigurationError{Type: b.name, Field: e.key, Reason: "declared more than once"}
		}
		seen[e.key] = true
	}

	fields := slices.Clone(b.fields)
	slices.SortStableFunc(fields, func(x, y entry) int { return x.seq - y.seq })
	return &Spec{name: b.name, target: b.target, fields: fields}, nil
}

// MustBuild is like Build but panics on a configuration error. It suits
// package-level declarations, where a misconfigured filter must stop the
// process before it serves requests.
func (b *Builder) MustBuild() *Spec {
	s, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("filter: %v", err))
	}
	return s
}
