package filter

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/alfredjeanlab/dynfilter/form"
)

// ErrNotFound is returned by a Lookup when no record has the requested key.
var ErrNotFound = form.ErrNotFound

// ConfigurationError reports a filter or field declared with missing or
// invalid options. It is raised while declarations are built, never while
// serving a request.
type ConfigurationError struct {
	Type   string // declaring type, e.g. "ReferenceField" or a filter name
	Field  string // offending field key, if any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// Keyed is implemented by records that can be stored by primary key.
type Keyed interface {
	Key() any
}

// Lookup resolves a stored key back into its record.
type Lookup interface {
	FindByKey(ctx context.Context, key any) (any, error)
}

// Options are the declared attributes of a field.
type Options struct {
	Input      form.Input
	Operator   string // appended to Name as "name__operator" in query kwargs
	ForceEmpty bool   // include empty values in query kwargs
	Name       string // query name; defaults to the declaring key
}

// FieldSpec is a declared filter field with its rendering and storage hooks.
type FieldSpec interface {
	Options() *Options
	// RenderOperator returns the query kwargs key for this field.
	RenderOperator() string
	// RenderValue transforms the current value before it enters query kwargs.
	RenderValue(v any) any
	// Store converts a value into what is persisted in the session.
	Store(v any) any
	// Unstore converts a persisted value back into the field's value.
	Unstore(ctx context.Context, v any) (any, error)
	// Clone returns a deep copy, including the input.
	Clone() FieldSpec
}

// FieldOption configures a field at declaration.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	opts   Options
	render func(any) any
}

// WithOperator sets the comparison suffix, e.g. "gte" or "icontains".
func WithOperator(op string) FieldOption {
	return func(c *fieldConfig) { c.opts.Operator = op }
}

// WithForceEmpty keeps the field in query kwargs even when its value is empty.
func WithForceEmpty() FieldOption {
	return func(c *fieldConfig) { c.opts.ForceEmpty = true }
}

// WithName sets the query name instead of defaulting to the declaring key.
func WithName(name string) FieldOption {
	return func(c *fieldConfig) { c.opts.Name = name }
}

// WithRenderValue installs a transform applied to values entering query kwargs.
func WithRenderValue(fn func(any) any) FieldOption {
	return func(c *fieldConfig) { c.render = fn }
}

func checkInput(typ string, in form.Input) error {
	if in == nil {
		return &ConfigurationError{Type: typ, Reason: "input must be specified"}
	}
	if isNilPointer(in) {
		return &ConfigurationError{Type: typ, Reason: fmt.Sprintf("input must be a valid form input, got nil %T", in)}
	}
	return nil
}

// isNilPointer reports whether v is a typed nil pointer.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Field is a plain filter field: its value is stored in the session as-is.
type Field struct {
	opts   Options
	render func(any) any
}

var _ FieldSpec = (*Field)(nil)

// NewField declares a field over input.
func NewField(input form.Input, opts ...FieldOption) (*Field, error) {
	if err := checkInput("Field", input); err != nil {
		return nil, err
	}
	c := fieldConfig{opts: Options{Input: input}}
	for _, o := range opts {
		o(&c)
	}
	return &Field{opts: c.opts, render: c.render}, nil
}

// MustField is like NewField but panics on a configuration error.
func MustField(input form.Input, opts ...FieldOption) *Field {
	f, err := NewField(input, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Field) Options() *Options { return &f.opts }

func (f *Field) RenderOperator() string { return renderOperator(&f.opts) }

func (f *Field) RenderValue(v any) any {
	if f.render != nil {
		return f.render(v)
	}
	return v
}

func (f *Field) Store(v any) any { return v }

func (f *Field) Unstore(_ context.Context, v any) (any, error) { return v, nil }

func (f *Field) Clone() FieldSpec {
	c := *f
	c.opts.Input = f.opts.Input.Clone()
	return &c
}

func renderOperator(o *Options) string {
	if o.Operator == "" {
		return o.Name
	}
	return o.Name + "__" + o.Operator
}

// ReferenceField stores a record by its key and resolves it again through
// its lookup when the value is read back.
type ReferenceField struct {
	Field
	lookup Lookup
}

var _ FieldSpec = (*ReferenceField)(nil)

// NewReferenceField declares a field whose values are records of lookup.
func NewReferenceField(input form.Input, lookup Lookup, opts ...FieldOption) (*ReferenceField, error) {
	if err := checkInput("ReferenceField", input); err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, &ConfigurationError{Type: "ReferenceField", Reason: "lookup collection must be specified"}
	}
	c := fieldConfig{opts: Options{Input: input}}
	for _, o := range opts {
		o(&c)
	}
	return &ReferenceField{Field: Field{opts: c.opts, render: c.render}, lookup: lookup}, nil
}

// MustReferenceField is like NewReferenceField but panics on a configuration error.
func MustReferenceField(input form.Input, lookup Lookup, opts ...FieldOption) *ReferenceField {
	f, err := NewReferenceField(input, lookup, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Lookup returns the collection keys are resolved against.
func (f *ReferenceField) Lookup() Lookup { return f.lookup }

// Store returns the record's key, or nil for an empty value.
func (f *ReferenceField) Store(v any) any {
	if !Truthy(v) {
		return nil
	}
	if k, ok := v.(Keyed); ok {
		return k.Key()
	}
	return v
}

// Unstore resolves a stored key. A key whose record no longer exists reads
// back as nil.
func (f *ReferenceField) Unstore(ctx context.Context, v any) (any, error) {
	if !Truthy(v) {
		return nil, nil
	}
	rec, err := f.lookup.FindByKey(ctx, v)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s %v: %w", f.opts.Name, v, err)
	}
	return rec, nil
}

func (f *ReferenceField) Clone() FieldSpec {
	c := *f
	c.opts.Input = f.opts.Input.Clone()
	return &c
}
