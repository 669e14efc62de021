package form

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

// For returns the messages recorded against the named field.
func (e *ValidationError) For(name string) []string {
	if e == nil {
		return nil
	}
	var msgs []string
	for _, fe := range e.Errors {
		if fe.Field == name {
			msgs = append(msgs, fe.Message)
		}
	}
	return msgs
}

// Field pairs an input with the name it is submitted under.
type Field struct {
	Name  string
	Input Input
}

// Form is an ordered set of inputs, optionally bound to submitted data.
type Form struct {
	fields  []Field
	data    url.Values
	bound   bool
	cleaned map[string]any
	errs    *ValidationError
}

// Bind builds a form over fields. When data is nil the form is unbound and
// renders initial values; otherwise every input is cleaned immediately.
//
// Invalid submissions are reported through IsValid and Errors. The returned
// error is reserved for failures unrelated to the submitted values, such as
// a lookup that could not reach its store.
func Bind(ctx context.Context, fields []Field, data url.Values) (*Form, error) {
	if data == nil {
		return Unbound(fields), nil
	}
	f := &Form{fields: fields, data: data, bound: true}
	if err := f.clean(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Unbound builds a form over fields that renders their initial values.
func Unbound(fields []Field) *Form {
	return &Form{fields: fields}
}

func (f *Form) clean(ctx context.Context) error {
	var ve ValidationError
	cleaned := make(map[string]any, len(f.fields))
	for _, fd := range f.fields {
		v, err := fd.Input.Clean(ctx, f.data[fd.Name])
		if err != nil {
			var ie invalidError
			if !errors.As(err, &ie) {
				return fmt.Errorf("clean %s: %w", fd.Name, err)
			}
			ve.Errors = append(ve.Errors, FieldError{Field: fd.Name, Message: ie.Error()})
			continue
		}
		cleaned[fd.Name] = v
	}
	if ve.HasErrors() {
		f.errs = &ve
		return nil
	}
	f.cleaned = cleaned
	return nil
}

// IsBound reports whether the form carries submitted data.
func (f *Form) IsBound() bool { return f.bound }

// IsValid reports whether the form is bound and every input cleaned.
func (f *Form) IsValid() bool { return f.bound && f.errs == nil }

// Errors returns the validation errors of a bound form, or nil.
func (f *Form) Errors() *ValidationError { return f.errs }

// CleanedData returns the cleaned values of a valid form, keyed by field name.
func (f *Form) CleanedData() map[string]any {
	if !f.IsValid() {
		return nil
	}
	out := make(map[string]any, len(f.cleaned))
	for k, v := range f.cleaned {
		out[k] = v
	}
	return out
}

// Fields returns the form's fields in order.
func (f *Form) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// FieldView is the rendering description of one field.
type FieldView struct {
	Name     string    `json:"name"`
	Type     InputType `json:"type"`
	Value    any       `json:"value"`
	Required bool      `json:"required"`
	Choices  []string  `json:"choices,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
}

// Describe returns a rendering description of every field. Bound forms show
// the submitted values so an invalid submission can be corrected in place.
func (f *Form) Describe() []FieldView {
	views := make([]FieldView, 0, len(f.fields))
	for _, fd := range f.fields {
		v := FieldView{
			Name:     fd.Name,
			Type:     fd.Input.Type(),
			Value:    fd.Input.Initial(),
			Required: fd.Input.Required(),
			Choices:  fd.Input.Choices(),
			Errors:   f.errs.For(fd.Name),
		}
		if f.bound && !f.IsValid() {
			v.Value = displayRaw(f.data[fd.Name])
		}
		views = append(views, v)
	}
	return views
}

func displayRaw(raw []string) any {
	switch len(raw) {
	case 0:
		return nil
	case 1:
		return raw[0]
	}
	return raw
}
