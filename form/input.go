// Package form provides the input descriptors a filter renders and the form
// that binds, cleans, and validates submitted values against them.
package form

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// InputType identifies the kind of value an input accepts.
type InputType string

const (
	InputString         InputType = "string"
	InputInteger        InputType = "integer"
	InputFloat          InputType = "float"
	InputBoolean        InputType = "boolean"
	InputDate           InputType = "date"
	InputChoice         InputType = "choice"
	InputMultipleChoice InputType = "choice[]"
	InputReference      InputType = "reference"
)

// Input describes one user-facing control: its initial value, whether it must
// be filled in, and how a submitted value is cleaned.
//
// Inputs are mutable. A filter clones its inputs for every request, so an
// Input held by a declaration is never handed to request code directly.
type Input interface {
	Type() InputType
	Initial() any
	SetInitial(v any)
	Required() bool
	SetRequired(required bool)
	// Choices lists the allowed values, or nil when the input is free-form.
	Choices() []string
	// Clean converts the raw submitted values into the input's Go value.
	// An empty submission on an optional input yields the input's empty value.
	Clean(ctx context.Context, raw []string) (any, error)
	Clone() Input
}

// Lookup resolves a submitted key into the record it identifies.
type Lookup interface {
	FindByKey(ctx context.Context, key any) (any, error)
}

// ErrNotFound is returned by a Lookup when no record has the requested key.
var ErrNotFound = errors.New("record not found")

// invalidError marks a submitted value as unacceptable. Any other error
// returned from Clean is an operational failure, not a validation result.
type invalidError string

func (e invalidError) Error() string { return string(e) }

func invalidf(format string, args ...any) error {
	return invalidError(fmt.Sprintf(format, args...))
}

const errRequired = invalidError("is required")

// base carries the state every input shares.
type base struct {
	initial  any
	required bool
}

func (b *base) Initial() any              { return b.initial }
func (b *base) SetInitial(v any)          { b.initial = v }
func (b *base) Required() bool            { return b.required }
func (b *base) SetRequired(required bool) { b.required = required }
func (b *base) Choices() []string         { return nil }

// first returns the first non-blank raw value.
func first(raw []string) (string, bool) {
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// String accepts free text.
type String struct {
	base
	MaxLength int
}

// NewString returns a text input with the given initial value.
func NewString(initial string) *String {
	return &String{base: base{initial: initial, required: true}}
}

func (s *String) Type() InputType { return InputString }

func (s *String) Clean(_ context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if s.required {
			return nil, errRequired
		}
		return "", nil
	}
	if s.MaxLength > 0 && len([]rune(v)) > s.MaxLength {
		return nil, invalidf("must be %d characters or fewer", s.MaxLength)
	}
	return v, nil
}

func (s *String) Clone() Input {
	c := *s
	return &c
}

// Integer accepts a whole number, optionally bounded.
type Integer struct {
	base
	Min, Max *int
}

// NewInteger returns an integer input. A nil initial leaves the input empty.
func NewInteger(initial *int) *Integer {
	in := &Integer{base: base{required: true}}
	if initial != nil {
		in.initial = *initial
	}
	return in
}

func (i *Integer) Type() InputType { return InputInteger }

func (i *Integer) Clean(_ context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if i.required {
			return nil, errRequired
		}
		return nil, nil
	}
	// A fraction of only zeros is accepted, so "3.0" is 3.
	if whole, frac, ok := strings.Cut(v, "."); ok && strings.Trim(frac, "0") == "" {
		v = whole
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, invalidf("must be an integer")
	}
	if i.Min != nil && n < *i.Min {
		return nil, invalidf("must be at least %d", *i.Min)
	}
	if i.Max != nil && n > *i.Max {
		return nil, invalidf("must be at most %d", *i.Max)
	}
	return n, nil
}

func (i *Integer) Clone() Input {
	c := *i
	if i.Min != nil {
		m := *i.Min
		c.Min = &m
	}
	if i.Max != nil {
		m := *i.Max
		c.Max = &m
	}
	return &c
}

// Float accepts any number.
type Float struct {
	base
}

// NewFloat returns a number input. A nil initial leaves the input empty.
func NewFloat(initial *float64) *Float {
	in := &Float{base: base{required: true}}
	if initial != nil {
		in.initial = *initial
	}
	return in
}

func (f *Float) Type() InputType { return InputFloat }

func (f *Float) Clean(_ context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if f.required {
			return nil, errRequired
		}
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil, invalidf("must be a number")
	}
	return n, nil
}

func (f *Float) Clone() Input {
	c := *f
	return &c
}

// Boolean is a checkbox: absent means false.
type Boolean struct {
	base
}

// NewBoolean returns a checkbox input.
func NewBoolean(initial bool) *Boolean {
	return &Boolean{base: base{initial: initial}}
}

func (b *Boolean) Type() InputType { return InputBoolean }

func (b *Boolean) Clean(_ context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if b.required {
			return nil, errRequired
		}
		return false, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return nil, invalidf("must be a boolean")
}

func (b *Boolean) Clone() Input {
	c := *b
	return &c
}

// DateLayout is the plain calendar-date layout accepted by Date.
const DateLayout = "2006-01-02"

// Date accepts a calendar date or an RFC 3339 timestamp.
type Date struct {
	base
}

// NewDate returns a date input. A zero initial leaves the input empty.
func NewDate(initial time.Time) *Date {
	in := &Date{base: base{required: true}}
	if !initial.IsZero() {
		in.initial = initial
	}
	return in
}

func (d *Date) Type() InputType { return InputDate }

func (d *Date) Clean(_ context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if d.required {
			return nil, errRequired
		}
		return nil, nil
	}
	if t, err := time.Parse(DateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, invalidf("must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	return t, nil
}

func (d *Date) Clone() Input {
	c := *d
	return &c
}

// Choice accepts one value from a closed set.
type Choice struct {
	base
	Values []string
}

// NewChoice returns a single-select input over values.
func NewChoice(values []string, initial string) *Choice {
	return &Choice{base: base{initial: initial, required: true}, Values: slices.Clone(values)}
}

func (c *Choice) Type() InputType   { return InputChoice }
func (c *Choice) Choices() []string { return slices.Clone(c.Values) }

func (c *Choice) Clean(_ context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if c.required {
			return nil, errRequired
		}
		return "", nil
	}
	if !slices.Contains(c.Values, v) {
		return nil, invalidf("must be one of %v", c.Values)
	}
	return v, nil
}

func (c *Choice) Clone() Input {
	cp := *c
	cp.Values = slices.Clone(c.Values)
	return &cp
}

// MultipleChoice accepts any subset of a closed set.
type MultipleChoice struct {
	base
	Values []string
}

// NewMultipleChoice returns a multi-select input over values.
func NewMultipleChoice(values []string, initial []string) *MultipleChoice {
	in := &MultipleChoice{base: base{required: true}, Values: slices.Clone(values)}
	if initial != nil {
		in.initial = slices.Clone(initial)
	}
	return in
}

func (m *MultipleChoice) Type() InputType   { return InputMultipleChoice }
func (m *MultipleChoice) Choices() []string { return slices.Clone(m.Values) }

func (m *MultipleChoice) Clean(_ context.Context, raw []string) (any, error) {
	picked := []string{}
	for _, r := range raw {
		for _, s := range strings.Split(r, ",") {
			if s = strings.TrimSpace(s); s != "" {
				picked = append(picked, s)
			}
		}
	}
	if len(picked) == 0 && m.required {
		return nil, errRequired
	}
	for _, s := range picked {
		if !slices.Contains(m.Values, s) {
			return nil, invalidf("element %q must be one of %v", s, m.Values)
		}
	}
	return picked, nil
}

func (m *MultipleChoice) Clone() Input {
	cp := *m
	cp.Values = slices.Clone(m.Values)
	if s, ok := m.initial.([]string); ok {
		cp.initial = slices.Clone(s)
	}
	return &cp
}

// Reference accepts the key of a record and cleans it into the record itself.
type Reference struct {
	base
	Lookup Lookup
}

// NewReference returns an input whose submitted key is resolved through lookup.
func NewReference(lookup Lookup) *Reference {
	return &Reference{base: base{required: true}, Lookup: lookup}
}

func (r *Reference) Type() InputType { return InputReference }

func (r *Reference) Clean(ctx context.Context, raw []string) (any, error) {
	v, ok := first(raw)
	if !ok {
		if r.required {
			return nil, errRequired
		}
		return nil, nil
	}
	if r.Lookup == nil {
		return nil, fmt.Errorf("reference input has no lookup")
	}
	rec, err := r.Lookup.FindByKey(ctx, v)
	if errors.Is(err, ErrNotFound) || (err == nil && rec == nil) {
		return nil, invalidf("unknown key %q", v)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", v, err)
	}
	return rec, nil
}

// Clone copies the input state; the lookup is shared, it is not per-request state.
func (r *Reference) Clone() Input {
	c := *r
	return &c
}
