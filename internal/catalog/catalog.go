// Package catalog compiles filter declarations written in TOML into
// filter specs.
//
//	[[filter]]
//	name = "OpenWork"
//	collection = "beads"
//
//	  [[filter.field]]
//	  key = "status"
//	  input = "choice"
//	  choices = ["open", "in_progress", "closed"]
//	  initial = "open"
//
// A filter may include the fields of any filter declared above it.
package catalog

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/form"
)

// Registry names the collections and lookups declarations may refer to.
type Registry struct {
	Collections map[string]filter.Collection
	Lookups     map[string]filter.Lookup
}

type document struct {
	Filters []filterDecl `toml:"filter"`
}

type filterDecl struct {
	Name       string      `toml:"name"`
	Collection string      `toml:"collection"`
	Include    []string    `toml:"include"`
	Fields     []fieldDecl `toml:"field"`
}

type fieldDecl struct {
	Key        string   `toml:"key"`
	Input      string   `toml:"input"`
	Name       string   `toml:"name"`
	Operator   string   `toml:"operator"`
	ForceEmpty bool     `toml:"force_empty"`
	Lookup     string   `toml:"lookup"`
	Choices    []string `toml:"choices"`
	Initial    any      `toml:"initial"`
	MaxLength  int      `toml:"max_length"`
	Min        *int     `toml:"min"`
	Max        *int     `toml:"max"`
}

// Load reads and compiles the declarations file at path.
func Load(path string, reg Registry) ([]*filter.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter declarations: %w", err)
	}
	specs, err := Parse(data, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// Parse compiles declarations from data. Specs are returned in file order.
func Parse(data []byte, reg Registry) ([]*filter.Spec, error) {
	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("decoding filter declarations: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown declaration key %q", undecoded[0].String())
	}

	specs := make([]*filter.Spec, 0, len(doc.Filters))
	byName := make(map[string]*filter.Spec, len(doc.Filters))
	for _, fd := range doc.Filters {
		if _, dup := byName[fd.Name]; dup {
			return nil, &filter.ConfigurationError{Type: fd.Name, Reason: "filter declared more than once"}
		}
		spec, err := compileFilter(fd, reg, byName)
		if err != nil {
			return nil, err
		}
		byName[fd.Name] = spec
		specs = append(specs, spec)
	}
	return specs, nil
}

func compileFilter(fd filterDecl, reg Registry, declared map[string]*filter.Spec) (*filter.Spec, error) {
	b := filter.Define(fd.Name)
	if fd.Collection != "" {
		c, ok := reg.Collections[fd.Collection]
		if !ok {
			return nil, &filter.ConfigurationError{Type: fd.Name, Reason: fmt.Sprintf("unknown collection %q", fd.Collection)}
		}
		b.Target(c)
	}
	for _, name := range fd.Include {
		inc, ok := declared[name]
		if !ok {
			return nil, &filter.ConfigurationError{Type: fd.Name, Reason: fmt.Sprintf("included filter %q is not declared above it", name)}
		}
		b.Include(inc)
	}
	for _, decl := range fd.Fields {
		f, err := compileField(fd.Name, decl, reg)
		if err != nil {
			return nil, err
		}
		b.Field(decl.Key, f)
	}
	return b.Build()
}

func compileField(filterName string, d fieldDecl, reg Registry) (filter.FieldSpec, error) {
	fail := func(format string, args ...any) error {
		return &filter.ConfigurationError{Type: filterName, Field: d.Key, Reason: fmt.Sprintf(format, args...)}
	}
	if d.Key == "" {
		return nil, &filter.ConfigurationError{Type: filterName, Reason: "field key must be specified"}
	}

	var opts []filter.FieldOption
	if d.Operator != "" {
		opts = append(opts, filter.WithOperator(d.Operator))
	}
	if d.Name != "" {
		opts = append(opts, filter.WithName(d.Name))
	}
	if d.ForceEmpty {
		opts = append(opts, filter.WithForceEmpty())
	}

	if inputType(d.Input) == form.InputReference {
		lookup, ok := reg.Lookups[d.Lookup]
		if !ok {
			return nil, fail("unknown lookup %q", d.Lookup)
		}
		if d.Initial != nil {
			return nil, fail("reference fields take no initial value")
		}
		return filter.NewReferenceField(form.NewReference(lookup), lookup, opts...)
	}

	in, err := compileInput(d)
	if err != nil {
		return nil, fail("%v", err)
	}
	return filter.NewField(in, opts...)
}

func compileInput(d fieldDecl) (form.Input, error) {
	switch inputType(d.Input) {
	case form.InputString:
		s, err := asString(d.Initial)
		if err != nil {
			return nil, err
		}
		in := form.NewString(s)
		in.MaxLength = d.MaxLength
		return in, nil

	case form.InputInteger:
		var initial *int
		switch v := d.Initial.(type) {
		case nil:
		case int64:
			n := int(v)
			initial = &n
		default:
			return nil, fmt.Errorf("initial must be an integer, got %T", d.Initial)
		}
		in := form.NewInteger(initial)
		in.Min, in.Max = d.Min, d.Max
		return in, nil

	case form.InputFloat:
		var initial *float64
		switch v := d.Initial.(type) {
		case nil:
		case int64:
			f := float64(v)
			initial = &f
		case float64:
			initial = &v
		default:
			return nil, fmt.Errorf("initial must be a number, got %T", d.Initial)
		}
		return form.NewFloat(initial), nil

	case form.InputBoolean:
		switch v := d.Initial.(type) {
		case nil:
			return form.NewBoolean(false), nil
		case bool:
			return form.NewBoolean(v), nil
		}
		return nil, fmt.Errorf("initial must be a boolean, got %T", d.Initial)

	case form.InputDate:
		switch v := d.Initial.(type) {
		case nil:
			return form.NewDate(time.Time{}), nil
		case time.Time:
			return form.NewDate(v), nil
		case string:
			t, err := time.Parse(form.DateLayout, v)
			if err != nil {
				return nil, fmt.Errorf("initial date: %w", err)
			}
			return form.NewDate(t), nil
		}
		return nil, fmt.Errorf("initial must be a date, got %T", d.Initial)

	case form.InputChoice:
		if len(d.Choices) == 0 {
			return nil, fmt.Errorf("choices must be specified")
		}
		s, err := asString(d.Initial)
		if err != nil {
			return nil, err
		}
		if s != "" && !slices.Contains(d.Choices, s) {
			return nil, fmt.Errorf("initial %q is not one of the choices", s)
		}
		return form.NewChoice(d.Choices, s), nil

	case form.InputMultipleChoice:
		if len(d.Choices) == 0 {
			return nil, fmt.Errorf("choices must be specified")
		}
		var initial []string
		if d.Initial != nil {
			list, ok := d.Initial.([]any)
			if !ok {
				return nil, fmt.Errorf("initial must be a list, got %T", d.Initial)
			}
			for _, item := range list {
				s, ok := item.(string)
				if !ok || !slices.Contains(d.Choices, s) {
					return nil, fmt.Errorf("initial %v is not one of the choices", item)
				}
				initial = append(initial, s)
			}
		}
		return form.NewMultipleChoice(d.Choices, initial), nil

	case "":
		return nil, fmt.Errorf("input must be specified")
	}
	return nil, fmt.Errorf("unknown input %q", d.Input)
}

// inputType maps a declared input name to its form type. "choices" is
// accepted for multiple choice.
func inputType(name string) form.InputType {
	if name == "choices" {
		return form.InputMultipleChoice
	}
	return form.InputType(name)
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return "", fmt.Errorf("initial must be a string, got %T", v)
}
