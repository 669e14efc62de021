// Package filter declares session-backed filters over queryable collections.
//
// A Spec is declared once, at startup, with Define. Each request builds an
// Instance from it: the instance restores the user's stored values from the
// session, binds any submission to a form, persists the result, and renders
// the values as query kwargs against the spec's target collection.
package filter

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"time"

	"github.com/alfredjeanlab/dynfilter/form"
)

// Instance is one request's view of a filter. It owns copies of the spec's
// fields and must not be shared between requests.
type Instance struct {
	spec      *Spec
	fields    []entry
	index     map[string]int
	values    map[string]any
	firstInit bool
	isReset   bool
	form      *form.Form
}

// New builds the filter state for req.
//
// Stored values are restored from the session unless this is the first use
// of the filter in the session or the request resets it, in which case
// every field starts from its input's initial value. A submission is
// persisted only when the whole form validates. The session entry is
// rewritten on every call that returns an Instance; a body that is not form
// data fails with ErrMalformedBody and leaves the session untouched.
func New(ctx context.Context, spec *Spec, req Request) (*Instance, error) {
	sess := req.Session()
	stored, ok := sess.Get(spec.name)

	inst := &Instance{
		spec:      spec,
		firstInit: !ok,
		isReset:   req.Query().Get(ResetParam) == spec.name,
	}
	switch {
	case inst.firstInit:
		inst.values = map[string]any{}
	case inst.isReset:
		sess.Delete(spec.name)
		inst.values = map[string]any{}
	default:
		inst.values = maps.Clone(stored)
		if inst.values == nil {
			inst.values = map[string]any{}
		}
	}

	inst.fields = spec.clone()
	inst.index = make(map[string]int, len(inst.fields))
	formFields := make([]form.Field, 0, len(inst.fields))
	for i, e := range inst.fields {
		inst.index[e.key] = i
		in := e.field.Options().Input
		v, err := inst.value(ctx, e.key, in.Initial(), true)
		if err != nil {
			return nil, err
		}
		in.SetInitial(v)
		in.SetRequired(false)
		formFields = append(formFields, form.Field{Name: e.key, Input: in})
	}

	if req.Method() == http.MethodPost && !inst.isReset {
		data, err := req.PostForm()
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", spec.name, err)
		}
		inst.form, err = form.Bind(ctx, formFields, data)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", spec.name, err)
		}
		if inst.form.IsValid() {
			cleaned := inst.form.CleanedData()
			for _, e := range inst.fields {
				if v, ok := cleaned[e.key]; ok {
					inst.setValue(e.key, v)
				}
			}
		}
	} else {
		inst.form = form.Unbound(formFields)
	}

	sess.Set(spec.name, inst.values)
	sess.MarkModified()
	return inst, nil
}

// value returns the current value of key. When nothing is stored and init
// is set, def is stored first.
func (inst *Instance) value(ctx context.Context, key string, def any, init bool) (any, error) {
	f := inst.fields[inst.index[key]].field
	if raw, ok := inst.values[key]; ok {
		return f.Unstore(ctx, raw)
	}
	if init {
		inst.setValue(key, def)
	}
	return def, nil
}

func (inst *Instance) setValue(key string, v any) {
	inst.values[key] = inst.fields[inst.index[key]].field.Store(v)
}

// Spec returns the declaration this instance was built from.
func (inst *Instance) Spec() *Spec { return inst.spec }

// Form returns the form to render: bound to the submission on a POST,
// otherwise showing the current values.
func (inst *Instance) Form() *form.Form { return inst.form }

// FirstInit reports whether the session held no state for the filter.
func (inst *Instance) FirstInit() bool { return inst.firstInit }

// IsReset reports whether the request asked for the filter to be reset.
func (inst *Instance) IsReset() bool { return inst.isReset }

// Values returns a copy of the stored values, keyed by field key.
func (inst *Instance) Values() map[string]any { return maps.Clone(inst.values) }

// Value returns the current value of the field declared under key.
func (inst *Instance) Value(ctx context.Context, key string) (any, error) {
	if _, ok := inst.index[key]; !ok {
		return nil, fmt.Errorf("filter %s has no field %q", inst.spec.name, key)
	}
	return inst.value(ctx, key, nil, false)
}

// RenderQueryKwargs maps each field's operator key to its rendered value.
// Fields with an empty value are left out unless declared ForceEmpty.
func (inst *Instance) RenderQueryKwargs(ctx context.Context) (map[string]any, error) {
	kwargs := map[string]any{}
	for _, e := range inst.fields {
		raw, err := inst.value(ctx, e.key, nil, false)
		if err != nil {
			return nil, err
		}
		v := e.field.RenderValue(raw)
		if Truthy(v) || e.field.Options().ForceEmpty {
			kwargs[e.field.RenderOperator()] = v
		}
	}
	return kwargs, nil
}

// RenderQuery returns the target collection narrowed by extra, then by the
// filter's kwargs.
func (inst *Instance) RenderQuery(ctx context.Context, extra map[string]any) (Scope, error) {
	kwargs, err := inst.RenderQueryKwargs(ctx)
	if err != nil {
		return nil, err
	}
	scope := inst.spec.target.All()
	if len(extra) > 0 {
		scope = scope.Filter(extra)
	}
	if len(kwargs) == 0 {
		return scope, nil
	}
	return scope.Filter(kwargs), nil
}

// IsActive reports whether any field currently constrains the query.
func (inst *Instance) IsActive(ctx context.Context) (bool, error) {
	kwargs, err := inst.RenderQueryKwargs(ctx)
	if err != nil {
		return false, err
	}
	return len(kwargs) > 0, nil
}

// Truthy reports whether v counts as a set value. nil, false, zero numbers,
// empty strings and collections, nil pointers, and the zero time are empty.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case time.Time:
		return !x.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return !rv.IsZero()
	case reflect.Bool:
		return rv.Bool()
	}
	return true
}
