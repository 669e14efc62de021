package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/form"
	"github.com/alfredjeanlab/dynfilter/internal/events"
	"github.com/alfredjeanlab/dynfilter/internal/model"
	"github.com/alfredjeanlab/dynfilter/internal/session"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type fieldSummary struct {
	Key        string         `json:"key"`
	Query      string         `json:"query"`
	Input      form.InputType `json:"input"`
	Choices    []string       `json:"choices,omitempty"`
	Initial    any            `json:"initial,omitempty"`
	ForceEmpty bool           `json:"force_empty,omitempty"`
}

type filterSummary struct {
	Name   string         `json:"name"`
	Fields []fieldSummary `json:"fields"`
}

// handleListFilters handles GET /v1/filters.
func (s *FilterServer) handleListFilters(w http.ResponseWriter, _ *http.Request) {
	out := make([]filterSummary, 0, len(s.order))
	for _, spec := range s.Filters() {
		sum := filterSummary{Name: spec.Name(), Fields: []fieldSummary{}}
		for _, key := range spec.Keys() {
			f, _ := spec.Field(key)
			opts := f.Options()
			sum.Fields = append(sum.Fields, fieldSummary{
				Key:        key,
				Query:      f.RenderOperator(),
				Input:      opts.Input.Type(),
				Choices:    opts.Input.Choices(),
				Initial:    opts.Input.Initial(),
				ForceEmpty: opts.ForceEmpty,
			})
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": out})
}

type formView struct {
	Bound  bool              `json:"bound"`
	Valid  bool              `json:"valid"`
	Fields []form.FieldView  `json:"fields"`
	Errors []form.FieldError `json:"errors,omitempty"`
}

type filterResponse struct {
	Filter    string         `json:"filter"`
	FirstInit bool           `json:"first_init"`
	Reset     bool           `json:"reset"`
	Active    bool           `json:"active"`
	Kwargs    map[string]any `json:"kwargs"`
	Form      formView       `json:"form"`
	Beads     []*model.Bead  `json:"beads"`
	Total     int            `json:"total"`
}

// handleFilter handles GET and POST /v1/filters/{name}. A POST body is a
// form submission of new filter values; ?reset_filter={name} resets them.
// Invalid submissions are reported in form.errors with status 200, the
// stored values staying in effect. A body that is not form data is a 400.
func (s *FilterServer) handleFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")
	spec, ok := s.filters[name]
	if !ok {
		writeError(w, http.StatusNotFound, "filter not found")
		return
	}
	sess, ok := session.FromContext(ctx)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return
	}

	q := r.URL.Query()
	limit, offset := defaultLimit, 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	inst, err := filter.New(ctx, spec, filter.HTTPRequest(r, sess))
	if errors.Is(err, filter.ErrMalformedBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("building filter", "filter", name, "session", sess.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	f := inst.Form()
	switch {
	case inst.IsReset():
		s.publish(ctx, events.FilterReset{
			Filter: name, Session: sess.ID(), Values: inst.Values(),
		})
	case f.IsValid():
		s.publish(ctx, events.FilterUpdated{
			Filter: name, Session: sess.ID(), Values: inst.Values(),
		})
	}

	kwargs, err := inst.RenderQueryKwargs(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	active, err := inst.IsActive(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	scope, err := inst.RenderQuery(ctx, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := filterResponse{
		Filter:    name,
		FirstInit: inst.FirstInit(),
		Reset:     inst.IsReset(),
		Active:    active,
		Kwargs:    kwargs,
		Form: formView{
			Bound:  f.IsBound(),
			Valid:  f.IsValid(),
			Fields: f.Describe(),
		},
		Beads: []*model.Bead{},
	}
	if errs := f.Errors(); errs.HasErrors() {
		resp.Form.Errors = errs.Errors
	}

	if lister, ok := scope.(Lister); ok {
		beads, total, err := lister.ListBeads(ctx, q.Get("sort"), limit, offset)
		if err != nil {
			slog.Error("listing beads", "filter", name, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if beads != nil {
			resp.Beads = beads
		}
		resp.Total = total
	}

	writeJSON(w, http.StatusOK, resp)
}
