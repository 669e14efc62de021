// Package client talks to the dynfilter HTTP API. It carries the filter
// session cookie between calls so successive requests see the same
// stored filter values.
package client

import (
	"time"

	"github.com/alfredjeanlab/dynfilter/internal/model"
)

// DefaultCookieName matches the server's default session cookie.
const DefaultCookieName = "dynfilter_session"

// FieldSummary describes one declared filter field.
type FieldSummary struct {
	Key        string   `json:"key"`
	Query      string   `json:"query"`
	Input      string   `json:"input"`
	Choices    []string `json:"choices,omitempty"`
	Initial    any      `json:"initial,omitempty"`
	ForceEmpty bool     `json:"force_empty,omitempty"`
}

// FilterSummary describes one registered filter.
type FilterSummary struct {
	Name   string         `json:"name"`
	Fields []FieldSummary `json:"fields"`
}

// FieldView is the server's rendering of one form field.
type FieldView struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Value    any      `json:"value"`
	Required bool     `json:"required"`
	Choices  []string `json:"choices,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// FieldError is a validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormView is the state of the filter form after the request.
type FormView struct {
	Bound  bool         `json:"bound"`
	Valid  bool         `json:"valid"`
	Fields []FieldView  `json:"fields"`
	Errors []FieldError `json:"errors,omitempty"`
}

// FilterResult is the response to a filter GET or POST.
type FilterResult struct {
	Filter    string         `json:"filter"`
	FirstInit bool           `json:"first_init"`
	Reset     bool           `json:"reset"`
	Active    bool           `json:"active"`
	Kwargs    map[string]any `json:"kwargs"`
	Form      FormView       `json:"form"`
	Beads     []*model.Bead  `json:"beads"`
	Total     int            `json:"total"`
}

// FilterRequest holds the listing options of a filter request.
type FilterRequest struct {
	Sort   string
	Limit  int
	Offset int
	// Reset restores the filter's initial values.
	Reset bool
}

// Options configure an HTTPClient.
type Options struct {
	Token      string
	CookieName string
	// Session is a session id to resume; empty starts a new session on
	// the first filter request.
	Session string
	Timeout time.Duration
}
