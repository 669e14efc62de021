package server

import (
	"fmt"
	"time"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/form"
	"github.com/alfredjeanlab/dynfilter/internal/model"
)

// BeadFilters declares the filters served when no declarations file is
// configured. beads is both the target collection and the parent lookup.
//
//	Beads   kind, status
//	Work    Beads fields, then assignee, priority, parent, label
//	Due     Work fields, then due_before
func BeadFilters(beads filter.Collection, lookup filter.Lookup) ([]*filter.Spec, error) {
	base, err := filter.Define("Beads").
		Target(beads).
		Field("kind", filter.MustField(form.NewChoice(model.Kinds(), string(model.KindIssue)))).
		Field("status", filter.MustField(
			form.NewMultipleChoice(model.Statuses(), []string{
				string(model.StatusOpen), string(model.StatusInProgress), string(model.StatusBlocked),
			}),
			filter.WithOperator("in"),
		)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("declaring Beads: %w", err)
	}

	lo, hi := 0, 4
	priority := form.NewInteger(nil)
	priority.Min, priority.Max = &lo, &hi

	parent, err := filter.NewReferenceField(form.NewReference(lookup), lookup)
	if err != nil {
		return nil, fmt.Errorf("declaring Work: %w", err)
	}

	work, err := filter.Define("Work").
		Target(beads).
		Include(base).
		Field("assignee", filter.MustField(form.NewString(""), filter.WithOperator("icontains"))).
		Field("priority", filter.MustField(priority, filter.WithOperator("lte"))).
		Field("parent", parent).
		Field("label", filter.MustField(form.NewString(""), filter.WithName("labels"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("declaring Work: %w", err)
	}

	due, err := filter.Define("Due").
		Target(beads).
		Include(work).
		Field("due_before", filter.MustField(form.NewDate(time.Time{}),
			filter.WithName("due_at"), filter.WithOperator("lt"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("declaring Due: %w", err)
	}

	return []*filter.Spec{base, work, due}, nil
}
