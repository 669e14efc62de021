// Package server exposes declared filters over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/internal/events"
	"github.com/alfredjeanlab/dynfilter/internal/model"
)

// Lister is implemented by scopes whose matching beads can be listed.
type Lister interface {
	ListBeads(ctx context.Context, sort string, limit, offset int) ([]*model.Bead, int, error)
}

// FilterServer renders declared filters for the caller's session.
type FilterServer struct {
	filters   map[string]*filter.Spec
	order     []string
	publisher events.Publisher
}

// NewFilterServer serves specs, publishing filter events to p. Filter names
// must be unique.
func NewFilterServer(specs []*filter.Spec, p events.Publisher) (*FilterServer, error) {
	s := &FilterServer{
		filters:   make(map[string]*filter.Spec, len(specs)),
		publisher: p,
	}
	for _, spec := range specs {
		if _, dup := s.filters[spec.Name()]; dup {
			return nil, fmt.Errorf("filter %q declared more than once", spec.Name())
		}
		s.filters[spec.Name()] = spec
		s.order = append(s.order, spec.Name())
	}
	return s, nil
}

// Filters returns the served specs in declaration order.
func (s *FilterServer) Filters() []*filter.Spec {
	out := make([]*filter.Spec, len(s.order))
	for i, name := range s.order {
		out[i] = s.filters[name]
	}
	return out
}

// publish sends an event. Failures are logged and otherwise ignored.
func (s *FilterServer) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish event", "topic", ev.Topic(), "filter", ev.FilterName(), "error", err)
	}
}
