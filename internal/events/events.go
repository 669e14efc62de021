// Package events announces filter state changes on the event bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Event kinds. Each event is published on the subject
// "dynfilter.filter.<kind>.<filter>".
const (
	// TopicFilterUpdated follows a valid submission that changed a
	// session's stored filter values.
	TopicFilterUpdated = "dynfilter.filter.updated"
	// TopicFilterReset follows a reset that cleared stored values.
	TopicFilterReset = "dynfilter.filter.reset"

	// TopicAll matches every filter event.
	TopicAll = "dynfilter.>"
)

const subjectPrefix = "dynfilter.filter."

// Event is a filter state change.
type Event interface {
	// Topic is the event kind, TopicFilterUpdated or TopicFilterReset.
	Topic() string
	// FilterName is the filter whose state changed.
	FilterName() string
}

// FilterUpdated carries the values persisted for a filter.
type FilterUpdated struct {
	Filter  string         `json:"filter"`
	Session string         `json:"session"`
	Values  map[string]any `json:"values"`
}

func (FilterUpdated) Topic() string        { return TopicFilterUpdated }
func (e FilterUpdated) FilterName() string { return e.Filter }

// FilterReset carries the default values a filter was reset to.
type FilterReset struct {
	Filter  string         `json:"filter"`
	Session string         `json:"session"`
	Values  map[string]any `json:"values"`
}

func (FilterReset) Topic() string        { return TopicFilterReset }
func (e FilterReset) FilterName() string { return e.Filter }

// Subject is the bus subject ev is published on.
func Subject(ev Event) string {
	return ev.Topic() + "." + subjectToken(ev.FilterName())
}

// FilterTopic matches every event of the named filter.
func FilterTopic(name string) string {
	return subjectPrefix + "*." + subjectToken(name)
}

// subjectToken escapes name into a single subject token. Dots and
// wildcards are escaped; an empty name becomes "_".
func subjectToken(name string) string {
	if name == "" {
		return "_"
	}
	return strings.ReplaceAll(url.PathEscape(name), ".", "%2E")
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Message is one event received from a subscription.
type Message struct {
	Subject string
	Data    []byte
}

// Kind is the event kind segment of the subject, e.g. "updated".
func (m Message) Kind() string {
	kind, _, _ := strings.Cut(strings.TrimPrefix(m.Subject, subjectPrefix), ".")
	return kind
}

// Filter is the filter name encoded in the subject, or "" when the subject
// carries none.
func (m Message) Filter() string {
	_, token, ok := strings.Cut(strings.TrimPrefix(m.Subject, subjectPrefix), ".")
	if !ok || token == "_" {
		return ""
	}
	name, err := url.PathUnescape(token)
	if err != nil {
		return token
	}
	return name
}

// Decode unmarshals the payload into the event type matching its kind.
func (m Message) Decode() (Event, error) {
	switch subjectPrefix + m.Kind() {
	case TopicFilterUpdated:
		var ev FilterUpdated
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", m.Subject, err)
		}
		return ev, nil
	case TopicFilterReset:
		var ev FilterReset
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", m.Subject, err)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("unknown event subject %q", m.Subject)
}
