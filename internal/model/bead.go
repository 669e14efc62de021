package model

import (
	"time"
)

// Kind is a two-level classification for beads.
type Kind string

const (
	KindIssue  Kind = "issue"
	KindData   Kind = "data"
	KindConfig Kind = "config"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k Kind) IsValid() bool {
	switch k {
	case KindIssue, KindData, KindConfig:
		return true
	}
	return false
}

// Kinds lists every kind, in display order.
func Kinds() []string {
	return []string{string(KindIssue), string(KindData), string(KindConfig)}
}

// Status represents the current state of a bead.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDeferred   Status = "deferred"
	StatusClosed     Status = "closed"
	StatusBlocked    Status = "blocked"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDeferred, StatusClosed, StatusBlocked:
		return true
	}
	return false
}

// Statuses lists every status, in workflow order.
func Statuses() []string {
	return []string{
		string(StatusOpen), string(StatusInProgress), string(StatusBlocked),
		string(StatusDeferred), string(StatusClosed),
	}
}

// Bead is the work-item record filters are declared against.
type Bead struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Status    Status     `json:"status"`
	Priority  int        `json:"priority"`
	Assignee  string     `json:"assignee,omitempty"`
	Owner     string     `json:"owner,omitempty"`
	ParentID  string     `json:"parent_id,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
}

// Key returns the bead's primary key, which is what a reference filter
// field stores in the session.
func (b *Bead) Key() any {
	return b.ID
}
