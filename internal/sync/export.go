package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	SessionCount int       `json:"session_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes a header line followed by one line per live session,
// in the order the source lists them. It returns the number of sessions
// written.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) (int, error) {
	sessions, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		SessionCount: len(sessions),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, r := range sessions {
		if err := enc.Encode(record{Type: "session", Data: r}); err != nil {
			return 0, fmt.Errorf("encode session %s: %w", r.ID, err)
		}
	}
	return len(sessions), nil
}
