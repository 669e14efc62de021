// Package sync snapshots filter sessions to external destinations and
// purges expired ones on a schedule.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/dynfilter/internal/session"
)

// Source is a session backend that can be listed and swept.
type Source interface {
	List(ctx context.Context) ([]session.Record, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// Destination is the interface for a snapshot target (S3, local file).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler purges expired sessions and writes a snapshot of the live ones
// to every destination on each tick.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler over src. With no destinations it only
// purges.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:       src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge and snapshot.
func (s *Scheduler) RunOnce(ctx context.Context) {
	purged, err := s.source.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("session purge failed", "err", err)
	} else if purged > 0 {
		s.logger.Info("expired sessions purged", "count", purged)
	}

	if len(s.destinations) == 0 {
		return
	}

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s.source, &buf)
	if err != nil {
		s.logger.Error("session export failed", "err", err)
		return
	}
	data := buf.Bytes()

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("snapshot destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
		}
	}

	s.logger.Info("session snapshot written", "sessions", n, "destinations", len(s.destinations), "bytes", len(data))
}
