package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/internal/catalog"
	"github.com/alfredjeanlab/dynfilter/internal/config"
	"github.com/alfredjeanlab/dynfilter/internal/events"
	"github.com/alfredjeanlab/dynfilter/internal/server"
	"github.com/alfredjeanlab/dynfilter/internal/session"
	"github.com/alfredjeanlab/dynfilter/internal/store/postgres"
	sessionsync "github.com/alfredjeanlab/dynfilter/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the dynfilter HTTP server",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		beads := store.Beads()

		specs, err := loadFilters(cfg.FiltersFile, beads)
		if err != nil {
			store.Close()
			return err
		}

		sessions, closeSessions, err := openSessions(cfg, store.DB())
		if err != nil {
			store.Close()
			return err
		}
		logger.Info("sessions", "backend", cfg.SessionBackend, "ttl", cfg.SessionTTL)

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				closeSessions()
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (DYNFILTER_NATS_URL not set)")
		}

		filterServer, err := server.NewFilterServer(specs, publisher)
		if err != nil {
			publisher.Close()
			closeSessions()
			store.Close()
			return err
		}

		httpServer := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: filterServer.NewHTTPHandler(cfg.AuthToken, sessions, session.Options{
				CookieName: cfg.SessionCookie,
				TTL:        cfg.SessionTTL,
				Secure:     cfg.SessionSecure,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *sessionsync.Scheduler
		if cfg.SyncInterval > 0 {
			dests := snapshotDestinations(cfg, logger)
			scheduler = sessionsync.NewScheduler(sessions, dests, cfg.SyncInterval, logger)
			scheduler.Start()
			logger.Info("session maintenance started", "interval", cfg.SyncInterval, "destinations", len(dests))
		}

		logger.Info("dynfilter server started", "http_addr", cfg.HTTPAddr, "filters", len(specs))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("session maintenance stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		closeSessions()
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// sessionStore is a session backend the maintenance scheduler can sweep.
type sessionStore interface {
	session.Backend
	sessionsync.Source
}

// openSessions opens the configured session backend. db is used by the
// postgres backend and may be nil for the others.
func openSessions(cfg *config.Config, db *sql.DB) (sessionStore, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionMemory:
		return session.NewMemoryBackend(), func() {}, nil
	case config.SessionPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres sessions need a database connection")
		}
		return session.NewPostgresBackend(db), func() {}, nil
	case config.SessionNATS:
		b, err := session.NewNATSBackend(cfg.NATSURL, cfg.SessionBucket, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}

// loadFilters compiles the declarations file if one is configured, and
// otherwise declares the built-in bead filters.
func loadFilters(path string, beads *postgres.BeadCollection) ([]*filter.Spec, error) {
	if path == "" {
		return server.BeadFilters(beads, beads)
	}
	return catalog.Load(path, beadRegistry(beads))
}

func beadRegistry(beads *postgres.BeadCollection) catalog.Registry {
	return catalog.Registry{
		Collections: map[string]filter.Collection{"beads": beads},
		Lookups:     map[string]filter.Lookup{"beads": beads},
	}
}

func snapshotDestinations(cfg *config.Config, logger *slog.Logger) []sessionsync.Destination {
	var dests []sessionsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := sessionsync.NewS3Destination(context.Background(), sessionsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Prefix:   cfg.SyncS3Prefix,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 snapshot destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("S3 snapshot destination enabled", "bucket", cfg.SyncS3Bucket, "prefix", cfg.SyncS3Prefix)
		}
	}
	if cfg.SyncFile != "" {
		dests = append(dests, sessionsync.NewFileDestination(cfg.SyncFile))
		logger.Info("file snapshot destination enabled", "path", cfg.SyncFile)
	}
	return dests
}
