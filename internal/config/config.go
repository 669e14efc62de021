package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Session backends.
const (
	SessionMemory   = "memory"
	SessionPostgres = "postgres"
	SessionNATS     = "nats"
)

type Config struct {
	DatabaseURL string // DYNFILTER_DATABASE_URL (required)
	HTTPAddr    string // DYNFILTER_HTTP_ADDR (default ":8080")
	NATSURL     string // DYNFILTER_NATS_URL (optional, empty = no events)
	AuthToken   string // DYNFILTER_AUTH_TOKEN (optional, empty = auth disabled)
	FiltersFile string // DYNFILTER_FILTERS_FILE (optional TOML declarations)

	// Session settings
	SessionBackend string        // DYNFILTER_SESSION_BACKEND (memory|postgres|nats, default postgres)
	SessionCookie  string        // DYNFILTER_SESSION_COOKIE (default "dynfilter_session")
	SessionTTL     time.Duration // DYNFILTER_SESSION_TTL (default 24h)
	SessionBucket  string        // DYNFILTER_SESSION_BUCKET (NATS KV bucket, default "dynfilter_sessions")
	SessionSecure  bool          // DYNFILTER_SESSION_SECURE (Secure cookie attribute, default false)

	// Session maintenance
	SyncInterval   time.Duration // DYNFILTER_SYNC_INTERVAL (purge/snapshot period, default 10m, 0 = disabled)
	SyncFile       string        // DYNFILTER_SYNC_FILE (optional local JSONL snapshot path)
	SyncS3Bucket   string        // DYNFILTER_SYNC_S3_BUCKET (optional, enables S3 snapshots)
	SyncS3Prefix   string        // DYNFILTER_SYNC_S3_PREFIX (object key prefix, default "dynfilter/")
	SyncS3Region   string        // DYNFILTER_SYNC_S3_REGION (default "us-east-1")
	SyncS3Endpoint string        // DYNFILTER_SYNC_S3_ENDPOINT (optional, for MinIO and similar)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("DYNFILTER_DATABASE_URL"),
		HTTPAddr:       envOrDefault("DYNFILTER_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("DYNFILTER_NATS_URL"),
		AuthToken:      os.Getenv("DYNFILTER_AUTH_TOKEN"),
		FiltersFile:    os.Getenv("DYNFILTER_FILTERS_FILE"),
		SessionBackend: envOrDefault("DYNFILTER_SESSION_BACKEND", SessionPostgres),
		SessionCookie:  envOrDefault("DYNFILTER_SESSION_COOKIE", "dynfilter_session"),
		SessionBucket:  envOrDefault("DYNFILTER_SESSION_BUCKET", "dynfilter_sessions"),
		SyncFile:       os.Getenv("DYNFILTER_SYNC_FILE"),
		SyncS3Bucket:   os.Getenv("DYNFILTER_SYNC_S3_BUCKET"),
		SyncS3Prefix:   envOrDefault("DYNFILTER_SYNC_S3_PREFIX", "dynfilter/"),
		SyncS3Region:   envOrDefault("DYNFILTER_SYNC_S3_REGION", "us-east-1"),
		SyncS3Endpoint: os.Getenv("DYNFILTER_SYNC_S3_ENDPOINT"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DYNFILTER_DATABASE_URL is required")
	}

	switch c.SessionBackend {
	case SessionMemory, SessionPostgres:
	case SessionNATS:
		if c.NATSURL == "" {
			return nil, fmt.Errorf("DYNFILTER_SESSION_BACKEND=nats requires DYNFILTER_NATS_URL")
		}
	default:
		return nil, fmt.Errorf("DYNFILTER_SESSION_BACKEND: unknown backend %q", c.SessionBackend)
	}

	ttl, err := time.ParseDuration(envOrDefault("DYNFILTER_SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("DYNFILTER_SESSION_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("DYNFILTER_SESSION_TTL must be positive, got %s", ttl)
	}
	c.SessionTTL = ttl

	if v := os.Getenv("DYNFILTER_SESSION_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DYNFILTER_SESSION_SECURE: %w", err)
		}
		c.SessionSecure = secure
	}

	interval, err := time.ParseDuration(envOrDefault("DYNFILTER_SYNC_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("DYNFILTER_SYNC_INTERVAL: %w", err)
	}
	if interval < 0 {
		return nil, fmt.Errorf("DYNFILTER_SYNC_INTERVAL must not be negative, got %s", interval)
	}
	c.SyncInterval = interval

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
