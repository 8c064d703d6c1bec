// Package config assembles the registry's runtime configuration: environment
// variables for deployment knobs, plus a versioned TOML reference-data file
// for the matching tables that change between releases but never per host.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "gsid-registry/pkg/platform/strings"
)

// Server captures process-level configuration sourced from the environment.
type Server struct {
	Addr            string
	DatabaseURL     string
	JWTSigningKey   string
	APIKeyHash      string
	ReferenceFile   string
	KafkaBrokers    []string
	KafkaTopic      string
	OutboxInterval  time.Duration
	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envOr("GSID_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		APIKeyHash:      os.Getenv("GSID_API_KEY_HASH"),
		ReferenceFile:   os.Getenv("GSID_REFERENCE_FILE"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      envOr("KAFKA_AUDIT_TOPIC", "gsid.resolution-decisions"),
		OutboxInterval:  envDuration("GSID_OUTBOX_INTERVAL", 5*time.Second),
		ShutdownTimeout: envDuration("GSID_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate rejects configurations the server cannot start with.
func (s Server) Validate() error {
	if s.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(v, ","))
}
