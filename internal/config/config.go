// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package config loads Ephemera configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config File: optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: explicit mapping, highest priority
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Store     StoreConfig     `koanf:"store"`
	Lifecycle LifecycleConfig `koanf:"lifecycle"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	NATS      NATSConfig      `koanf:"nats"`
	Push      PushConfig      `koanf:"push"`
	Directory DirectoryConfig `koanf:"directory"`
	Audit     AuditConfig     `koanf:"audit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`

	// InstanceID identifies this process on the cross-instance relay.
	// Empty means a random ID is generated at startup.
	InstanceID string `koanf:"instance_id"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// DevTokenIssuer exposes POST /api/v1/auth/token. Refused in production.
	DevTokenIssuer bool `koanf:"dev_token_issuer"`
}

// StoreConfig selects and tunes the ephemeral store backend.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend"`

	// Path is the badger data directory. Empty runs badger in-memory.
	Path string `koanf:"path"`

	// SweepInterval is how often expired records are purged (memory)
	// or the value log is garbage collected (badger).
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LifecycleConfig holds message lifecycle policy.
type LifecycleConfig struct {
	// DefaultTTLSeconds applies when a send omits ttlSeconds.
	DefaultTTLSeconds int `koanf:"default_ttl_seconds"`

	// MaxTTLSeconds bounds caller-supplied TTLs.
	MaxTTLSeconds int `koanf:"max_ttl_seconds"`

	// GraceMultiplier sets the undelivered grace window as ttlSeconds x GraceMultiplier,
	// for text and image messages alike.
	GraceMultiplier int `koanf:"grace_multiplier"`

	// MaxPayloadBytes bounds the ciphertext size.
	MaxPayloadBytes int `koanf:"max_payload_bytes"`

	// NotificationPreview is the generic, content-free preview text.
	NotificationPreview string `koanf:"notification_preview"`
}

// WebSocketConfig tunes duplex sessions.
type WebSocketConfig struct {
	WriteWait      time.Duration `koanf:"write_wait"`
	PongWait       time.Duration `koanf:"pong_wait"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`
}

// NATSConfig configures the cross-instance event relay.
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Port           int           `koanf:"port"`
	Subject        string        `koanf:"subject"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`

	// BreakerFailures is the consecutive publish failures that open the circuit breaker.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// PushConfig configures the offline push collaborator.
type PushConfig struct {
	// Mode is "log", "webhook" or "disabled".
	Mode          string        `koanf:"mode"`
	WebhookURL    string        `koanf:"webhook_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

// DirectoryConfig configures recipient resolution.
type DirectoryConfig struct {
	// Mode is "open", "static" or "http".
	Mode         string        `koanf:"mode"`
	Participants []string      `koanf:"participants"`
	URL          string        `koanf:"url"`
	Timeout      time.Duration `koanf:"timeout"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	CacheSize    int           `koanf:"cache_size"`
}

// AuditConfig configures the security audit log.
type AuditConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BufferSize  int    `koanf:"buffer_size"`
	MinLevel    string `koanf:"min_level"`
	Retain      int    `koanf:"retain"`
	LogToStdout bool   `koanf:"log_to_stdout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from defaults, an optional file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
