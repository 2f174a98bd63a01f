// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ephemera/config.yaml",
	"/etc/ephemera/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are keys that arrive as comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"directory.participants",
}

// defaultConfig returns a Config with every default applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8460,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			TokenTTL:        7 * 24 * time.Hour,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Store: StoreConfig{
			Backend:       "memory",
			Path:          "",
			SweepInterval: 30 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			DefaultTTLSeconds:   5,
			MaxTTLSeconds:       86400,
			GraceMultiplier:     10,
			MaxPayloadBytes:     10 << 20,
			NotificationPreview: "New ephemeral message",
		},
		WebSocket: WebSocketConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			MaxMessageSize: 16 << 20,
			SendBuffer:     256,
		},
		NATS: NATSConfig{
			Enabled:         false,
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  false,
			Port:            4222,
			Subject:         "ephemera.events",
			MaxReconnects:   10,
			ReconnectWait:   time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Push: PushConfig{
			Mode:          "log",
			Timeout:       5 * time.Second,
			RatePerSecond: 50,
			Burst:         10,
		},
		Directory: DirectoryConfig{
			Mode:      "open",
			Timeout:   3 * time.Second,
			CacheTTL:  5 * time.Minute,
			CacheSize: 10000,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1000,
			MinLevel:    "info",
			Retain:      1000,
			LogToStdout: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers defaults, the optional config file and environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields splits comma-separated string values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",
	"instance_id":  "server.instance_id",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"token_ttl":           "security.token_ttl",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"dev_token_issuer":    "security.dev_token_issuer",

	// Store
	"store_backend":        "store.backend",
	"store_path":           "store.path",
	"store_sweep_interval": "store.sweep_interval",

	// Lifecycle
	"default_ttl_seconds":  "lifecycle.default_ttl_seconds",
	"max_ttl_seconds":      "lifecycle.max_ttl_seconds",
	"grace_multiplier":     "lifecycle.grace_multiplier",
	"max_payload_bytes":    "lifecycle.max_payload_bytes",
	"notification_preview": "lifecycle.notification_preview",

	// WebSocket
	"ws_write_wait":       "websocket.write_wait",
	"ws_pong_wait":        "websocket.pong_wait",
	"ws_max_message_size": "websocket.max_message_size",
	"ws_send_buffer":      "websocket.send_buffer",

	// NATS relay
	"nats_enabled":          "nats.enabled",
	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded_server",
	"nats_port":             "nats.port",
	"nats_subject":          "nats.subject",
	"nats_max_reconnects":   "nats.max_reconnects",
	"nats_reconnect_wait":   "nats.reconnect_wait",
	"nats_breaker_failures": "nats.breaker_failures",
	"nats_breaker_timeout":  "nats.breaker_timeout",

	// Offline push
	"push_mode":            "push.mode",
	"push_webhook_url":     "push.webhook_url",
	"push_timeout":         "push.timeout",
	"push_rate_per_second": "push.rate_per_second",
	"push_burst":           "push.burst",

	// Directory
	"directory_mode":         "directory.mode",
	"directory_participants": "directory.participants",
	"directory_url":          "directory.url",
	"directory_timeout":      "directory.timeout",
	"directory_cache_ttl":    "directory.cache_ttl",
	"directory_cache_size":   "directory.cache_size",

	// Audit
	"audit_enabled":       "audit.enabled",
	"audit_buffer_size":   "audit.buffer_size",
	"audit_min_level":     "audit.min_level",
	"audit_retain":        "audit.retain",
	"audit_log_to_stdout": "audit.log_to_stdout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables return "" so unrelated environment does not leak into config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
