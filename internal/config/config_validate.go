// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Rate limit bounds.
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
	minJWTSecretLength   = 32
)

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateStore,
		c.validateLifecycle,
		c.validateWebSocket,
		c.validateNATS,
		c.validatePush,
		c.validateDirectory,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.IsProduction() && c.Security.DevTokenIssuer {
		return fmt.Errorf("DEV_TOKEN_ISSUER is not allowed when ENVIRONMENT=production")
	}
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production; set explicit origins")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard CORS configuration, logged at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "memory", "badger":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: memory, badger")
	}
	if c.Store.SweepInterval < time.Second {
		return fmt.Errorf("STORE_SWEEP_INTERVAL must be at least 1s")
	}
	return nil
}

func (c *Config) validateLifecycle() error {
	l := c.Lifecycle
	if l.DefaultTTLSeconds < 1 {
		return fmt.Errorf("DEFAULT_TTL_SECONDS must be positive")
	}
	if l.MaxTTLSeconds < l.DefaultTTLSeconds {
		return fmt.Errorf("MAX_TTL_SECONDS must be >= DEFAULT_TTL_SECONDS")
	}
	if l.GraceMultiplier < 1 {
		return fmt.Errorf("GRACE_MULTIPLIER must be at least 1")
	}
	if l.MaxPayloadBytes < 1 {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	w := c.WebSocket
	if w.WriteWait <= 0 || w.PongWait <= 0 {
		return fmt.Errorf("WS_WRITE_WAIT and WS_PONG_WAIT must be positive")
	}
	if w.MaxMessageSize < 1024 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 1024 bytes")
	}
	if w.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if c.NATS.EmbeddedServer && (c.NATS.Port < 1 || c.NATS.Port > 65535) {
		return fmt.Errorf("NATS_PORT must be between 1 and 65535")
	}
	if c.NATS.BreakerFailures < 1 {
		return fmt.Errorf("NATS_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validatePush() error {
	switch c.Push.Mode {
	case "log", "disabled":
		return nil
	case "webhook":
		if err := validateHTTPURL(c.Push.WebhookURL); err != nil {
			return fmt.Errorf("PUSH_WEBHOOK_URL: %w", err)
		}
		if c.Push.RatePerSecond <= 0 || c.Push.Burst < 1 {
			return fmt.Errorf("PUSH_RATE_PER_SECOND and PUSH_BURST must be positive")
		}
		return nil
	default:
		return fmt.Errorf("PUSH_MODE must be one of: log, webhook, disabled")
	}
}

func (c *Config) validateDirectory() error {
	switch c.Directory.Mode {
	case "open":
		return nil
	case "static":
		if len(c.Directory.Participants) == 0 {
			return fmt.Errorf("DIRECTORY_PARTICIPANTS is required when DIRECTORY_MODE=static")
		}
		return nil
	case "http":
		if err := validateHTTPURL(c.Directory.URL); err != nil {
			return fmt.Errorf("DIRECTORY_URL: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("DIRECTORY_MODE must be one of: open, static, http")
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
