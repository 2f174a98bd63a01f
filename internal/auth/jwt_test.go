// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/ephemera/internal/config"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

// testJWTConfig returns a standard test security config for JWT
func testJWTConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{
			name:    "valid secret",
			cfg:     testJWTConfig(),
			wantErr: false,
		},
		{
			name:    "empty secret",
			cfg:     &config.SecurityConfig{TokenTTL: time.Hour},
			wantErr: true,
		},
		{
			name:    "short secret",
			cfg:     &config.SecurityConfig{JWTSecret: "too-short", TokenTTL: time.Hour},
			wantErr: true,
		},
		{
			name:    "zero ttl uses default",
			cfg:     &config.SecurityConfig{JWTSecret: testSecret},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWTManager() unexpected error = %v", err)
			}
			if manager.ttl <= 0 {
				t.Errorf("ttl = %v", manager.ttl)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestManager(t)

	token, err := manager.GenerateToken("bob", "Bob")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ParticipantID() != "bob" || claims.Name != "Bob" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Errorf("ExpiresAt = %v", claims.ExpiresAt)
	}
}

func TestGenerateTokenRejectsInvalidParticipant(t *testing.T) {
	manager := newTestManager(t)
	for _, id := range []string{"", "bob smith", "a/b"} {
		if _, err := manager.GenerateToken(id, ""); err == nil {
			t.Errorf("GenerateToken(%q) expected error", id)
		}
	}
}

func TestValidateTokenRejects(t *testing.T) {
	manager := newTestManager(t)

	other, err := NewJWTManager(&config.SecurityConfig{JWTSecret: "another-secret-key-that-is-32-characters-plus", TokenTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, _ := other.GenerateToken("bob", "")

	expired := signClaims(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "bob",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}, jwt.SigningMethodHS256)

	noExpiry := signClaims(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "bob", Issuer: issuer}}, jwt.SigningMethodHS256)

	wrongIssuer := signClaims(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "bob",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, jwt.SigningMethodHS256)

	hs512 := signClaims(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "bob",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, jwt.SigningMethodHS512)

	badSubject := signClaims(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "bob smith",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, jwt.SigningMethodHS256)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "bob",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"malformed":    "not.a.token",
		"empty":        "",
		"wrong key":    wrongKey,
		"expired":      expired,
		"no expiry":    noExpiry,
		"wrong issuer": wrongIssuer,
		"hs512":        hs512,
		"alg none":     none,
		"invalid sub":  badSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := manager.ValidateToken(token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func signClaims(t *testing.T, claims *Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}
