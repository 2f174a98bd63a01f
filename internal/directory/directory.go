// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package directory resolves recipient identifiers. User records live in an
// external service; this package only answers whether a participant exists.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// Directory modes accepted in configuration.
const (
	ModeOpen   = "open"
	ModeStatic = "static"
	ModeHTTP   = "http"
)

// MaxIDLength bounds participant identifiers.
const MaxIDLength = 128

// ErrUnavailable means the backing directory could not be queried.
var ErrUnavailable = errors.New("recipient directory unavailable")

// Directory answers whether a participant exists.
type Directory interface {
	Exists(ctx context.Context, participantID string) (bool, error)
}

// ValidID reports whether id is a syntactically acceptable participant identifier.
func ValidID(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	return strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == '/'
	}) < 0
}

// Open resolves every syntactically valid identifier. It suits deployments where the
// token issuer is the only source of identities.
type Open struct{}

// Exists implements Directory.
func (Open) Exists(_ context.Context, participantID string) (bool, error) {
	ok := ValidID(participantID)
	metrics.DirectoryLookups.WithLabelValues(ModeOpen, resultLabel(ok, nil)).Inc()
	return ok, nil
}

// Static resolves a fixed set of identifiers.
type Static struct {
	ids map[string]struct{}
}

// NewStatic creates a Static directory over ids.
func NewStatic(ids []string) *Static {
	s := &Static{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Exists implements Directory.
func (s *Static) Exists(_ context.Context, participantID string) (bool, error) {
	_, ok := s.ids[participantID]
	metrics.DirectoryLookups.WithLabelValues(ModeStatic, resultLabel(ok, nil)).Inc()
	return ok, nil
}

// New builds the Directory selected by cfg. HTTP directories are wrapped in a cache.
func New(cfg config.DirectoryConfig) (Directory, error) {
	switch cfg.Mode {
	case ModeOpen, "":
		return Open{}, nil
	case ModeStatic:
		return NewStatic(cfg.Participants), nil
	case ModeHTTP:
		h, err := NewHTTP(cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewCached(h, cfg.CacheSize, cfg.CacheTTL, nil), nil
	default:
		return nil, fmt.Errorf("unknown directory mode %q", cfg.Mode)
	}
}

func resultLabel(found bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case found:
		return "found"
	default:
		return "missing"
	}
}
