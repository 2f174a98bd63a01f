// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ephemera/internal/breaker"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
)

// HTTP resolves participants against a user service: GET {base}/users/{id}
// answers 200 for known users and 404 for unknown ones.
type HTTP struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[bool]
}

// NewHTTP creates an HTTP directory rooted at baseURL.
func NewHTTP(baseURL string, timeout time.Duration) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid directory url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{
		base:    strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker.New[bool](breaker.DefaultConfig("directory-http")),
	}, nil
}

// Exists implements Directory.
func (h *HTTP) Exists(ctx context.Context, participantID string) (bool, error) {
	if !ValidID(participantID) {
		metrics.DirectoryLookups.WithLabelValues(ModeHTTP, "missing").Inc()
		return false, nil
	}

	found, err := h.breaker.Execute(func() (bool, error) {
		return h.lookup(ctx, participantID)
	})
	metrics.DirectoryLookups.WithLabelValues(ModeHTTP, resultLabel(found, err)).Inc()
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("participant_id", participantID).Msg("Directory lookup failed")
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return found, nil
}

func (h *HTTP) lookup(ctx context.Context, participantID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/users/"+url.PathEscape(participantID), http.NoBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}
}
