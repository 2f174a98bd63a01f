// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package push

import (
	"sort"
	"sync"
	"time"
)

// MaxTokensPerParticipant bounds the devices remembered for one participant.
// Registering past the limit evicts the least recently registered token.
const MaxTokensPerParticipant = 10

// TokenRegistry remembers device push tokens per participant. It is process-local;
// clients re-register on every connect.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[string]map[string]time.Time
}

// NewTokenRegistry creates an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[string]map[string]time.Time)}
}

// Register records token for participantID, refreshing it if already known.
func (r *TokenRegistry) Register(participantID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.tokens[participantID]
	if !ok {
		set = make(map[string]time.Time)
		r.tokens[participantID] = set
	}
	set[token] = time.Now()

	for len(set) > MaxTokensPerParticipant {
		var (
			oldest   string
			oldestAt time.Time
		)
		for t, at := range set {
			if oldest == "" || at.Before(oldestAt) {
				oldest, oldestAt = t, at
			}
		}
		delete(set, oldest)
	}
}

// Unregister forgets token for participantID.
func (r *TokenRegistry) Unregister(participantID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.tokens[participantID]
	delete(set, token)
	if len(set) == 0 {
		delete(r.tokens, participantID)
	}
}

// Tokens returns participantID's tokens in a stable order.
func (r *TokenRegistry) Tokens(participantID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.tokens[participantID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
