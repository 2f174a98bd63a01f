// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

/*
Package models defines the message record shared by the store, the lifecycle
controller and the transport layers.

A Message moves through the states created, notified, opened and destroyed, in that
order and never backwards. Destroyed is never persisted: destroying a message
deletes its record.
*/
package models

import (
	"time"
)

// DefaultTTLSeconds is the post-open destruction delay used when none is supplied.
const DefaultTTLSeconds = 5

// PayloadKind distinguishes text from image messages.
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadImage PayloadKind = "image"
)

// Valid reports whether k is a known payload kind.
func (k PayloadKind) Valid() bool {
	return k == PayloadText || k == PayloadImage
}

// State is a message lifecycle state.
type State string

const (
	StateCreated   State = "created"
	StateNotified  State = "notified"
	StateOpened    State = "opened"
	StateDestroyed State = "destroyed"
)

var stateRank = map[State]int{
	StateCreated:   0,
	StateNotified:  1,
	StateOpened:    2,
	StateDestroyed: 3,
}

// Rank returns the position of s in the lifecycle, or -1 for an unknown state.
func (s State) Rank() int {
	if r, ok := stateRank[s]; ok {
		return r
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
// Notified is optional, so created may jump straight to opened.
func (s State) CanTransitionTo(next State) bool {
	from, to := s.Rank(), next.Rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// Openable reports whether a message in state s may still be opened.
func (s State) Openable() bool {
	return s == StateCreated || s == StateNotified
}

// Auxiliary is metadata safe to expose before a message is opened.
// It never carries the payload itself.
type Auxiliary struct {
	Thumbnail        []byte  `json:"thumbnail,omitempty"`
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	ImageHash        string  `json:"imageHash,omitempty"`
	OriginalSize     int64   `json:"originalSize,omitempty"`
	OptimizedSize    int64   `json:"optimizedSize,omitempty"`
	CompressionRatio float64 `json:"compressionRatio,omitempty"`
}

// Message is the ephemeral message record.
type Message struct {
	ID             string      `json:"id"`
	SenderID       string      `json:"senderId"`
	RecipientID    string      `json:"recipientId"`
	PayloadKind    PayloadKind `json:"payloadKind"`
	Ciphertext     []byte      `json:"ciphertext"`
	SessionKeyBlob []byte      `json:"sessionKeyBlob,omitempty"`
	Auxiliary      *Auxiliary  `json:"auxiliary,omitempty"`
	TTLSeconds     int         `json:"ttlSeconds"`
	State          State       `json:"state"`
	CreatedAt      time.Time   `json:"createdAt"`
	OpenedAt       *time.Time  `json:"openedAt,omitempty"`

	// ClientTimestamp is the sender-supplied send time in unix milliseconds, echoed back on open.
	ClientTimestamp int64 `json:"clientTimestamp,omitempty"`
}

// TTL returns the post-open destruction delay.
func (m *Message) TTL() time.Duration {
	return time.Duration(m.TTLSeconds) * time.Second
}

// Clone returns a deep copy so callers never share byte slices with a store.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Ciphertext = cloneBytes(m.Ciphertext)
	c.SessionKeyBlob = cloneBytes(m.SessionKeyBlob)
	if m.Auxiliary != nil {
		aux := *m.Auxiliary
		aux.Thumbnail = cloneBytes(m.Auxiliary.Thumbnail)
		c.Auxiliary = &aux
	}
	if m.OpenedAt != nil {
		t := *m.OpenedAt
		c.OpenedAt = &t
	}
	return &c
}

// Header returns a copy without the ciphertext or the session key, for handing to
// code that only needs metadata.
func (m *Message) Header() *Message {
	if m == nil {
		return nil
	}
	c := m.Clone()
	c.Ciphertext = nil
	c.SessionKeyBlob = nil
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
