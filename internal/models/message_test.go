// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package models

import (
	"testing"
	"time"
)

func TestStateCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateNotified, true},
		{StateCreated, StateOpened, true},
		{StateNotified, StateOpened, true},
		{StateOpened, StateDestroyed, true},
		{StateCreated, StateDestroyed, true},
		{StateOpened, StateNotified, false},
		{StateOpened, StateOpened, false},
		{StateDestroyed, StateCreated, false},
		{State("bogus"), StateOpened, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateOpenable(t *testing.T) {
	for state, want := range map[State]bool{
		StateCreated:   true,
		StateNotified:  true,
		StateOpened:    false,
		StateDestroyed: false,
	} {
		if got := state.Openable(); got != want {
			t.Errorf("%s.Openable() = %v, want %v", state, got, want)
		}
	}
}

func TestMessageCloneIsDeep(t *testing.T) {
	opened := time.Now()
	m := &Message{
		ID:             "m1",
		Ciphertext:     []byte("secret"),
		SessionKeyBlob: []byte("key"),
		Auxiliary:      &Auxiliary{Thumbnail: []byte{1, 2, 3}, Width: 10},
		OpenedAt:       &opened,
		TTLSeconds:     5,
	}

	c := m.Clone()
	c.Ciphertext[0] = 'X'
	c.SessionKeyBlob[0] = 'X'
	c.Auxiliary.Thumbnail[0] = 9
	*c.OpenedAt = opened.Add(time.Hour)

	if string(m.Ciphertext) != "secret" || string(m.SessionKeyBlob) != "key" {
		t.Error("clone shares payload bytes")
	}
	if m.Auxiliary.Thumbnail[0] != 1 {
		t.Error("clone shares thumbnail bytes")
	}
	if !m.OpenedAt.Equal(opened) {
		t.Error("clone shares openedAt")
	}
	if m.TTL() != 5*time.Second {
		t.Errorf("TTL() = %v", m.TTL())
	}
	if (*Message)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

func TestPayloadKindValid(t *testing.T) {
	if !PayloadText.Valid() || !PayloadImage.Valid() || PayloadKind("video").Valid() {
		t.Error("unexpected PayloadKind.Valid result")
	}
}

func TestMessageHeaderDropsSecrets(t *testing.T) {
	m := &Message{
		ID:             "m1",
		Ciphertext:     []byte("secret"),
		SessionKeyBlob: []byte("key"),
		Auxiliary:      &Auxiliary{Thumbnail: []byte{1}, Width: 10},
		TTLSeconds:     5,
	}
	h := m.Header()
	if h.Ciphertext != nil || h.SessionKeyBlob != nil {
		t.Errorf("header kept secrets: %+v", h)
	}
	if h.Auxiliary == nil || h.Auxiliary.Width != 10 || h.TTLSeconds != 5 {
		t.Errorf("header lost metadata: %+v", h)
	}
	h.Auxiliary.Thumbnail[0] = 9
	if m.Auxiliary.Thumbnail[0] != 1 {
		t.Error("header shares auxiliary bytes with the original")
	}
	if string(m.Ciphertext) != "secret" {
		t.Error("Header modified the original")
	}

	var nilMsg *Message
	if nilMsg.Header() != nil {
		t.Error("nil Header() != nil")
	}
}
