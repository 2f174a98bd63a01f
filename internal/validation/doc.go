// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

// Package validation provides struct validation using go-playground/validator v10.
//
// The package holds a thread-safe singleton validator with two custom tags:
//
//   - participant: a non-empty participant id of at most 128 bytes without
//     whitespace, control characters or '/'
//   - payloadkind: "text" or "image"
//
// Field names in errors come from json tags, so a failure reads
// "recipientId is required" rather than "RecipientID is required".
//
// # Usage
//
//	type SendRequest struct {
//	    RecipientID string `json:"recipientId" validate:"required,participant"`
//	    TTLSeconds  int    `json:"ttlSeconds" validate:"gt=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return fmt.Errorf("invalid send: %w", verr)
//	}
package validation
