// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package lifecycle

import (
	"github.com/tomtom215/ephemera/internal/models"
)

// Authorize reports whether callerID may open, read, destroy or inspect msg.
// Only the recipient may. An empty caller is never authorized.
func Authorize(callerID string, msg *models.Message) error {
	if msg == nil || callerID == "" || callerID != msg.RecipientID {
		return ErrAccessDenied
	}
	return nil
}
