// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package lifecycle

import (
	"errors"
)

// Error kinds. Every error returned by the Controller matches exactly one of these
// with errors.Is.
var (
	// ErrValidation means the request was rejected before touching the store.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound means the message never existed, expired or was destroyed.
	ErrNotFound = errors.New("message not found")

	// ErrAccessDenied means the caller is not the recipient.
	ErrAccessDenied = errors.New("access denied")

	// ErrAlreadyOpened means another open won the race.
	ErrAlreadyOpened = errors.New("message already opened")

	// ErrInternal means a store or collaborator failure. Retrying is safe.
	ErrInternal = errors.New("internal error")
)

// ErrUnknownRecipient is wrapped in a validation error when the directory does not
// know the recipient.
var ErrUnknownRecipient = errors.New("recipient not found")

// Error carries the kind of a failure and the message it concerns.
type Error struct {
	Kind      error
	MessageID string
	Err       error
}

// Error returns the kind, followed by the cause when there is one.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, messageID string, cause error) *Error {
	return &Error{Kind: kind, MessageID: messageID, Err: cause}
}

// KindOf returns the error kind of err, or ErrInternal for errors that did not come
// from the Controller.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrAccessDenied, ErrAlreadyOpened} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
