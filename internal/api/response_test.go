// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ephemera/internal/lifecycle"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/validation"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response %q: %v", rec.Body.String(), err)
	}
	return response
}

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-1"))

	NewResponseWriter(w, r).Success(map[string]string{"message": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	response := decodeResponse(t, w)
	if !response.Success || response.Error != nil {
		t.Errorf("response = %+v", response)
	}
	if response.Meta == nil || response.Meta.Timestamp.IsZero() || response.Meta.RequestID != "req-1" {
		t.Errorf("meta = %+v", response.Meta)
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(*ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"unauthorized", func(rw *ResponseWriter) { rw.Unauthorized("no") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", func(rw *ResponseWriter) { rw.Forbidden("no") }, http.StatusForbidden, ErrCodeForbidden},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("gone") }, http.StatusNotFound, ErrCodeNotFound},
		{"gone", func(rw *ResponseWriter) { rw.Gone("opened") }, http.StatusGone, ErrCodeAlreadyOpened},
		{"too many", func(rw *ResponseWriter) { rw.TooManyRequests("slow") }, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("oops") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("down") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"validation", func(rw *ResponseWriter) { rw.ValidationError("invalid", map[string]string{"f": "x"}) }, http.StatusBadRequest, ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			tt.write(NewResponseWriter(w, httptest.NewRequest(http.MethodGet, "/test", nil)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			response := decodeResponse(t, w)
			if response.Success || response.Error == nil || response.Error.Code != tt.wantCode {
				t.Errorf("response = %+v", response)
			}
		})
	}
}

func TestResponseWriter_NoContent(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewResponseWriter(w, httptest.NewRequest(http.MethodPost, "/test", nil)).NoContent()
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestResponseWriter_LifecycleError(t *testing.T) {
	t.Parallel()

	verr := validation.ValidateStruct(&struct {
		RecipientID string `json:"recipientId" validate:"required"`
	}{})
	if verr == nil {
		t.Fatal("expected validation error")
	}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails bool
	}{
		{"not found", &lifecycle.Error{Kind: lifecycle.ErrNotFound, MessageID: "m1"}, http.StatusNotFound, ErrCodeNotFound, "m1", false},
		{"access denied", &lifecycle.Error{Kind: lifecycle.ErrAccessDenied, MessageID: "m2"}, http.StatusForbidden, ErrCodeForbidden, "m2", false},
		{"already opened", &lifecycle.Error{Kind: lifecycle.ErrAlreadyOpened, MessageID: "m3"}, http.StatusGone, ErrCodeAlreadyOpened, "m3", false},
		{"validation", &lifecycle.Error{Kind: lifecycle.ErrValidation, Err: errors.New("ttl too long")}, http.StatusBadRequest, ErrCodeValidationFailed, "", false},
		{"field validation", &lifecycle.Error{Kind: lifecycle.ErrValidation, Err: verr}, http.StatusBadRequest, ErrCodeValidationFailed, "", true},
		{"internal", &lifecycle.Error{Kind: lifecycle.ErrInternal, MessageID: "m4", Err: errors.New("disk")}, http.StatusInternalServerError, ErrCodeInternalError, "m4", false},
		{"foreign error", fmt.Errorf("boom"), http.StatusInternalServerError, ErrCodeInternalError, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			NewResponseWriter(w, httptest.NewRequest(http.MethodGet, "/messages/image/x", nil)).LifecycleError(tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			response := decodeResponse(t, w)
			if response.Error == nil {
				t.Fatal("missing error body")
			}
			if response.Error.Code != tt.wantCode || response.Error.MessageID != tt.wantMessage {
				t.Errorf("error = %+v", response.Error)
			}
			if (response.Error.Details != nil) != tt.wantDetails {
				t.Errorf("details = %v, want present=%v", response.Error.Details, tt.wantDetails)
			}
		})
	}
}
