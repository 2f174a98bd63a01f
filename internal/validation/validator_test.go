// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

type sendLike struct {
	RecipientID string `json:"recipientId" validate:"required,participant"`
	PayloadKind string `json:"payloadKind" validate:"required,payloadkind"`
	Ciphertext  []byte `json:"ciphertext" validate:"required,max=8"`
	TTLSeconds  int    `json:"ttlSeconds" validate:"gt=0,lte=60"`
	Note        string `json:"-" validate:"omitempty,max=3"`
}

func validSend() sendLike {
	return sendLike{RecipientID: "bob", PayloadKind: "text", Ciphertext: []byte("abc"), TTLSeconds: 5}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*sendLike)
		field   string
		tag     string
		message string
	}{
		{name: "valid", mutate: func(*sendLike) {}},
		{
			name:    "missing recipient",
			mutate:  func(s *sendLike) { s.RecipientID = "" },
			field:   "recipientId",
			tag:     "required",
			message: "recipientId is required",
		},
		{
			name:    "recipient with slash",
			mutate:  func(s *sendLike) { s.RecipientID = "bob/../alice" },
			field:   "recipientId",
			tag:     "participant",
			message: "recipientId must be a valid participant id",
		},
		{
			name:    "unknown payload kind",
			mutate:  func(s *sendLike) { s.PayloadKind = "video" },
			field:   "payloadKind",
			tag:     "payloadkind",
			message: "payloadKind must be text or image",
		},
		{
			name:    "zero ttl",
			mutate:  func(s *sendLike) { s.TTLSeconds = 0 },
			field:   "ttlSeconds",
			tag:     "gt",
			message: "ttlSeconds must be greater than 0",
		},
		{
			name:    "negative ttl",
			mutate:  func(s *sendLike) { s.TTLSeconds = -3 },
			field:   "ttlSeconds",
			tag:     "gt",
			message: "ttlSeconds must be greater than 0",
		},
		{
			name:    "ttl above max",
			mutate:  func(s *sendLike) { s.TTLSeconds = 61 },
			field:   "ttlSeconds",
			tag:     "lte",
			message: "ttlSeconds must be less than or equal to 60",
		},
		{
			name:    "oversized ciphertext",
			mutate:  func(s *sendLike) { s.Ciphertext = make([]byte, 9) },
			field:   "ciphertext",
			tag:     "max",
			message: "ciphertext must be at most 8 bytes",
		},
		{
			name:    "json dash falls back to struct name",
			mutate:  func(s *sendLike) { s.Note = "long" },
			field:   "Note",
			tag:     "max",
			message: "Note must be at most 3 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSend()
			tt.mutate(&req)
			verr := ValidateStruct(&req)
			if tt.field == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if len(verr.Errors()) != 1 {
				t.Fatalf("got %d errors: %v", len(verr.Errors()), verr)
			}
			fe := verr.Errors()[0]
			if fe.Field() != tt.field || fe.Tag() != tt.tag || fe.Error() != tt.message {
				t.Errorf("error = {%s %s %q}, want {%s %s %q}", fe.Field(), fe.Tag(), fe.Error(), tt.field, tt.tag, tt.message)
			}
		})
	}
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	req := sendLike{PayloadKind: "gif", TTLSeconds: 0}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected errors")
	}
	if len(verr.Errors()) != 4 {
		t.Errorf("got %d errors: %v", len(verr.Errors()), verr)
	}
	if !strings.Contains(verr.Error(), "; ") {
		t.Errorf("combined message = %q", verr.Error())
	}

	fields, ok := verr.Details()["fields"].([]map[string]string)
	if !ok || len(fields) != 4 || fields[0]["field"] != "recipientId" {
		t.Errorf("details = %v", verr.Details())
	}
}

func TestValidateStruct_AsError(t *testing.T) {
	req := sendLike{}
	var err error = ValidateStruct(&req)

	var verr *RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("errors.As failed for %T", err)
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	verr := ValidateStruct("not a struct")
	if verr == nil || verr.Errors()[0].Field() != "unknown" {
		t.Errorf("ValidateStruct(string) = %v", verr)
	}
}

func TestRequestValidationError_Empty(t *testing.T) {
	verr := &RequestValidationError{}
	if verr.Error() != "validation failed" {
		t.Errorf("Error() = %q", verr.Error())
	}
}
