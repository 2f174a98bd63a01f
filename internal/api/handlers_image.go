// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ephemera/internal/auth"
	"github.com/tomtom215/ephemera/internal/lifecycle"
	"github.com/tomtom215/ephemera/internal/models"
	"github.com/tomtom215/ephemera/internal/validation"
)

// maxThumbnailBytes bounds the pre-open preview.
const maxThumbnailBytes = 256 << 10

// Dimensions are an image's pixel size.
type Dimensions struct {
	Width  int `json:"width" validate:"gte=0"`
	Height int `json:"height" validate:"gte=0"`
}

// SendImageRequest is the body of POST /messages/send-image. Binary fields are base64.
// A missing ttl takes the server default.
type SendImageRequest struct {
	RecipientID         string      `json:"recipientId" validate:"required,participant"`
	EncryptedImage      []byte      `json:"encryptedImage" validate:"required"`
	EncryptedSessionKey []byte      `json:"encryptedSessionKey" validate:"required"`
	ImageHash           string      `json:"imageHash" validate:"omitempty,hexadecimal,max=128"`
	Thumbnail           []byte      `json:"thumbnail" validate:"max=262144"`
	Dimensions          *Dimensions `json:"dimensions"`
	OriginalSize        int64       `json:"originalSize" validate:"gte=0"`
	OptimizedSize       int64       `json:"optimizedSize" validate:"gte=0"`
	CompressionRatio    float64     `json:"compressionRatio" validate:"gte=0"`
	TTL                 *int        `json:"ttl"`
	Timestamp           int64       `json:"timestamp"`
}

// SendImageResponse acknowledges an image send.
type SendImageResponse struct {
	MessageID string `json:"messageId"`
	TTL       int    `json:"ttl"`
	Timestamp int64  `json:"timestamp"`
}

// ImageResponse is an opened image.
type ImageResponse struct {
	MessageID           string      `json:"messageId"`
	SenderID            string      `json:"senderId"`
	EncryptedImage      []byte      `json:"encryptedImage"`
	EncryptedSessionKey []byte      `json:"encryptedSessionKey"`
	ImageHash           string      `json:"imageHash,omitempty"`
	Dimensions          *Dimensions `json:"dimensions,omitempty"`
	TTL                 int         `json:"ttl"`
	OpenedAt            int64       `json:"openedAt"`
	Timestamp           int64       `json:"timestamp,omitempty"`
}

// ThumbnailResponse is the auxiliary data visible before opening.
type ThumbnailResponse struct {
	MessageID        string      `json:"messageId"`
	Thumbnail        []byte      `json:"thumbnail,omitempty"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
	ImageHash        string      `json:"imageHash,omitempty"`
	OriginalSize     int64       `json:"originalSize,omitempty"`
	OptimizedSize    int64       `json:"optimizedSize,omitempty"`
	CompressionRatio float64     `json:"compressionRatio,omitempty"`
}

// ViewedResponse acknowledges POST /messages/image/{id}/viewed.
type ViewedResponse struct {
	MessageID string `json:"messageId"`
	OpenedAt  int64  `json:"openedAt"`
}

func dimensionsOf(aux *models.Auxiliary) *Dimensions {
	if aux == nil || (aux.Width == 0 && aux.Height == 0) {
		return nil
	}
	return &Dimensions{Width: aux.Width, Height: aux.Height}
}

// sendImageBodyLimit allows for base64 expansion of the largest accepted payload
// plus its thumbnail.
func (h *Handler) sendImageBodyLimit() int64 {
	return int64(h.controller.Policy().MaxPayloadBytes)*4/3 + 2*maxThumbnailBytes + maxJSONBodyBytes
}

// SendImage stores an encrypted image for its recipient and notifies them.
func (h *Handler) SendImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SendImageRequest
	if err := decodeJSON(w, r, h.sendImageBodyLimit(), &req); err != nil {
		rw.BadRequest(bodyErrorMessage(err))
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError("Request validation failed", verr.Details())
		return
	}

	aux := &models.Auxiliary{
		Thumbnail:        req.Thumbnail,
		ImageHash:        req.ImageHash,
		OriginalSize:     req.OriginalSize,
		OptimizedSize:    req.OptimizedSize,
		CompressionRatio: req.CompressionRatio,
	}
	if req.Dimensions != nil {
		aux.Width, aux.Height = req.Dimensions.Width, req.Dimensions.Height
	}

	res, err := h.controller.Send(r.Context(), lifecycle.SendRequest{
		SenderID:        auth.ParticipantFromContext(r.Context()),
		RecipientID:     req.RecipientID,
		PayloadKind:     models.PayloadImage,
		Ciphertext:      req.EncryptedImage,
		SessionKeyBlob:  req.EncryptedSessionKey,
		Auxiliary:       aux,
		TTLSeconds:      h.controller.ResolveTTL(req.TTL),
		ClientTimestamp: req.Timestamp,
	})
	if err != nil {
		rw.LifecycleError(err)
		return
	}

	rw.Success(SendImageResponse{
		MessageID: res.MessageID,
		TTL:       res.TTLSeconds,
		Timestamp: unixMilli(res.Timestamp),
	})
}

// GetImage returns an image's content to its recipient and starts the destruction
// countdown. A second fetch gets 410.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	res, err := h.controller.OpenImage(r.Context(), chi.URLParam(r, "id"), auth.ParticipantFromContext(r.Context()))
	if err != nil {
		rw.LifecycleError(err)
		return
	}

	resp := ImageResponse{
		MessageID:           res.MessageID,
		SenderID:            res.SenderID,
		EncryptedImage:      res.Ciphertext,
		EncryptedSessionKey: res.SessionKeyBlob,
		Dimensions:          dimensionsOf(res.Auxiliary),
		TTL:                 res.TTLSeconds,
		OpenedAt:            unixMilli(res.OpenedAt),
		Timestamp:           res.ClientTimestamp,
	}
	if res.Auxiliary != nil {
		resp.ImageHash = res.Auxiliary.ImageHash
	}
	rw.Success(resp)
}

// GetThumbnail returns an image's auxiliary data without opening it.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	aux, err := h.controller.Thumbnail(r.Context(), id, auth.ParticipantFromContext(r.Context()))
	if err != nil {
		rw.LifecycleError(err)
		return
	}

	rw.Success(ThumbnailResponse{
		MessageID:        id,
		Thumbnail:        aux.Thumbnail,
		Dimensions:       dimensionsOf(aux),
		ImageHash:        aux.ImageHash,
		OriginalSize:     aux.OriginalSize,
		OptimizedSize:    aux.OptimizedSize,
		CompressionRatio: aux.CompressionRatio,
	})
}

// MarkImageViewed opens an image without returning its content.
func (h *Handler) MarkImageViewed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	res, err := h.controller.MarkViewed(r.Context(), chi.URLParam(r, "id"), auth.ParticipantFromContext(r.Context()))
	if err != nil {
		rw.LifecycleError(err)
		return
	}
	rw.Success(ViewedResponse{MessageID: res.MessageID, OpenedAt: unixMilli(res.OpenedAt)})
}

// ImageStats summarizes the caller's live image messages.
func (h *Handler) ImageStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.controller.ImageStats(r.Context(), auth.ParticipantFromContext(r.Context()))
	if err != nil {
		rw.LifecycleError(err)
		return
	}
	rw.Success(stats)
}
