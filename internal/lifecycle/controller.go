// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ephemera/internal/audit"
	"github.com/tomtom215/ephemera/internal/cache"
	"github.com/tomtom215/ephemera/internal/clock"
	"github.com/tomtom215/ephemera/internal/config"
	"github.com/tomtom215/ephemera/internal/directory"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/metrics"
	"github.com/tomtom215/ephemera/internal/models"
	"github.com/tomtom215/ephemera/internal/scheduler"
	"github.com/tomtom215/ephemera/internal/store"
	"github.com/tomtom215/ephemera/internal/validation"
)

// Policy defaults, used when a config value is zero.
const (
	defaultGraceMultiplier = 10
	defaultMaxTTLSeconds   = 86400
	defaultMaxPayloadBytes = 10 << 20
)

// Tombstones remember destroyed message ids so the destroyed broadcast goes out
// once and a repeated Destroy succeeds. They hold no content.
const (
	tombstoneCapacity = 100000
	tombstoneTTL      = 10 * time.Minute
)

const (
	triggerExplicit = "explicit"
	triggerTimer    = "timer"
)

// Notifier delivers lifecycle events to participants.
type Notifier interface {
	NotifyNew(ctx context.Context, msg *models.Message)
	NotifySent(ctx context.Context, senderID, messageID string, at time.Time)
	NotifyOpened(ctx context.Context, senderID, messageID string, openedAt time.Time)
	NotifyRead(ctx context.Context, senderID, messageID string, readAt time.Time)
	NotifyDestroyed(ctx context.Context, senderID, recipientID, messageID string, destroyedAt time.Time)
}

// Config wires a Controller. Store and Notifier are required.
type Config struct {
	Store     store.Store
	Notifier  Notifier
	Scheduler *scheduler.Scheduler
	Directory directory.Directory
	Audit     *audit.Logger
	Clock     clock.Clock
	Policy    config.LifecycleConfig
}

// SendRequest is a new message. TTLSeconds must already carry any default.
type SendRequest struct {
	SenderID       string             `json:"senderId" validate:"required,participant"`
	RecipientID    string             `json:"recipientId" validate:"required,participant"`
	PayloadKind    models.PayloadKind `json:"payloadKind" validate:"required,payloadkind"`
	Ciphertext     []byte             `json:"ciphertext" validate:"required,min=1"`
	SessionKeyBlob []byte             `json:"sessionKeyBlob" validate:"required_if=PayloadKind image"`
	Auxiliary      *models.Auxiliary  `json:"auxiliary"`
	TTLSeconds     int                `json:"ttlSeconds" validate:"gt=0"`

	// ClientTimestamp is the sender's clock in unix milliseconds, echoed on open.
	ClientTimestamp int64 `json:"timestamp"`
}

// SendResult acknowledges a send.
type SendResult struct {
	MessageID  string
	TTLSeconds int
	Timestamp  time.Time
}

// OpenResult is an opened message.
type OpenResult struct {
	MessageID       string
	SenderID        string
	PayloadKind     models.PayloadKind
	Ciphertext      []byte
	SessionKeyBlob  []byte
	Auxiliary       *models.Auxiliary
	TTLSeconds      int
	OpenedAt        time.Time
	ClientTimestamp int64
}

func newOpenResult(msg *models.Message) *OpenResult {
	r := &OpenResult{
		MessageID:       msg.ID,
		SenderID:        msg.SenderID,
		PayloadKind:     msg.PayloadKind,
		Ciphertext:      msg.Ciphertext,
		SessionKeyBlob:  msg.SessionKeyBlob,
		Auxiliary:       msg.Auxiliary,
		TTLSeconds:      msg.TTLSeconds,
		ClientTimestamp: msg.ClientTimestamp,
	}
	if msg.OpenedAt != nil {
		r.OpenedAt = *msg.OpenedAt
	}
	return r
}

// ImageStats summarizes the live image messages a participant sent or received.
type ImageStats struct {
	TotalImages  int   `json:"totalImages"`
	ViewedImages int   `json:"viewedImages"`
	TotalSize    int64 `json:"totalSize"`
	AverageSize  int64 `json:"averageSize"`
}

type tombstone struct {
	senderID    string
	recipientID string
}

// Controller enforces the message state machine.
type Controller struct {
	store      store.Store
	notifier   Notifier
	scheduler  *scheduler.Scheduler
	directory  directory.Directory
	audit      *audit.Logger
	clock      clock.Clock
	policy     config.LifecycleConfig
	tombstones *cache.LRU[tombstone]
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("lifecycle: store is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("lifecycle: notifier is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.New(clk)
	}
	dir := cfg.Directory
	if dir == nil {
		dir = directory.Open{}
	}

	policy := cfg.Policy
	if policy.DefaultTTLSeconds <= 0 {
		policy.DefaultTTLSeconds = models.DefaultTTLSeconds
	}
	if policy.MaxTTLSeconds <= 0 {
		policy.MaxTTLSeconds = defaultMaxTTLSeconds
	}
	if policy.GraceMultiplier <= 0 {
		policy.GraceMultiplier = defaultGraceMultiplier
	}
	if policy.MaxPayloadBytes <= 0 {
		policy.MaxPayloadBytes = defaultMaxPayloadBytes
	}

	return &Controller{
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		scheduler:  sched,
		directory:  dir,
		audit:      cfg.Audit,
		clock:      clk,
		policy:     policy,
		tombstones: cache.NewLRU[tombstone](tombstoneCapacity, tombstoneTTL, clk),
	}, nil
}

// Policy returns the effective lifecycle policy.
func (c *Controller) Policy() config.LifecycleConfig {
	return c.policy
}

// ResolveTTL returns ttl, or the default TTL when the client omitted it.
func (c *Controller) ResolveTTL(ttl *int) int {
	if ttl == nil {
		return c.policy.DefaultTTLSeconds
	}
	return *ttl
}

// GraceWindow is how long an unopened message waits for its recipient. The same
// rule applies to text and image messages.
func (c *Controller) GraceWindow(ttlSeconds int) time.Duration {
	return time.Duration(ttlSeconds) * time.Duration(c.policy.GraceMultiplier) * time.Second
}

// Send stores a new message and notifies both parties. It never waits for delivery.
func (c *Controller) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := c.validateSend(&req); err != nil {
		return nil, err
	}

	found, err := c.directory.Exists(ctx, req.RecipientID)
	if err != nil {
		return nil, newError(ErrInternal, "", fmt.Errorf("resolve recipient: %w", err))
	}
	if !found {
		return nil, newError(ErrValidation, "", ErrUnknownRecipient)
	}

	now := c.clock.Now()
	msg := &models.Message{
		ID:              uuid.NewString(),
		SenderID:        req.SenderID,
		RecipientID:     req.RecipientID,
		PayloadKind:     req.PayloadKind,
		Ciphertext:      req.Ciphertext,
		SessionKeyBlob:  req.SessionKeyBlob,
		Auxiliary:       req.Auxiliary,
		TTLSeconds:      req.TTLSeconds,
		State:           models.StateCreated,
		CreatedAt:       now,
		ClientTimestamp: req.ClientTimestamp,
	}
	if err := c.store.PutWithExpiry(ctx, msg, c.GraceWindow(msg.TTLSeconds)); err != nil {
		return nil, newError(ErrInternal, msg.ID, fmt.Errorf("store message: %w", err))
	}
	metrics.MessagesSent.WithLabelValues(string(msg.PayloadKind)).Inc()

	logging.Ctx(ctx).Debug().
		Str("message_id", msg.ID).
		Str("payload_kind", string(msg.PayloadKind)).
		Int("ttl_seconds", msg.TTLSeconds).
		Msg("Message created")

	c.notifier.NotifyNew(ctx, msg.Header())
	c.notifier.NotifySent(ctx, msg.SenderID, msg.ID, now)

	return &SendResult{MessageID: msg.ID, TTLSeconds: msg.TTLSeconds, Timestamp: now}, nil
}

func (c *Controller) validateSend(req *SendRequest) error {
	if verr := validation.ValidateStruct(req); verr != nil {
		return newError(ErrValidation, "", verr)
	}
	if req.TTLSeconds > c.policy.MaxTTLSeconds {
		return newError(ErrValidation, "", fmt.Errorf("ttlSeconds must be at most %d", c.policy.MaxTTLSeconds))
	}
	if len(req.Ciphertext) > c.policy.MaxPayloadBytes {
		return newError(ErrValidation, "", fmt.Errorf("payload exceeds %d bytes", c.policy.MaxPayloadBytes))
	}
	if req.PayloadKind == models.PayloadText && req.Auxiliary != nil {
		return newError(ErrValidation, "", errors.New("auxiliary is only allowed for image messages"))
	}
	return nil
}

// Open returns a message's content to its recipient and starts the destruction
// countdown. Exactly one of any number of concurrent opens succeeds.
func (c *Controller) Open(ctx context.Context, messageID, callerID string) (*OpenResult, error) {
	return c.open(ctx, messageID, callerID, "")
}

// OpenImage is Open restricted to image messages. A text message is reported as
// not found.
func (c *Controller) OpenImage(ctx context.Context, messageID, callerID string) (*OpenResult, error) {
	return c.open(ctx, messageID, callerID, models.PayloadImage)
}

func (c *Controller) open(ctx context.Context, messageID, callerID string, kind models.PayloadKind) (*OpenResult, error) {
	msg, err := c.loadKind(ctx, messageID, callerID, "open", kind)
	label := "unknown"
	if msg != nil {
		label = string(msg.PayloadKind)
	}
	if err == nil && !msg.State.Openable() {
		err = newError(ErrAlreadyOpened, messageID, nil)
	}
	if err == nil {
		msg, err = c.markOpened(ctx, msg, callerID, "open")
	}

	metrics.RecordOpen(label, outcomeLabel(err))
	if err != nil {
		return nil, err
	}
	return newOpenResult(msg), nil
}

// MarkViewed performs the open transition for an image whose content the client
// already holds. Viewing an already opened image is acknowledged without
// restarting its countdown.
func (c *Controller) MarkViewed(ctx context.Context, messageID, callerID string) (*OpenResult, error) {
	msg, err := c.loadKind(ctx, messageID, callerID, "viewed", models.PayloadImage)
	if err != nil {
		return nil, err
	}
	if msg.State.Openable() {
		opened, err := c.markOpened(ctx, msg, callerID, "viewed")
		switch {
		case err == nil:
			metrics.RecordOpen(string(opened.PayloadKind), outcomeLabel(nil))
			return newOpenResult(opened), nil
		case !errors.Is(err, ErrAlreadyOpened):
			return nil, err
		}
		// A concurrent open won; reload to report its open time.
		if msg, err = c.load(ctx, messageID, callerID, "viewed"); err != nil {
			return nil, err
		}
	}
	return newOpenResult(msg), nil
}

// markOpened runs the store's compare-and-set, then arms the destruction timer and
// tells the sender.
func (c *Controller) markOpened(ctx context.Context, msg *models.Message, callerID, action string) (*models.Message, error) {
	now := c.clock.Now()
	opened, result, err := c.store.CompareAndSetOpened(ctx, msg.ID, callerID, now, msg.TTL())
	if err != nil {
		return nil, newError(ErrInternal, msg.ID, fmt.Errorf("open message: %w", err))
	}
	switch result {
	case store.CASSuccess:
	case store.CASNotFound:
		return nil, newError(ErrNotFound, msg.ID, nil)
	case store.CASDenied:
		c.denied(ctx, callerID, msg.ID, action)
		return nil, newError(ErrAccessDenied, msg.ID, nil)
	default:
		return nil, newError(ErrAlreadyOpened, msg.ID, nil)
	}

	// A Destroy that slipped in after the compare-and-set has already told both
	// parties; message_opened must not follow message_destroyed.
	c.scheduleDestruction(opened)
	if _, destroyed := c.tombstones.Get(opened.ID); destroyed {
		c.scheduler.Cancel(opened.ID)
		return opened, nil
	}
	c.notifier.NotifyOpened(ctx, opened.SenderID, opened.ID, now)

	logging.Ctx(ctx).Debug().
		Str("message_id", opened.ID).
		Int("ttl_seconds", opened.TTLSeconds).
		Msg("Message opened, destruction scheduled")
	return opened, nil
}

func (c *Controller) scheduleDestruction(msg *models.Message) {
	id, senderID, recipientID := msg.ID, msg.SenderID, msg.RecipientID
	openedAt := *msg.OpenedAt
	c.scheduler.Schedule(id, msg.TTL(), func() {
		c.expire(id, senderID, recipientID, openedAt)
	})
}

// expire is the timer-driven destroy. The broadcast goes out even when the store
// has already expired the record.
func (c *Controller) expire(id, senderID, recipientID string, openedAt time.Time) {
	ctx := logging.ContextWithNewCorrelationID(context.Background())
	if _, err := c.store.Delete(ctx, id); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("message_id", id).Msg("Failed to delete expired message, store expiry will remove it")
	}
	c.broadcastDestroyed(ctx, id, senderID, recipientID, triggerTimer, &openedAt)
}

// broadcastDestroyed sends message_destroyed unless it was already sent for id.
func (c *Controller) broadcastDestroyed(ctx context.Context, id, senderID, recipientID, trigger string, openedAt *time.Time) bool {
	if _, loaded := c.tombstones.LoadOrStore(id, tombstone{senderID: senderID, recipientID: recipientID}); loaded {
		return false
	}
	now := c.clock.Now()
	c.notifier.NotifyDestroyed(ctx, senderID, recipientID, id, now)
	metrics.RecordDestroyed(trigger, openedAt, now)

	logging.Ctx(ctx).Debug().Str("message_id", id).Str("trigger", trigger).Msg("Message destroyed")
	return true
}

// Destroy deletes a message before its countdown ends and tells both parties.
// Destroying a message that this process already destroyed succeeds.
func (c *Controller) Destroy(ctx context.Context, messageID, callerID string) error {
	msg, err := c.load(ctx, messageID, callerID, "destroy")
	if errors.Is(err, ErrNotFound) {
		return c.alreadyDestroyed(ctx, messageID, callerID)
	}
	if err != nil {
		return err
	}

	c.scheduler.Cancel(messageID)
	if _, err := c.store.Delete(ctx, messageID); err != nil {
		return newError(ErrInternal, messageID, fmt.Errorf("delete message: %w", err))
	}
	c.audit.LogMessageDestroyed(ctx, callerID, messageID)
	c.broadcastDestroyed(ctx, messageID, msg.SenderID, msg.RecipientID, triggerExplicit, msg.OpenedAt)
	return nil
}

func (c *Controller) alreadyDestroyed(ctx context.Context, messageID, callerID string) error {
	ts, ok := c.tombstones.Get(messageID)
	if !ok {
		return newError(ErrNotFound, messageID, nil)
	}
	if ts.recipientID != callerID {
		c.denied(ctx, callerID, messageID, "destroy")
		return newError(ErrAccessDenied, messageID, nil)
	}
	return nil
}

// MarkRead tells the sender the recipient displayed the message. It changes neither
// state nor expiry, and is a no-op for absent messages.
func (c *Controller) MarkRead(ctx context.Context, messageID, callerID string) error {
	msg, err := c.load(ctx, messageID, callerID, "read")
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.notifier.NotifyRead(ctx, msg.SenderID, messageID, c.clock.Now())
	return nil
}

// Acknowledge records that a recipient's session received the notification. It is
// informational and a no-op for absent messages.
func (c *Controller) Acknowledge(ctx context.Context, messageID, callerID string) error {
	_, err := c.load(ctx, messageID, callerID, "ack")
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.store.MarkNotified(ctx, messageID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return newError(ErrInternal, messageID, fmt.Errorf("mark notified: %w", err))
	}
	return nil
}

// Thumbnail returns an image's auxiliary data without changing its state.
func (c *Controller) Thumbnail(ctx context.Context, messageID, callerID string) (*models.Auxiliary, error) {
	msg, err := c.loadKind(ctx, messageID, callerID, "thumbnail", models.PayloadImage)
	if err != nil {
		return nil, err
	}
	if msg.Auxiliary == nil {
		return &models.Auxiliary{}, nil
	}
	return msg.Auxiliary, nil
}

// ImageStats summarizes live image messages sent or received by participantID.
func (c *Controller) ImageStats(ctx context.Context, participantID string) (*ImageStats, error) {
	var stats ImageStats
	err := c.store.ForEach(ctx, func(m *models.Message) bool {
		if m.PayloadKind != models.PayloadImage || (m.SenderID != participantID && m.RecipientID != participantID) {
			return true
		}
		stats.TotalImages++
		if m.Auxiliary != nil {
			stats.TotalSize += m.Auxiliary.OptimizedSize
		}
		if m.State == models.StateOpened {
			stats.ViewedImages++
		}
		return true
	})
	if err != nil {
		return nil, newError(ErrInternal, "", fmt.Errorf("scan messages: %w", err))
	}
	if stats.TotalImages > 0 {
		stats.AverageSize = int64(math.Round(float64(stats.TotalSize) / float64(stats.TotalImages)))
	}
	return &stats, nil
}

// load fetches a live message and applies the access gate.
func (c *Controller) load(ctx context.Context, messageID, callerID, action string) (*models.Message, error) {
	if messageID == "" {
		return nil, newError(ErrValidation, "", errors.New("messageId is required"))
	}
	msg, err := c.store.Get(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, messageID, nil)
	}
	if err != nil {
		return nil, newError(ErrInternal, messageID, fmt.Errorf("load message: %w", err))
	}
	if err := Authorize(callerID, msg); err != nil {
		c.denied(ctx, callerID, messageID, action)
		return nil, newError(ErrAccessDenied, messageID, nil)
	}
	return msg, nil
}

// loadKind is load for callers that only handle one payload kind. An empty kind
// accepts any. The access gate runs first, so only the recipient learns the kind.
func (c *Controller) loadKind(ctx context.Context, messageID, callerID, action string, kind models.PayloadKind) (*models.Message, error) {
	msg, err := c.load(ctx, messageID, callerID, action)
	if err != nil {
		return nil, err
	}
	if kind != "" && msg.PayloadKind != kind {
		return nil, newError(ErrNotFound, messageID, nil)
	}
	return msg, nil
}

func (c *Controller) denied(ctx context.Context, callerID, messageID, action string) {
	logging.Ctx(ctx).Warn().
		Str("caller_id", callerID).
		Str("message_id", messageID).
		Str("action", action).
		Msg("Access denied")
	c.audit.LogAccessDenied(ctx, callerID, messageID, action)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrAccessDenied:
		return "access_denied"
	case ErrAlreadyOpened:
		return "already_opened"
	case ErrValidation:
		return "invalid"
	default:
		return "error"
	}
}
