// Ephemera - Ephemeral Message Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ephemera

package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/ephemera/internal/breaker"
	"github.com/tomtom215/ephemera/internal/logging"
	"github.com/tomtom215/ephemera/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type frameRecord struct {
	participant string
	frame       []byte
}

type fakeSink struct {
	mu     sync.Mutex
	frames []frameRecord
	got    chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{got: make(chan struct{}, 16)}
}

func (s *fakeSink) SendFrame(participantID string, frame []byte) int {
	s.mu.Lock()
	s.frames = append(s.frames, frameRecord{participantID, frame})
	s.mu.Unlock()
	s.got <- struct{}{}
	return 1
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
}

func newTestRelay(t *testing.T, ps *gochannel.GoChannel, origin string, sink FrameSink) *Relay {
	t.Helper()
	r, err := New(Config{Publisher: ps, Subscriber: ps, Topic: "ephemera.events", Origin: origin, Sink: sink})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNewValidates(t *testing.T) {
	ps := newPubSub()
	defer ps.Close()

	if _, err := New(Config{Subscriber: ps, Topic: "t", Sink: newFakeSink()}); err == nil {
		t.Error("missing publisher accepted")
	}
	if _, err := New(Config{Publisher: ps, Subscriber: ps, Topic: "t"}); err == nil {
		t.Error("missing sink accepted")
	}
	if _, err := New(Config{Publisher: ps, Subscriber: ps, Sink: newFakeSink()}); err == nil {
		t.Error("missing topic accepted")
	}

	r, err := New(Config{Publisher: ps, Subscriber: ps, Topic: "t", Sink: newFakeSink()})
	if err != nil {
		t.Fatal(err)
	}
	if r.Origin() == "" {
		t.Error("origin not generated")
	}
}

func TestRelayDeliversToOtherInstance(t *testing.T) {
	ps := newPubSub()
	defer ps.Close()

	sinkA, sinkB := newFakeSink(), newFakeSink()
	a := newTestRelay(t, ps, "instance-a", sinkA)
	b := newTestRelay(t, ps, "instance-b", sinkB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Serve(ctx) }()
	go func() { _ = b.Serve(ctx) }()

	ev := websocket.MessageOpened{MessageID: "m1", OpenedAt: 1700000000000}
	if err := a.Publish(ctx, "alice", ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-sinkB.got:
	case <-time.After(5 * time.Second):
		t.Fatal("instance B never received the event")
	}

	sinkB.mu.Lock()
	rec := sinkB.frames[0]
	sinkB.mu.Unlock()
	if rec.participant != "alice" {
		t.Errorf("participant = %q", rec.participant)
	}
	decoded, err := websocket.DecodeOutbound(rec.frame)
	if err != nil {
		t.Fatalf("DecodeOutbound() error = %v", err)
	}
	if got, ok := decoded.(websocket.MessageOpened); !ok || got.MessageID != "m1" {
		t.Errorf("decoded = %#v", decoded)
	}

	// Give A a chance to consume its own message before asserting it was skipped.
	time.Sleep(100 * time.Millisecond)
	if sinkA.count() != 0 {
		t.Errorf("origin instance re-delivered %d frames", sinkA.count())
	}
}

func TestHandleSkipsDuplicatesAndInvalid(t *testing.T) {
	ps := newPubSub()
	defer ps.Close()
	sink := newFakeSink()
	r := newTestRelay(t, ps, "self", sink)

	valid := message.NewMessage("uuid-1", []byte(`{"participant":"bob","frame":{"type":"pong"}}`))
	valid.Metadata.Set(MetadataOrigin, "other")
	r.handle(valid)
	r.handle(valid)
	if sink.count() != 1 {
		t.Errorf("duplicate delivered: count = %d", sink.count())
	}

	own := message.NewMessage("uuid-2", valid.Payload)
	own.Metadata.Set(MetadataOrigin, "self")
	r.handle(own)

	for i, payload := range []string{`not json`, `{"participant":"","frame":{}}`, `{"participant":"bob"}`} {
		bad := message.NewMessage("bad-"+string(rune('a'+i)), []byte(payload))
		bad.Metadata.Set(MetadataOrigin, "other")
		r.handle(bad)
	}
	if sink.count() != 1 {
		t.Errorf("count = %d, want 1", sink.count())
	}
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(string, ...*message.Message) error {
	p.calls++
	return errors.New("nats unavailable")
}

func (p *failingPublisher) Close() error { return nil }

func TestPublishBreakerOpens(t *testing.T) {
	ps := newPubSub()
	defer ps.Close()
	pub := &failingPublisher{}

	r, err := New(Config{
		Publisher:  pub,
		Subscriber: ps,
		Topic:      "t",
		Sink:       newFakeSink(),
		Breaker:    breaker.Config{Name: "relay-test", FailureThreshold: 2, Timeout: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := r.Publish(ctx, "bob", websocket.Pong{}); err == nil || breaker.IsOpen(err) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if err := r.Publish(ctx, "bob", websocket.Pong{}); !breaker.IsOpen(err) {
		t.Errorf("Publish() with open breaker = %v", err)
	}
	if pub.calls != 2 {
		t.Errorf("publisher called %d times, want 2", pub.calls)
	}
}

func TestPublishAfterClose(t *testing.T) {
	ps := newPubSub()
	r := newTestRelay(t, ps, "self", newFakeSink())
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := r.Publish(context.Background(), "bob", websocket.Pong{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close = %v", err)
	}
}

func TestEmbeddedServerRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}
	srv, err := NewEmbeddedServer(-1)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer srv.Shutdown()
	if !srv.IsRunning() || srv.ClientURL() == "" {
		t.Fatal("embedded server not running")
	}
}
