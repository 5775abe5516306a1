package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// newTestBackplane builds a dispatcher around the local delivery leg only;
// the redis client stays nil because these tests drive handlePayload
// directly with the same bytes Publish would put on the wire.
func newTestBackplane(registry *Registry) *RedisDispatcher {
	return &RedisDispatcher{
		local: NewLocalDispatcher(registry, testLogger()),
		log:   testLogger(),
	}
}

func TestBackplaneEnvelopeRoundTrip(t *testing.T) {
	registry := NewRegistry()
	d := newTestBackplane(registry)

	conn := NewConn(2, 10)
	registry.Join(10, conn)

	createdAt := time.Date(2026, 8, 30, 12, 0, 0, 123456789, time.UTC)
	msg := &store.Message{
		ID:        7,
		ChatID:    10,
		SenderID:  1,
		Content:   "hello",
		Metadata:  map[string]any{"client": "ios"},
		CreatedAt: createdAt,
	}
	sender := &store.User{
		ID:           1,
		Email:        "alice@example.com",
		FullName:     "Alice A",
		Nickname:     "alice",
		PasswordHash: "must-not-travel",
	}

	payload, err := marshalFanout(10, &Event{Message: msg, Sender: sender})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(payload), "must-not-travel") {
		t.Fatal("password hash crossed the backplane")
	}

	d.handlePayload(context.Background(), backplaneChannel(10), payload)

	got := mustDeliver(t, conn)
	if got.Message.ID != 7 || got.Message.Content != "hello" || got.Message.ChatID != 10 {
		t.Fatalf("message did not round-trip: %+v", got.Message)
	}
	if !got.Message.CreatedAt.Equal(createdAt) {
		t.Fatalf("timestamp did not round-trip: %v vs %v", got.Message.CreatedAt, createdAt)
	}
	if got.Message.Metadata["client"] != "ios" {
		t.Fatalf("metadata did not round-trip: %+v", got.Message.Metadata)
	}
	if got.Sender.ID != 1 || got.Sender.Email != "alice@example.com" || got.Sender.Nickname != "alice" {
		t.Fatalf("sender not reconstructed: %+v", got.Sender)
	}
	if got.Sender.PasswordHash != "" {
		t.Fatal("sender hash reconstructed on the receiving side")
	}
}

func TestBackplaneOrderedSelfDelivery(t *testing.T) {
	registry := NewRegistry()
	d := newTestBackplane(registry)

	sender := NewConn(1, 10)
	peer := NewConn(2, 10)
	registry.Join(10, sender)
	registry.Join(10, peer)

	contents := []string{"one", "two", "three", "four"}
	for _, content := range contents {
		payload, err := marshalFanout(10, testEvent(10, 1, content))
		if err != nil {
			t.Fatalf("marshal %q: %v", content, err)
		}
		d.handlePayload(context.Background(), backplaneChannel(10), payload)
	}

	// Per-channel order is preserved end to end, for the publishing
	// connection exactly like for everyone else.
	for _, conn := range []*Conn{sender, peer} {
		for _, want := range contents {
			got := mustDeliver(t, conn)
			if got.Message.Content != want {
				t.Fatalf("conn %s out of order: expected %q, got %q", conn.ID, want, got.Message.Content)
			}
		}
	}
}

func TestBackplaneMalformedPayloadSkipped(t *testing.T) {
	registry := NewRegistry()
	d := newTestBackplane(registry)

	conn := NewConn(2, 10)
	registry.Join(10, conn)
	ctx := context.Background()

	d.handlePayload(ctx, backplaneChannel(10), []byte("{not json"))
	assertNoEvent(t, conn)

	// The subscription keeps delivering after a bad payload.
	payload, err := marshalFanout(10, testEvent(10, 1, "after the noise"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	d.handlePayload(ctx, backplaneChannel(10), payload)

	got := mustDeliver(t, conn)
	if got.Message.Content != "after the noise" {
		t.Fatalf("unexpected content: %s", got.Message.Content)
	}
}

func TestBackplaneChannelPerChat(t *testing.T) {
	if backplaneChannel(10) == backplaneChannel(11) {
		t.Fatal("distinct chats must map to distinct channels")
	}
	if !strings.HasPrefix(backplaneChannel(10), backplanePrefix) {
		t.Fatalf("channel %q missing prefix %q", backplaneChannel(10), backplanePrefix)
	}
}
