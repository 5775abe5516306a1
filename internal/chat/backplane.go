package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

const backplanePrefix = "pairchat.chat."

// fanoutEnvelope is the backplane wire format for one published event.
type fanoutEnvelope struct {
	ChatID  int64          `json:"chat_id"`
	Message *store.Message `json:"message"`
	Sender  fanoutSender   `json:"sender"`
}

type fanoutSender struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Nickname string `json:"nickname"`
}

// RedisDispatcher propagates publishes through one redis pub/sub channel per
// chat. Every node, the publishing one included, fans out to its local
// connections when the message comes back over its subscription; redis
// preserves per-channel order, which keeps per-chat delivery order intact
// across nodes.
type RedisDispatcher struct {
	client *redis.Client
	local  *LocalDispatcher
	log    *zerolog.Logger
}

// NewRedisDispatcher connects to redis and wraps the local dispatcher as the
// per-node delivery leg.
func NewRedisDispatcher(url string, local *LocalDispatcher, logger *zerolog.Logger) (*RedisDispatcher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisDispatcher{client: client, local: local, log: logger}, nil
}

func backplaneChannel(chatID int64) string {
	return fmt.Sprintf("%s%d", backplanePrefix, chatID)
}

// marshalFanout encodes one event for the backplane. Only the sender's
// public identity crosses the wire.
func marshalFanout(chatID int64, ev *Event) ([]byte, error) {
	return json.Marshal(fanoutEnvelope{
		ChatID:  chatID,
		Message: ev.Message,
		Sender: fanoutSender{
			ID:       ev.Sender.ID,
			Email:    ev.Sender.Email,
			FullName: ev.Sender.FullName,
			Nickname: ev.Sender.Nickname,
		},
	})
}

// Publish pushes the event onto the chat's channel. Local delivery happens
// when the subscription loop receives it back, exactly like on every other
// node.
func (d *RedisDispatcher) Publish(ctx context.Context, chatID int64, ev *Event) error {
	payload, err := marshalFanout(chatID, ev)
	if err != nil {
		return fmt.Errorf("marshal fanout envelope: %w", err)
	}

	if err := d.client.Publish(ctx, backplaneChannel(chatID), payload).Err(); err != nil {
		return fmt.Errorf("publish to backplane: %w", err)
	}
	return nil
}

// Run consumes the backplane subscription until ctx is cancelled. It must be
// running for any delivery, same-node delivery included, to happen.
func (d *RedisDispatcher) Run(ctx context.Context) error {
	sub := d.client.PSubscribe(ctx, backplanePrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			d.handlePayload(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// handlePayload decodes one backplane payload and hands it to the local
// delivery leg. A payload that doesn't decode is dropped; it must not stall
// the subscription.
func (d *RedisDispatcher) handlePayload(ctx context.Context, channel string, payload []byte) {
	var env fanoutEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		d.log.Warn().Err(err).Str("channel", channel).Msg("malformed backplane payload")
		return
	}
	ev := &Event{
		Message: env.Message,
		Sender: &store.User{
			ID:       env.Sender.ID,
			Email:    env.Sender.Email,
			FullName: env.Sender.FullName,
			Nickname: env.Sender.Nickname,
		},
	}
	_ = d.local.Publish(ctx, env.ChatID, ev)
}

// Close releases the redis client.
func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
