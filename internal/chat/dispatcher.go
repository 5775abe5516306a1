package chat

import (
	"context"

	"github.com/rs/zerolog"
)

// Dispatcher fans a persisted message out to every connection subscribed to
// the chat, the sender's own connection included. Delivery is best-effort
// per connection: one dead recipient never blocks or fails delivery to the
// rest.
type Dispatcher interface {
	Publish(ctx context.Context, chatID int64, ev *Event) error
}

// LocalDispatcher delivers directly over the node-local registry. It is the
// whole fan-out path in single-node deployments and the per-node delivery
// leg behind the redis backplane in clustered ones.
type LocalDispatcher struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewLocalDispatcher builds a dispatcher over the given registry.
func NewLocalDispatcher(registry *Registry, logger *zerolog.Logger) *LocalDispatcher {
	return &LocalDispatcher{registry: registry, log: logger}
}

// Publish delivers ev to every member of the chat's room. A connection that
// cannot accept the event is closed asynchronously; its own teardown path
// removes it from the registry.
func (d *LocalDispatcher) Publish(_ context.Context, chatID int64, ev *Event) error {
	for _, conn := range d.registry.Members(chatID) {
		if err := conn.Deliver(ev); err != nil {
			d.log.Warn().
				Err(err).
				Str("conn_id", conn.ID).
				Int64("chat_id", chatID).
				Msg("dropping connection after failed delivery")
			go conn.Close()
		}
	}
	return nil
}
