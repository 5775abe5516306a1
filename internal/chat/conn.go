package chat

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

var (
	// ErrConnClosed is returned by Deliver once the connection is torn down.
	ErrConnClosed = errors.New("connection closed")
	// ErrSlowConsumer is returned when the outbound buffer is full.
	ErrSlowConsumer = errors.New("outbound buffer full")
)

const outboundBuffer = 64

// Event is the canonical broadcast payload: the persisted message plus the
// sender's identity, so every recipient can render the sender without a
// store round trip.
type Event struct {
	Message *store.Message
	Sender  *store.User
}

// Conn is the registry-visible handle for one live connection. Events are
// queued on a buffered channel drained by the transport's write loop, so
// Deliver never blocks a publisher.
type Conn struct {
	ID     string
	UserID int64
	ChatID int64

	events chan *Event
	done   chan struct{}
	once   sync.Once
}

// NewConn constructs a handle bound to one user and one chat.
func NewConn(userID, chatID int64) *Conn {
	return &Conn{
		ID:     uuid.NewString(),
		UserID: userID,
		ChatID: chatID,
		events: make(chan *Event, outboundBuffer),
		done:   make(chan struct{}),
	}
}

// Deliver enqueues ev for the write loop. A full buffer means the client is
// not draining its socket; the caller is expected to tear the connection
// down rather than wait.
func (c *Conn) Deliver(ev *Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// Events is the outbound queue drained by the transport write loop.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

// Done is closed when the connection is torn down. Events still buffered at
// that point are dropped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection dead. Idempotent and safe from any goroutine.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
