package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// State tracks where a session is in its lifecycle.
type State int

const (
	// StateConnecting is the initial state before the handshake.
	StateConnecting State = iota
	// StateAuthenticated means the credential resolved to a live user.
	StateAuthenticated
	// StateJoined is the steady state: subscribed to one chat's room.
	StateJoined
	// StateClosed is terminal; membership is gone.
	StateClosed
)

// Authenticator resolves a bearer token to a live user.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (*store.User, error)
}

// Session owns one connection's lifecycle: handshake, authorization, room
// membership, inbound sends, teardown. The transport drives it from the
// connection's read goroutine, one frame at a time, so two sends from the
// same client can never persist out of the order they were issued. Close
// may also arrive from a teardown path on another goroutine, so lifecycle
// state is guarded by a mutex; a Close issued mid-send takes effect once
// that send has finished.
type Session struct {
	authenticator Authenticator
	chats         store.ChatStore
	messages      store.MessageStore
	registry      *Registry
	dispatcher    Dispatcher
	log           *zerolog.Logger

	mu    sync.Mutex
	state State
	user  *store.User
	chat  *store.Chat
	conn  *Conn
}

// NewSession constructs a session in the Connecting state.
func NewSession(authenticator Authenticator, chats store.ChatStore, messages store.MessageStore, registry *Registry, dispatcher Dispatcher, logger *zerolog.Logger) *Session {
	return &Session{
		authenticator: authenticator,
		chats:         chats,
		messages:      messages,
		registry:      registry,
		dispatcher:    dispatcher,
		log:           logger,
		state:         StateConnecting,
	}
}

// Authenticate resolves the bearer token presented at connection time. Any
// failure, a valid signature over a deleted user included, is unauthorized;
// the transport closes with the unauthorized code and the session never
// reaches Joined.
func (s *Session) Authenticate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return chatError(ErrCodeBadRequest, "already authenticated")
	}
	user, err := s.authenticator.AuthenticateToken(ctx, token)
	if err != nil {
		s.state = StateClosed
		return chatError(ErrCodeUnauthorized, "invalid or missing credentials")
	}

	s.user = user
	s.state = StateAuthenticated
	return nil
}

// Join checks that the authenticated user is a participant of the chat and
// registers the connection for fan-out. A valid credential on someone
// else's chat is forbidden, which is a distinct failure from unauthorized.
func (s *Session) Join(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return chatError(ErrCodeBadRequest, "join before authentication")
	}

	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		s.state = StateClosed
		return chatError(ErrCodeForbidden, "no access to this chat")
	}
	ok, err := s.chats.IsParticipant(ctx, chatID, s.user.ID)
	if err != nil {
		s.state = StateClosed
		return chatError(ErrCodeStoreUnavailable, "participant lookup failed")
	}
	if !ok {
		s.state = StateClosed
		return chatError(ErrCodeForbidden, "no access to this chat")
	}

	s.chat = chat
	s.conn = NewConn(s.user.ID, chatID)
	s.registry.Join(chatID, s.conn)
	s.state = StateJoined

	s.log.Debug().
		Int64("user_id", s.user.ID).
		Int64("chat_id", chatID).
		Str("conn_id", s.conn.ID).
		Msg("session joined chat")
	return nil
}

// Send handles one inbound send request: trim, persist, publish.
// Whitespace-only content is dropped without an error; closing or erroring
// on it would churn connections over client-side bugs. A persistence
// failure is surfaced to this sender only and nothing is broadcast.
func (s *Session) Send(ctx context.Context, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateJoined {
		return chatError(ErrCodeBadRequest, "send before join")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	msg := &store.Message{
		ChatID:   s.chat.ID,
		SenderID: s.user.ID,
		Content:  content,
		Metadata: metadata,
	}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		s.log.Error().Err(err).Int64("chat_id", s.chat.ID).Int64("user_id", s.user.ID).Msg("append message failed")
		return chatError(ErrCodeStoreUnavailable, "message not saved, try again")
	}

	if err := s.dispatcher.Publish(ctx, s.chat.ID, &Event{Message: msg, Sender: s.user}); err != nil {
		// The message is durable; a backplane hiccup only affects this
		// broadcast and is not the sender's problem.
		s.log.Error().Err(err).Int64("chat_id", s.chat.ID).Int64("msg_id", msg.ID).Msg("publish message failed")
	}
	return nil
}

// Conn returns the registry handle. Valid only once Joined.
func (s *Session) Conn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// User returns the authenticated identity. Valid once Authenticated.
func (s *Session) User() *store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the session down. Safe to call from any goroutine and any
// teardown path, any number of times: the leave is idempotent and
// membership never outlives the connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.registry.Leave(s.conn.ChatID, s.conn)
		s.conn.Close()
	}
	s.state = StateClosed
}
