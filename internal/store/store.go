package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered account.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Nickname     string
	PasswordHash string
	CreatedAt    time.Time
}

// Chat represents a 1:1 conversation between exactly two users. The unique
// pair key guarantees at most one chat per unordered user pair.
type Chat struct {
	ID           int64
	PairKey      string
	Participants []int64 // exactly two user IDs, ascending
	CreatedAt    time.Time
	UpdatedAt    time.Time // bumped on every message append
}

// Message is a persisted chat message. Metadata is an opaque JSON object
// stored and returned as-is.
type Message struct {
	ID        int64          `json:"id"`
	ChatID    int64          `json:"chat_id"`
	SenderID  int64          `json:"sender_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with an already-hashed password.
	CreateUser(ctx context.Context, email, fullName, nickname, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// ChatStore handles conversation persistence.
type ChatStore interface {
	// GetOrCreatePairwise returns the single chat identified by pairKey,
	// creating it with both participants when absent. Creation is atomic:
	// of any set of concurrent callers for the same pair, exactly one
	// observes created == true.
	GetOrCreatePairwise(ctx context.Context, pairKey string, userA, userB int64) (chat *Chat, created bool, err error)

	// GetChatByID retrieves a chat with its participants.
	GetChatByID(ctx context.Context, id int64) (*Chat, error)

	// ListChats returns the user's chats, most recently active first.
	ListChats(ctx context.Context, userID int64) ([]*Chat, error)

	// IsParticipant reports whether the user belongs to the chat.
	IsParticipant(ctx context.Context, chatID, userID int64) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists msg, assigning its ID and CreatedAt, and bumps
	// the owning chat's updated_at in the same transaction.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a chat in chronological order.
	// If beforeID is provided, only messages older than that ID are
	// returned. Limit caps the page size.
	ListMessages(ctx context.Context, chatID int64, limit int, beforeID *int64) ([]*Message, error)

	// LastMessage returns the most recent message of a chat, or nil when
	// the chat has none.
	LastMessage(ctx context.Context, chatID int64) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
