package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with an already-hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, fullName, nickname, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (email, full_name, nickname, password_hash)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, email, fullName, nickname, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, nickname, password_hash, created_at
		FROM users
		WHERE id = ?
	`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, nickname, password_hash, created_at
		FROM users
		WHERE email = ?
	`, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Nickname,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== ChatStore implementation ====

// GetOrCreatePairwise returns the single chat for pairKey, creating it with
// both participants when absent. The unique index on pair_key plus
// ON CONFLICT DO NOTHING makes concurrent creation race-free: exactly one
// caller inserts a row and observes created == true.
func (s *SQLiteStore) GetOrCreatePairwise(ctx context.Context, pairKey string, userA, userB int64) (*store.Chat, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO chats (pair_key) VALUES (?)
		ON CONFLICT(pair_key) DO NOTHING
	`, pairKey)
	if err != nil {
		return nil, false, fmt.Errorf("insert chat: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	created := affected == 1

	if created {
		chatID, err := result.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("get last insert id: %w", err)
		}
		memberQuery := `INSERT INTO chat_participants (chat_id, user_id) VALUES (?, ?)`
		if _, err := tx.ExecContext(ctx, memberQuery, chatID, userA); err != nil {
			return nil, false, fmt.Errorf("add participant: %w", err)
		}
		if _, err := tx.ExecContext(ctx, memberQuery, chatID, userB); err != nil {
			return nil, false, fmt.Errorf("add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	chat, err := s.getChatByPairKey(ctx, pairKey)
	if err != nil {
		return nil, false, err
	}
	return chat, created, nil
}

// GetChatByID retrieves a chat with its participants.
func (s *SQLiteStore) GetChatByID(ctx context.Context, id int64) (*store.Chat, error) {
	return s.scanChat(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, pair_key, created_at, updated_at
		FROM chats
		WHERE id = ?
	`, id))
}

func (s *SQLiteStore) getChatByPairKey(ctx context.Context, pairKey string) (*store.Chat, error) {
	return s.scanChat(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, pair_key, created_at, updated_at
		FROM chats
		WHERE pair_key = ?
	`, pairKey))
}

func (s *SQLiteStore) scanChat(ctx context.Context, row *sql.Row) (*store.Chat, error) {
	var chat store.Chat
	err := row.Scan(&chat.ID, &chat.PairKey, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query chat: %w", err)
	}

	participants, err := s.chatParticipants(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	chat.Participants = participants

	return &chat, nil
}

func (s *SQLiteStore) chatParticipants(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_participants
		WHERE chat_id = ?
		ORDER BY user_id
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, userID)
	}
	return participants, rows.Err()
}

// ListChats returns the user's chats, most recently active first.
func (s *SQLiteStore) ListChats(ctx context.Context, userID int64) ([]*store.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.pair_key, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []*store.Chat
	for rows.Next() {
		var chat store.Chat
		if err := rows.Scan(&chat.ID, &chat.PairKey, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, &chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, chat := range chats {
		participants, err := s.chatParticipants(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		chat.Participants = participants
	}

	return chats, nil
}

// IsParticipant reports whether the user belongs to the chat.
func (s *SQLiteStore) IsParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM chat_participants
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query participant: %w", err)
	}
	return exists > 0, nil
}

// ==== MessageStore implementation ====

// AppendMessage persists msg, assigns its ID and CreatedAt, and bumps the
// owning chat's updated_at in the same transaction so recency ordering
// tracks message activity.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, sender_id, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ChatID, msg.SenderID, msg.Content, string(metadataJSON), now)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chats SET updated_at = ? WHERE id = ?
	`, now, msg.ChatID); err != nil {
		return fmt.Errorf("bump chat updated_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	msg.Metadata = metadata
	msg.CreatedAt = now
	return nil
}

// ListMessages retrieves messages from a chat in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	var query string
	var args []any

	if beforeID != nil {
		query = `
			SELECT id, chat_id, sender_id, content, metadata, created_at
			FROM messages
			WHERE chat_id = ? AND id < ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`
		args = []any{chatID, *beforeID, limit}
	} else {
		query = `
			SELECT id, chat_id, sender_id, content, metadata, created_at
			FROM messages
			WHERE chat_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`
		args = []any{chatID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// LastMessage returns the most recent message of a chat, or nil when the
// chat has none.
func (s *SQLiteStore) LastMessage(ctx context.Context, chatID int64) (*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, metadata, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query last message: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMessage(rows)
}

func scanMessage(rows *sql.Rows) (*store.Message, error) {
	var msg store.Message
	var metadataJSON string
	if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &metadataJSON, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &msg.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &msg, nil
}
