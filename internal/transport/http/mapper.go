package http

import (
	"time"

	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

func userData(u *store.User) proto.UserData {
	return proto.UserData{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Nickname: u.Nickname,
	}
}

func messageData(msg *store.Message, sender *store.User) proto.MessageData {
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return proto.MessageData{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Sender:    userData(sender),
		Content:   msg.Content,
		Metadata:  metadata,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ChatResponse represents a chat in API responses, with enough context for
// a chat-list display.
type ChatResponse struct {
	ID           int64              `json:"id"`
	Participants []proto.UserData   `json:"participants"`
	CreatedAt    string             `json:"created_at"`
	UpdatedAt    string             `json:"updated_at"`
	LastMessage  *proto.MessageData `json:"last_message"`
}

func chatResponse(chat *store.Chat, participants []*store.User, last *proto.MessageData) ChatResponse {
	users := make([]proto.UserData, 0, len(participants))
	for _, u := range participants {
		users = append(users, userData(u))
	}
	return ChatResponse{
		ID:           chat.ID,
		Participants: users,
		CreatedAt:    chat.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    chat.UpdatedAt.UTC().Format(time.RFC3339Nano),
		LastMessage:  last,
	}
}
