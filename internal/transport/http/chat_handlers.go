package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/chat"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// ChatHandlers provides HTTP handlers for chat and message endpoints.
type ChatHandlers struct {
	store      store.Store
	dispatcher chat.Dispatcher
	log        *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(st store.Store, dispatcher chat.Dispatcher, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		store:      st,
		dispatcher: dispatcher,
		log:        logger,
	}
}

// StartChatRequest represents the start chat request body.
type StartChatRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// SendMessageRequest represents the HTTP send message request body.
type SendMessageRequest struct {
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// MessagesResponse wraps a chronological page of messages.
type MessagesResponse struct {
	Messages []proto.MessageData `json:"messages"`
}

// StartChat creates, or returns, the single 1:1 chat between the caller and
// another user. 201 on creation, 200 when the chat already existed.
// POST /api/chats
func (h *ChatHandlers) StartChat(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid start chat request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id is required"})
		return
	}

	if req.UserID == uid {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot start chat with yourself"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("peer_id", req.UserID).Msg("failed to load peer")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	pairKey := chat.PairKey(uid, req.UserID)
	conversation, created, err := h.store.GetOrCreatePairwise(ctx, pairKey, uid, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", req.UserID).Msg("failed to get or create chat")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp, err := h.buildChatResponse(ctx, conversation)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", conversation.ID).Msg("failed to build chat response")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Info().Int64("chat_id", conversation.ID).Int64("user_id", uid).Int64("peer_id", req.UserID).Msg("chat created")
	}
	c.JSON(status, resp)
}

// ListChats returns the caller's chats, most recently active first.
// GET /api/chats
func (h *ChatHandlers) ListChats(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	chats, err := h.store.ListChats(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list chats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(chats))
	for _, conversation := range chats {
		resp, err := h.buildChatResponse(ctx, conversation)
		if err != nil {
			h.log.Error().Err(err).Int64("chat_id", conversation.ID).Msg("failed to build chat response")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		response = append(response, resp)
	}

	c.JSON(http.StatusOK, response)
}

// ListMessages returns a chronological page of a chat's history.
// GET /api/chats/:id/messages?limit=&before_id=
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	_, conversationID, ok := h.authorizeChatAccess(c)
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(parsed, maxPageSize)
	}

	var beforeID *int64
	if raw := c.Query("before_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
			return
		}
		beforeID = &parsed
	}

	ctx := c.Request.Context()
	messages, err := h.store.ListMessages(ctx, conversationID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", conversationID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	senders := map[int64]*store.User{}
	response := MessagesResponse{Messages: make([]proto.MessageData, 0, len(messages))}
	for _, msg := range messages {
		sender, err := h.senderFor(ctx, senders, msg.SenderID)
		if err != nil {
			h.log.Error().Err(err).Int64("sender_id", msg.SenderID).Msg("failed to load sender")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		response.Messages = append(response.Messages, messageData(msg, sender))
	}

	c.JSON(http.StatusOK, response)
}

// SendMessage persists a message sent over plain HTTP and injects it into
// the same fan-out path live connections use, so participants connected
// over WebSocket receive it identically.
// POST /api/chats/:id/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	uid, conversationID, ok := h.authorizeChatAccess(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content must not be empty"})
		return
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	ctx := c.Request.Context()
	sender, err := h.store.GetUserByID(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load sender")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	msg := &store.Message{
		ChatID:   conversationID,
		SenderID: uid,
		Content:  content,
		Metadata: metadata,
	}
	if err := h.store.AppendMessage(ctx, msg); err != nil {
		h.log.Error().Err(err).Int64("chat_id", conversationID).Msg("failed to append message")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "message not saved, try again"})
		return
	}

	if err := h.dispatcher.Publish(ctx, conversationID, &chat.Event{Message: msg, Sender: sender}); err != nil {
		h.log.Error().Err(err).Int64("chat_id", conversationID).Int64("msg_id", msg.ID).Msg("failed to publish message")
	}

	c.JSON(http.StatusCreated, messageData(msg, sender))
}

// authorizeChatAccess resolves the chat ID path parameter and verifies the
// caller is a participant. Writes the error response itself when not.
func (h *ChatHandlers) authorizeChatAccess(c *gin.Context) (uid, chatID int64, ok bool) {
	uid, idOK := currentUserID(c)
	if !idOK {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, 0, false
	}

	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return 0, 0, false
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetChatByID(ctx, chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
			return 0, 0, false
		}
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to load chat")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, 0, false
	}

	isParticipant, err := h.store.IsParticipant(ctx, chatID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to check participant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, 0, false
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant"})
		return 0, 0, false
	}

	return uid, chatID, true
}

func (h *ChatHandlers) buildChatResponse(ctx context.Context, conversation *store.Chat) (ChatResponse, error) {
	participants := make([]*store.User, 0, len(conversation.Participants))
	for _, participantID := range conversation.Participants {
		user, err := h.store.GetUserByID(ctx, participantID)
		if err != nil {
			return ChatResponse{}, err
		}
		participants = append(participants, user)
	}

	var last *proto.MessageData
	lastMsg, err := h.store.LastMessage(ctx, conversation.ID)
	if err != nil {
		return ChatResponse{}, err
	}
	if lastMsg != nil {
		sender, err := h.store.GetUserByID(ctx, lastMsg.SenderID)
		if err != nil {
			return ChatResponse{}, err
		}
		data := messageData(lastMsg, sender)
		last = &data
	}

	return chatResponse(conversation, participants, last), nil
}

func (h *ChatHandlers) senderFor(ctx context.Context, cache map[int64]*store.User, senderID int64) (*store.User, error) {
	if user, ok := cache[senderID]; ok {
		return user, nil
	}
	user, err := h.store.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	cache[senderID] = user
	return user, nil
}
