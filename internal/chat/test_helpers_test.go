package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// fakeStore is an in-memory store.ChatStore + store.MessageStore for
// exercising sessions without a database.
type fakeStore struct {
	mu        sync.Mutex
	chats     map[int64]*store.Chat
	messages  []*store.Message
	nextMsgID int64
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:     make(map[int64]*store.Chat),
		nextMsgID: 1,
	}
}

func (f *fakeStore) addChat(id int64, participants ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[id] = &store.Chat{
		ID:           id,
		PairKey:      PairKey(participants[0], participants[1]),
		Participants: participants,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func (f *fakeStore) GetOrCreatePairwise(context.Context, string, int64, int64) (*store.Chat, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (f *fakeStore) GetChatByID(_ context.Context, id int64) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return chat, nil
}

func (f *fakeStore) ListChats(context.Context, int64) ([]*store.Chat, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) IsParticipant(_ context.Context, chatID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok {
		return false, nil
	}
	for _, p := range chat.Participants {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	msg.ID = f.nextMsgID
	f.nextMsgID++
	msg.CreatedAt = time.Now().UTC()
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) ListMessages(context.Context, int64, int, *int64) ([]*store.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) LastMessage(context.Context, int64) (*store.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeAuthenticator resolves tokens from a fixed map.
type fakeAuthenticator struct {
	users map[string]*store.User
}

func (f *fakeAuthenticator) AuthenticateToken(_ context.Context, token string) (*store.User, error) {
	user, ok := f.users[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return user, nil
}

func mustDeliver(t *testing.T, conn *Conn) *Event {
	t.Helper()

	select {
	case ev := <-conn.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event on connection %s", conn.ID)
		return nil
	}
}

func assertNoEvent(t *testing.T, conn *Conn) {
	t.Helper()

	select {
	case ev := <-conn.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
