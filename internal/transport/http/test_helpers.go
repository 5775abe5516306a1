package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/chat"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/store"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
}

// startTestServer wires a full server against an in-memory store, with the
// local dispatcher only.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	registry := chat.NewRegistry()
	dispatcher := chat.NewLocalDispatcher(registry, &logger)

	server := NewServer(authService, st, registry, dispatcher, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		WSMsgRateLimit:    1000,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService}
}

// register creates an account over the API and returns the token and user ID.
func (e *testEnv) register(t *testing.T, email, nickname string) (string, int64) {
	t.Helper()

	resp := e.doJSON(t, http.MethodPost, "/api/register", "", map[string]any{
		"email":     email,
		"password":  "secret1",
		"full_name": nickname,
		"nickname":  nickname,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: unexpected status %d", email, resp.StatusCode)
	}

	var body AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	user, err := e.store.GetUserByEmail(context.Background(), strings.ToLower(email))
	if err != nil {
		t.Fatalf("load registered user: %v", err)
	}
	return body.Token, user.ID
}

// doJSON performs a request with an optional bearer token and JSON body.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// dialWS opens a WebSocket to a chat with the given token.
func (e *testEnv) dialWS(t *testing.T, ctx context.Context, chatID int64, token string) *websocket.Conn {
	t.Helper()

	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws/chats/" + strconv.FormatInt(chatID, 10) + "?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial chat %d: %v", chatID, err)
	}
	return conn
}
