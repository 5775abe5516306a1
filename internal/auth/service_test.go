package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

func testJWTConfig() *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "pairchat",
		Audience: "pairchat-clients",
		TTL:      time.Hour,
	}
}

func newTestService(t *testing.T) *auth.Service {
	t.Helper()

	s, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return auth.NewService(s, testJWTConfig())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "Alice@Example.com", "secret1", "Alice A", "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token from register")
	}

	// Email is normalized to lowercase, so the original casing logs in too.
	loginToken, err := svc.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateToken(loginToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("expected normalized email in claims, got %q", claims.Email)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob@example.com", "secret1", "Bob", "bob"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "BOB@example.com", "other-pass", "Bob 2", "bob2"); !errors.Is(err, auth.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "secret1", "", ""); !errors.Is(err, auth.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, "ok@example.com", "short", "", ""); !errors.Is(err, auth.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "secret1", "Carol", "carol"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "carol@example.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestAuthenticateToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "dave@example.com", "secret1", "Dave", "dave")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.AuthenticateToken(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "dave@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.AuthenticateToken(ctx, ""); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
	if _, err := svc.AuthenticateToken(ctx, "garbage.token.here"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for garbage token, got %v", err)
	}
}

func TestAuthenticateTokenDeletedUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// A well-signed token whose subject never existed must not authenticate.
	orphan, err := auth.GenerateToken(testJWTConfig(), 9999, "ghost@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.AuthenticateToken(ctx, orphan); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	svc := newTestService(t)

	foreign := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "someone-else",
		Audience: "pairchat-clients",
		TTL:      time.Hour,
	}
	token, err := auth.GenerateToken(foreign, 1, "x@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected issuer mismatch to fail validation")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t)

	expired := testJWTConfig()
	expired.TTL = -time.Minute
	token, err := auth.GenerateToken(expired, 1, "x@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatal("password stored in the clear")
	}
	if err := auth.ComparePassword(hash, "secret1"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := auth.ComparePassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch for wrong password")
	}
}
