package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/chat"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/store"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/pairchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	backplane       *chat.RedisDispatcher // nil in single-node mode
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	secret := cfg.JWTSecret
	if secret == "" {
		// Tokens won't survive a restart without a configured secret.
		secret = randomSecret()
		logger.Warn().Msg("jwt_secret not configured, using an ephemeral secret")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(secret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := chat.NewRegistry()
	local := chat.NewLocalDispatcher(registry, logger)

	var dispatcher chat.Dispatcher = local
	var backplane *chat.RedisDispatcher
	if cfg.RedisURL != "" {
		backplane, err = chat.NewRedisDispatcher(cfg.RedisURL, local, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init backplane: %w", err)
		}
		dispatcher = backplane
		logger.Info().Msg("redis backplane enabled")
	}

	server := transporthttp.NewServer(authService, st, registry, dispatcher, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		backplane:       backplane,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	if a.backplane != nil {
		go func() {
			if err := a.backplane.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error().Err(err).Msg("backplane subscription stopped")
			}
		}()
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if a.backplane != nil {
		if err := a.backplane.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close backplane")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("pairchat-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
