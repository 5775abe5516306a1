package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/chat"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(authService *auth.Service, st store.Store, registry *chat.Registry, dispatcher chat.Dispatcher, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	chatHandlers := NewChatHandlers(st, dispatcher, logger)
	wsHandler := NewWSHandler(authService, st, registry, dispatcher, cfg.WSMsgRateLimit, logger)

	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)

	authorized := router.Group("/api", AuthMiddleware(authService, logger))
	authorized.GET("/me", apiHandlers.Me)
	authorized.POST("/chats", chatHandlers.StartChat)
	authorized.GET("/chats", chatHandlers.ListChats)
	authorized.GET("/chats/:id/messages", chatHandlers.ListMessages)
	authorized.POST("/chats/:id/messages", chatHandlers.SendMessage)

	// The WS endpoint authenticates via query parameter, not the bearer
	// middleware; rejection happens with close codes after the upgrade.
	router.GET("/ws/chats/:id", wsHandler.Serve)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
