package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/chat"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// WSHandler upgrades HTTP connections and drives one chat.Session per
// socket. The bearer token arrives as a query parameter because browser
// WebSocket clients cannot set headers.
type WSHandler struct {
	auth       chat.Authenticator
	store      store.Store
	registry   *chat.Registry
	dispatcher chat.Dispatcher
	msgLimit   int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(authenticator chat.Authenticator, st store.Store, registry *chat.Registry, dispatcher chat.Dispatcher, msgLimit int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		auth:       authenticator,
		store:      st,
		registry:   registry,
		dispatcher: dispatcher,
		msgLimit:   msgLimit,
		log:        logger,
	}
}

// Serve handles GET /ws/chats/:id?token=...
func (h *WSHandler) Serve(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(400, ErrorResponse{Error: "invalid chat id"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	session := chat.NewSession(h.auth, h.store, h.store, h.registry, h.dispatcher, h.log)
	defer session.Close()

	if err := session.Authenticate(ctx, c.Query("token")); err != nil {
		conn.Close(websocket.StatusCode(proto.CloseUnauthorized), "unauthorized")
		return
	}

	if err := session.Join(ctx, chatID); err != nil {
		var domainErr *chat.Error
		if errors.As(err, &domainErr) && domainErr.Code == chat.ErrCodeForbidden {
			conn.Close(websocket.StatusCode(proto.CloseForbidden), "forbidden")
			return
		}
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session.Conn())
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh
	session.Close()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "error"
			h.log.Warn().Err(err).Int64("chat_id", chatID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *chat.Session) error {
	limiter := newRateLimiter(h.msgLimit)
	defer limiter.stop()

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := writeError(ctx, conn, chat.ErrCodeRateLimited, "too many messages"); err != nil {
				return err
			}
			continue
		}

		switch inbound.Type {
		case proto.InboundTypeSend:
			var send proto.SendData
			if err := json.Unmarshal(inbound.Data, &send); err != nil {
				if werr := writeError(ctx, conn, chat.ErrCodeBadRequest, "malformed send payload"); werr != nil {
					return werr
				}
				continue
			}
			if err := session.Send(ctx, send.Content, send.Metadata); err != nil {
				var domainErr *chat.Error
				if errors.As(err, &domainErr) {
					if werr := writeError(ctx, conn, domainErr.Code, domainErr.Message); werr != nil {
						return werr
					}
					continue
				}
				return err
			}
		default:
			// Unknown frame types are a forward-compatible no-op.
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, handle *chat.Conn) error {
	for {
		select {
		case ev := <-handle.Events():
			outbound := proto.Outbound{
				Type: proto.OutboundTypeMessage,
				Data: messageData(ev.Message, ev.Sender),
			}
			if err := wsjson.Write(ctx, conn, outbound); err != nil {
				h.log.Debug().Err(err).Str("conn_id", handle.ID).Msg("write ws event")
				return err
			}
		case <-handle.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}
