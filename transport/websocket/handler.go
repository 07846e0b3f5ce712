package websocket

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// UserIDQueryParam lets a client ask for a specific identity on /ws.
const UserIDQueryParam = "user_id"

// SessionServer runs the lifecycle of one accepted transport.
type SessionServer interface {
	Serve(ctx context.Context, transport contract.Transport, requestedID string) error
}

type HandlerConfig struct {
	HandshakeTimeout time.Duration
	KeepAlive        KeepAlive
	ReadLimit        int64
}

// Handler upgrades HTTP requests and hands the connection to the relay.
type Handler struct {
	log      *slog.Logger
	server   SessionServer
	upgrader websocket.Upgrader
	cfg      HandlerConfig
}

func NewHandler(log *slog.Logger, server SessionServer, cfg HandlerConfig) *Handler {
	return &Handler{
		log:    log,
		server: server,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client with an HTTP error.
		observability.HandshakeFailures.Inc()
		h.log.Debug("Websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err)
		return
	}

	transport := NewTransport(h.log, conn, h.cfg.KeepAlive, h.cfg.ReadLimit)
	requestedID := r.URL.Query().Get(UserIDQueryParam)
	if err := h.server.Serve(r.Context(), transport, requestedID); err != nil {
		h.log.Debug("Session ended with error",
			"remote_addr", r.RemoteAddr,
			"error", err)
	}
}
