package handlers

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/winniek75/flashinput-sub005/internal/config"
	"github.com/winniek75/flashinput-sub005/internal/security"
	"github.com/winniek75/flashinput-sub005/internal/services"
)

// WSHandler upgrades spectator connections and hands them to the hub.
type WSHandler struct {
	hub     *services.Hub
	origins *security.OriginValidator
	logger  *slog.Logger
}

func NewWSHandler(hub *services.Hub, origins *security.OriginValidator, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:     hub,
		origins: origins,
		logger:  logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.origins.GetAcceptOptions())
	if err != nil {
		// Accept has already written the HTTP error response
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(config.MaxMessageSize)

	client := services.NewClient(conn, h.hub)
	h.logger.Debug("websocket accepted", "conn", client.ID(), "remote", r.RemoteAddr)

	// Blocks until the connection ends
	client.Serve()
}
