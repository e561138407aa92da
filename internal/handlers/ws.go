package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/digitalgenesis/supportbridge/internal/push"
)

// WSHandler upgrades widget connections and parks them in the push hub.
// The channel is server-to-client only; inbound frames are drained and
// ignored so pings and stray writes do not tear the connection down.
type WSHandler struct {
	logger   *slog.Logger
	hub      *push.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, hub *push.Hub, allowedOrigin string) *WSHandler {
	return &WSHandler{
		logger: log.With(slog.String("handler", "ws")),
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Connect)
}

func (h *WSHandler) Connect(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.Any("error", err))
		return nil
	}

	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("viewer disconnected", slog.Any("error", err))
			return nil
		}
	}
}
