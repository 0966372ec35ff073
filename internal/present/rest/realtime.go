package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/present/rest/middleware"
	"github.com/acbops/tracker/internal/present/rest/presenter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleRealtime upgrades the connection and streams presence events to the
// viewer: one state event on subscribe, then update events as they happen,
// with pings keeping intermediaries from closing the transport. The
// connection close is the unsubscribe signal.
func (h *Handler) handleRealtime(c echo.Context) error {
	ctx := c.Request().Context()

	token := middleware.BearerToken(c)
	if token == "" {
		return presenter.Unauthorized(c, "missing token")
	}
	if _, err := h.auth.Verify(ctx, token); err != nil {
		return presenter.Unauthorized(c, "invalid token")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "realtime"),
		)
		return err
	}
	defer ws.Close()

	sub := h.presence.Subscribe()
	defer h.presence.Unsubscribe(sub)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			// Inbound traffic carries nothing the server needs; the read
			// loop only exists to observe the close.
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "realtime"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "realtime"),
					)
				}
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-quit:
			return nil
		case <-heartbeat.C:
			if err := ws.WriteJSON(tracker.PresenceEvent{Type: tracker.EventPing}); err != nil {
				return nil
			}
		case event, open := <-sub.Events():
			if !open {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				slog.DebugContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "realtime"),
				)
				return nil
			}
		}
	}
}
