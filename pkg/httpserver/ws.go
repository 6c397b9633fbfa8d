package httpserver

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Upgrader carries no per-connection state
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	statusPushInterval = 2 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

// GET /api/ws
// Streams the status payload to the client until it disconnects. Clients
// that poll /api/status can switch to this to observe refresh progress
// without hammering the endpoint.
func (h *handlers) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws-upgrade-failed", zap.Error(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	h.logger.Debug("ws-client-connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain client frames so close and ping/pong are processed
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(h.statusPayload())
			if err != nil {
				h.logger.Warn("ws-marshal-failed", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err = conn.WriteMessage(websocket.TextMessage, payload)
			if err != nil {
				h.logger.Debug("ws-client-disconnected", zap.Error(err))
				return
			}
		}
	}
}
