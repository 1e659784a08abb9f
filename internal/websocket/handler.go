package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients. A client resumes by passing its session id and
// the offset of the last broadcast it applied in the session and offset query
// parameters.
func HandleWebSocket(hub *Hub, h Handler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (household LAN)
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		q := r.URL.Query()
		client := NewClient(hub, conn, logger.With("remote", r.RemoteAddr))
		client.Run(r.Context(), h, q.Get("session"), parseOffset(q.Get("offset")))
	}
}

func parseOffset(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
