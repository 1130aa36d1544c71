package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections and
// subscribes them to the hub's change feed.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: hub.origins,
		})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}

		NewClient(hub, conn, r.RemoteAddr).Run(r.Context())
	}
}
