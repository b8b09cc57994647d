package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/splitbook/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a Hub
// client of the caller's account.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, caller.AccountID).Run(r.Context())
	}
}
