package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"langarhall/internal/logger"
	"langarhall/internal/service/monitor"
	ws "langarhall/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler handles dashboard connections over WebSocket. A new
// viewer first receives the current occupancy, then every broadcast.
func ViewWebsocketHandler(mon *monitor.Monitor, hub *ws.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if current, err := mon.Current(r.Context()); err == nil {
			if msg, err := json.Marshal(current); err == nil {
				connection.WriteMessage(websocket.TextMessage, msg)
			}
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Viewer connected")

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
