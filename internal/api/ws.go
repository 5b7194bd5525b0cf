package api

import (
	"log"
	"net/http"

	"pricetracker/internal/sweep"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SweepFeedHandler upgrades the connection and streams sweep progress events
// published by the hub until the client goes away.
func SweepFeedHandler(hub *sweep.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("ws: upgrade failed: %v", err)
			return
		}
		hub.Register(conn)

		// Clients only listen; the read loop just detects disconnects.
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
