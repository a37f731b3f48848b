package handlers

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	ws "github.com/user/tradevault/backend/internal/websocket"
)

// EventsWSEndpoint is the handler for the trade-event WebSocket feed used
// by on-call middlemen to watch the pending queue move.
func EventsWSEndpoint(c *websocket.Conn) {
	client := &ws.Client{
		Conn: c,
		Send: make(chan []byte, 256), // Buffered channel for outgoing messages to this client
	}

	// Register the client with the hub
	ws.GlobalHub.Register <- client
	log.Printf("WebSocket connection established: %s", c.RemoteAddr())

	// Goroutine to handle writing messages from the hub to the client
	go clientWritePump(client)

	// Read in this goroutine: the connection is torn down when the handler
	// returns, so it must block until the client goes away.
	clientReadPump(client)
}

// clientWritePump pumps messages from the hub to the websocket connection.
func clientWritePump(client *ws.Client) {
	defer func() {
		client.Conn.Close()
		log.Printf("Write pump stopped for %s", client.Conn.RemoteAddr())
	}()

	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Error writing message to %s: %v", client.Conn.RemoteAddr(), err)
			// If write fails, assume client disconnected
			ws.GlobalHub.Unregister <- client
			return
		}
	}
}

// clientReadPump drains inbound frames and unregisters the client when the
// connection drops. The feed is outbound only; inbound payloads are ignored.
func clientReadPump(client *ws.Client) {
	defer func() {
		ws.GlobalHub.Unregister <- client
		client.Conn.Close()
		log.Printf("Read pump stopped for %s", client.Conn.RemoteAddr())
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
