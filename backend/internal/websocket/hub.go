package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Client represents a single WebSocket client connection.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte // Buffered channel for outbound messages
}

// Hub manages WebSocket clients and broadcasts trade events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

var GlobalHub *Hub

// NewHub creates and initializes a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Broadcast queues a message for delivery to every connected client. It
// never blocks the caller; when the hub's buffer is full the message is
// dropped with a log line.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("Hub broadcast buffer full, dropping event")
	}
}

// Run starts the Hub's event loop.
func (h *Hub) Run() {
	log.Println("Starting WebSocket Hub...")

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client registered: %s", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Client unregistered: %s", client.Conn.RemoteAddr())
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Client's send buffer is full, drop the connection
					log.Printf("Client send buffer full, closing connection: %s", client.Conn.RemoteAddr())
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// InitializeGlobalHub creates and runs the global Hub instance.
func InitializeGlobalHub() {
	GlobalHub = NewHub()
	go GlobalHub.Run()
}
