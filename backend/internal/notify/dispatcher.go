package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	internalws "github.com/user/tradevault/backend/internal/websocket"
)

// EventStream is the Redis stream trade events are appended to when a
// Redis client is configured.
const EventStream = "tradevault.events"

// Event is a state-change notification produced by the coordination engine.
type Event struct {
	Kind    string    `json:"kind"`
	TradeID uuid.UUID `json:"trade_id"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Dispatcher decouples outbound notifications from the operations that
// produce them: events go through a buffered channel drained by a single
// goroutine, so a slow or failing sink can never block or roll back a
// trade mutation. Delivery is best effort; a full buffer drops the event
// with a log line.
type Dispatcher struct {
	events chan Event
	hub    *internalws.Hub
	rdb    *redis.Client // nil when Redis is not configured
}

// NewDispatcher creates a dispatcher fanning out to the WebSocket hub and,
// when rdb is non-nil, to the Redis event stream.
func NewDispatcher(hub *internalws.Hub, rdb *redis.Client) *Dispatcher {
	return &Dispatcher{
		events: make(chan Event, 256),
		hub:    hub,
		rdb:    rdb,
	}
}

// Start launches the drain goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

// Notify enqueues an event. Fire and forget: it never blocks and never
// reports failure to the caller.
func (d *Dispatcher) Notify(kind string, tradeID uuid.UUID, payload any) {
	event := Event{
		Kind:    kind,
		TradeID: tradeID,
		Payload: payload,
		At:      time.Now(),
	}
	select {
	case d.events <- event:
	default:
		log.Printf("Notification buffer full, dropping %s event for trade %s", kind, tradeID)
	}
}

func (d *Dispatcher) run() {
	log.Println("Notification dispatcher started")
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling %s event for trade %s: %v", event.Kind, event.TradeID, err)
		return
	}

	if d.hub != nil {
		d.hub.Broadcast(msgBytes)
	}

	if d.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := d.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: EventStream,
			Values: map[string]interface{}{
				"kind":     event.Kind,
				"trade_id": event.TradeID.String(),
				"payload":  string(msgBytes),
			},
		}).Err()
		cancel()
		if err != nil {
			// Logged and swallowed: notification failure never propagates.
			log.Printf("Error appending %s event for trade %s to Redis stream: %v", event.Kind, event.TradeID, err)
		}
	}
}

// MustRedis parses a Redis URL and returns a client, or exits on a bad URL.
func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}
