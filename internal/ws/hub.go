package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
)

// TopicKitchen receives every order event; per-order topics receive only
// their own. Delivery is at-least-once and events carry no order state
// beyond identifiers — consumers re-fetch from the ledger.
const TopicKitchen = "kitchen"

// TopicOrder is the per-order topic for a customer status page.
func TopicOrder(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// Event is a change-feed message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OrderEventPayload identifies the order that changed; it is a prompt to
// re-fetch, not the state itself.
type OrderEventPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
}

// topicEvent routes an event to one topic's room.
type topicEvent struct {
	Topic string
	Event Event
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *topicEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
	}
}

// Run starts the hub's main loop. Call as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.topic]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.topic)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Topic]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full: drop the client; it will reconnect
					// and re-fetch, which the protocol tolerates.
					close(client.send)
					delete(h.rooms[event.Topic], client)
					if len(h.rooms[event.Topic]) == 0 {
						delete(h.rooms, event.Topic)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all clients subscribed to a topic.
func (h *Hub) Broadcast(topic string, event Event) {
	h.broadcast <- &topicEvent{Topic: topic, Event: event}
}

// PublishOrderCreated fans an order-created event to the kitchen and to the
// order's own topic.
func (h *Hub) PublishOrderCreated(order database.Order) {
	h.publishOrderEvent(enum.EventOrderCreated, order)
}

// PublishOrderStatusChanged fans a status change to the kitchen and to the
// order's own topic.
func (h *Hub) PublishOrderStatusChanged(order database.Order) {
	h.publishOrderEvent(enum.EventOrderStatusChanged, order)
}

func (h *Hub) publishOrderEvent(eventType string, order database.Order) {
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
	})
	if err != nil {
		return
	}
	event := Event{Type: eventType, Payload: payload}
	h.Broadcast(TopicKitchen, event)
	h.Broadcast(TopicOrder(order.ID), event)
}
