package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
)

func newTestClient(h *Hub, topic string) *Client {
	return &Client{hub: h, topic: topic, send: make(chan []byte, 8)}
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected event: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastToTopic(t *testing.T) {
	h := NewHub()
	go h.Run()

	kitchen := newTestClient(h, TopicKitchen)
	h.register <- kitchen
	time.Sleep(10 * time.Millisecond)

	h.Broadcast(TopicKitchen, Event{Type: "ping", Payload: json.RawMessage(`{}`)})

	ev := recvEvent(t, kitchen)
	if ev.Type != "ping" {
		t.Errorf("event type = %q, want ping", ev.Type)
	}
}

func TestHubTopicIsolation(t *testing.T) {
	h := NewHub()
	go h.Run()

	orderA := uuid.New()
	orderB := uuid.New()
	clientA := newTestClient(h, TopicOrder(orderA))
	clientB := newTestClient(h, TopicOrder(orderB))
	h.register <- clientA
	h.register <- clientB
	time.Sleep(10 * time.Millisecond)

	h.Broadcast(TopicOrder(orderA), Event{Type: "ping", Payload: json.RawMessage(`{}`)})

	recvEvent(t, clientA)
	assertNoEvent(t, clientB)
}

func TestHubUnregister(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := newTestClient(h, TopicKitchen)
	h.register <- client
	time.Sleep(10 * time.Millisecond)

	h.unregister <- client
	time.Sleep(10 * time.Millisecond)

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestPublishOrderStatusChangedFansOut(t *testing.T) {
	h := NewHub()
	go h.Run()

	orderID := uuid.New()
	kitchen := newTestClient(h, TopicKitchen)
	statusPage := newTestClient(h, TopicOrder(orderID))
	other := newTestClient(h, TopicOrder(uuid.New()))
	h.register <- kitchen
	h.register <- statusPage
	h.register <- other
	time.Sleep(10 * time.Millisecond)

	h.PublishOrderStatusChanged(database.Order{
		ID:          orderID,
		OrderNumber: "ORD-20260830-001",
		Status:      enum.OrderStatusPreparing,
	})

	for _, c := range []*Client{kitchen, statusPage} {
		ev := recvEvent(t, c)
		if ev.Type != enum.EventOrderStatusChanged {
			t.Errorf("event type = %q, want %q", ev.Type, enum.EventOrderStatusChanged)
		}
		var payload OrderEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload.OrderID != orderID || payload.Status != enum.OrderStatusPreparing {
			t.Errorf("payload = %+v", payload)
		}
	}
	assertNoEvent(t, other)
}

func TestPublishOrderCreatedReachesKitchen(t *testing.T) {
	h := NewHub()
	go h.Run()

	kitchen := newTestClient(h, TopicKitchen)
	h.register <- kitchen
	time.Sleep(10 * time.Millisecond)

	h.PublishOrderCreated(database.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260830-002",
		Status:      enum.OrderStatusPending,
	})

	ev := recvEvent(t, kitchen)
	if ev.Type != enum.EventOrderCreated {
		t.Errorf("event type = %q, want %q", ev.Type, enum.EventOrderCreated)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := &Client{hub: h, topic: TopicKitchen, send: make(chan []byte)} // no buffer, never read
	h.register <- slow
	time.Sleep(10 * time.Millisecond)

	h.Broadcast(TopicKitchen, Event{Type: "ping", Payload: json.RawMessage(`{}`)})
	time.Sleep(10 * time.Millisecond)

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected closed channel for dropped client")
		}
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
}
