// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// PaymentEvent is pushed to buyers watching a payment reference. The buyer
// still confirms over HTTP; the event only tells them when to.
type PaymentEvent struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Hub fans payment events out to clients subscribed by reference. Buyers
// are anonymous, so subscriptions key on the payment reference they hold
// rather than on an identity.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	events     chan PaymentEvent

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan PaymentEvent, 256),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

// PublishPaymentEvent satisfies the Notifier interface of the payment
// services. Non-blocking: a full queue drops the event, the buyer's polling
// loop remains the source of truth.
func (h *Hub) PublishPaymentEvent(reference, status, reason string) {
	select {
	case h.events <- PaymentEvent{Reference: reference, Status: status, Reason: reason}:
	default:
		h.logger.Warn("event queue full, dropping payment event",
			zap.String("reference", reference))
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.reference] == nil {
		h.clients[c.reference] = make(map[*Client]bool)
	}
	h.clients[c.reference][c] = true
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.reference]; ok {
		if set[c] {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.reference)
		}
	}
}

func (h *Hub) deliver(ev PaymentEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[ev.Reference] {
		select {
		case c.send <- ev:
		default:
			// Slow client; it will be dropped by its writer.
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ref, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, ref)
	}
}
